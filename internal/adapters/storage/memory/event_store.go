package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

type EventStore struct {
	mu     sync.RWMutex
	events map[domain.SessionID][]*domain.Event
}

func NewEventStore() *EventStore {
	return &EventStore{
		events: make(map[domain.SessionID][]*domain.Event),
	}
}

func (s *EventStore) AppendEvent(_ context.Context, ev *domain.Event) error {
	if ev == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep the slice ordered by CreatedAt; appends that lose a race with a
	// later-stamped event are moved back into place.
	evs := append(s.events[ev.SessionID], ev)
	for i := len(evs) - 1; i > 0 && evs[i].CreatedAt.Before(evs[i-1].CreatedAt); i-- {
		evs[i], evs[i-1] = evs[i-1], evs[i]
	}
	s.events[ev.SessionID] = evs
	return nil
}

// ListEventsBySession returns the last `limit` events by CreatedAt, oldest first.
// If limit <= 0, returns all.
func (s *EventStore) ListEventsBySession(_ context.Context, id domain.SessionID, limit int) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[id]
	if limit > 0 && len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}

	out := make([]*domain.Event, len(evs))
	copy(out, evs)
	return out, nil
}
