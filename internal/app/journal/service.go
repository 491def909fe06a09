package journal

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

const (
	defaultLimit     = 20
	eventsPerSession = 50
	fetchParallelism = 4
)

// Entry is one escalated session with its event history, for follow-up review.
type Entry struct {
	Session *domain.Session
	Events  []*domain.Event
}

// Service holds the logic of reading the escalation journal.
type Service struct {
	sessions domain.SessionStore
	events   domain.EventStore
}

// NewService creates a journal service. events may be nil, in which case
// entries carry no history.
func NewService(sessions domain.SessionStore, events domain.EventStore) *Service {
	return &Service{
		sessions: sessions,
		events:   events,
	}
}

// Escalated returns up to `limit` escalated sessions, most recently updated
// first, each with its latest events.
// If limit <= 0, a reasonable default value is used.
func (s *Service) Escalated(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	sessions, err := s.sessions.ListEscalated(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing escalated sessions: %w", err)
	}

	entries := make([]*Entry, len(sessions))
	for i, sess := range sessions {
		entries[i] = &Entry{Session: sess, Events: []*domain.Event{}}
	}
	if s.events == nil {
		return entries, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallelism)
	for _, e := range entries {
		g.Go(func() error {
			evs, err := s.events.ListEventsBySession(gctx, e.Session.ID, eventsPerSession)
			if err != nil {
				return fmt.Errorf("events for session %s: %w", e.Session.ID, err)
			}
			if evs != nil {
				e.Events = evs
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// LastScore returns the most recent completed screening in the entry, if any.
func (e *Entry) LastScore() (*domain.Event, bool) {
	for i := len(e.Events) - 1; i >= 0; i-- {
		if e.Events[i].Kind == domain.EventScreeningCompleted {
			return e.Events[i], true
		}
	}
	return nil, false
}
