package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// SessionStore keeps sessions for the lifetime of the process. Updates for
// the same id are serialized by a per-id lock; different ids never contend
// beyond the short map lookup.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*entry
	now      func() time.Time
}

type entry struct {
	// lock is a one-slot semaphore so waiters can give up on ctx.Done().
	lock chan struct{}
	// sess is nil until the first successful Update; guarded by SessionStore.mu.
	sess *domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*entry),
		now:      time.Now,
	}
}

func (s *SessionStore) entryFor(id domain.SessionID) *entry {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e
	}
	e = &entry{lock: make(chan struct{}, 1)}
	s.sessions[id] = e
	return e
}

func (s *SessionStore) Update(ctx context.Context, id domain.SessionID, fn domain.UpdateFunc) (*domain.Session, error) {
	e := s.entryFor(id)

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.lock }()

	s.mu.RLock()
	current := e.sess
	s.mu.RUnlock()

	var work *domain.Session
	if current == nil {
		work = domain.NewSession(id, s.now())
	} else {
		work = current.Clone()
	}

	if err := fn(work); err != nil {
		return nil, err
	}
	// Nothing is written if the caller went away while fn ran.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	e.sess = work
	s.mu.Unlock()

	return work.Clone(), nil
}

func (s *SessionStore) GetSession(_ context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok || e.sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return e.sess.Clone(), nil
}

// ListEscalated returns escalated sessions, most recently updated first.
func (s *SessionStore) ListEscalated(_ context.Context, limit int) ([]*domain.Session, error) {
	s.mu.RLock()
	var result []*domain.Session
	for _, e := range s.sessions {
		if e.sess != nil && e.sess.Escalated {
			result = append(result, e.sess.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
