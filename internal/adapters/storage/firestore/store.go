package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

type Store struct {
	client *firestore.Client
	now    func() time.Time
}

// NewStore creates a Firestore store.
// Uses the project passed (FARUM_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) eventsCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("events")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	ScreeningInProgress bool      `firestore:"screening_in_progress"`
	Step                int       `firestore:"step"`
	Answers             []string  `firestore:"answers"`
	Escalated           bool      `firestore:"escalated"`
	CreatedAt           time.Time `firestore:"created_at"`
	UpdatedAt           time.Time `firestore:"updated_at"`
}

type eventDoc struct {
	Kind      string    `firestore:"kind"`
	Score     int       `firestore:"score"`
	Severity  string    `firestore:"severity"`
	CreatedAt time.Time `firestore:"created_at"`
}

func toSessionDoc(sess *domain.Session) sessionDoc {
	answers := sess.Answers
	if answers == nil {
		answers = []string{}
	}
	return sessionDoc{
		ScreeningInProgress: sess.ScreeningInProgress,
		Step:                sess.Step,
		Answers:             answers,
		Escalated:           sess.Escalated,
		CreatedAt:           sess.CreatedAt,
		UpdatedAt:           sess.UpdatedAt,
	}
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (*domain.Session, error) {
	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode sessionDoc: %w", err)
	}
	answers := doc.Answers
	if answers == nil {
		answers = []string{}
	}
	return &domain.Session{
		ID:                  domain.SessionID(snap.Ref.ID),
		ScreeningInProgress: doc.ScreeningInProgress,
		Step:                doc.Step,
		Answers:             answers,
		Escalated:           doc.Escalated,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}, nil
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

// Update runs fn inside a Firestore transaction on the session document.
// Firestore serializes conflicting transactions on the same document and
// retries the loser, so fn may run more than once.
func (s *Store) Update(ctx context.Context, id domain.SessionID, fn domain.UpdateFunc) (*domain.Session, error) {
	var result *domain.Session

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.sessionDoc(id)

		var sess *domain.Session
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			sess = domain.NewSession(id, s.now())
		case err != nil:
			return fmt.Errorf("firestore get session: %w", err)
		default:
			if sess, err = fromSnapshot(snap); err != nil {
				return err
			}
		}

		if err := fn(sess); err != nil {
			return err
		}

		if err := tx.Set(ref, toSessionDoc(sess)); err != nil {
			return fmt.Errorf("firestore set session: %w", err)
		}
		result = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}
	return fromSnapshot(snap)
}

func (s *Store) ListEscalated(ctx context.Context, limit int) ([]*domain.Session, error) {
	q := s.sessionsCol().Where("escalated", "==", true).OrderBy("updated_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Session
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListEscalated: %w", err)
		}

		sess, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// ─────────────────────────────────────────
// EventStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendEvent(ctx context.Context, ev *domain.Event) error {
	doc := eventDoc{
		Kind:      string(ev.Kind),
		Score:     ev.Score,
		Severity:  ev.Severity,
		CreatedAt: ev.CreatedAt,
	}

	_, err := s.eventsCol(ev.SessionID).Doc(string(ev.ID)).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendEvent: %w", err)
	}
	return nil
}

// ListEventsBySession returns the last `limit` events, oldest first.
func (s *Store) ListEventsBySession(ctx context.Context, id domain.SessionID, limit int) ([]*domain.Event, error) {
	q := s.eventsCol(id).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Event
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListEventsBySession: %w", err)
		}

		var doc eventDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode eventDoc: %w", err)
		}

		out = append(out, &domain.Event{
			ID:        domain.EventID(snap.Ref.ID),
			SessionID: id,
			Kind:      domain.EventKind(doc.Kind),
			Score:     doc.Score,
			Severity:  doc.Severity,
			CreatedAt: doc.CreatedAt,
		})
	}

	// Query is newest first so the limit keeps the latest; return oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
