package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sessionColumns = `id, screening_in_progress, step, answers, escalated, created_at, updated_at`

// Store keeps sessions and events in a local SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (and migrates) the database at path.
func NewStore(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(timeLayout, v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		id                 string
		screening, escal   int
		step               int
		answersJSON        string
		createdAt, updated string
	)
	if err := row.Scan(&id, &screening, &step, &answersJSON, &escal, &createdAt, &updated); err != nil {
		return nil, err
	}

	answers := []string{}
	if err := json.Unmarshal([]byte(answersJSON), &answers); err != nil {
		return nil, fmt.Errorf("decoding answers for session %s: %w", id, err)
	}
	c, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at for session %s: %w", id, err)
	}
	u, err := parseTime(updated)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at for session %s: %w", id, err)
	}

	return &domain.Session{
		ID:                  domain.SessionID(id),
		ScreeningInProgress: screening != 0,
		Step:                step,
		Answers:             answers,
		Escalated:           escal != 0,
		CreatedAt:           c,
		UpdatedAt:           u,
	}, nil
}

// Update loads (or creates) the session, applies fn and writes the result,
// all inside one transaction. The single connection serializes concurrent
// updates; an error from fn rolls back.
func (s *Store) Update(ctx context.Context, id domain.SessionID, fn domain.UpdateFunc) (*domain.Session, error) {
	var result *domain.Session

	err := withinTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, string(id))
		sess, err := scanSession(row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			sess = domain.NewSession(id, s.now())
		case err != nil:
			return fmt.Errorf("loading session %s: %w", id, err)
		}

		if err := fn(sess); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		answers := sess.Answers
		if answers == nil {
			answers = []string{}
		}
		answersJSON, err := json.Marshal(answers)
		if err != nil {
			return fmt.Errorf("encoding answers: %w", err)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				screening_in_progress = excluded.screening_in_progress,
				step = excluded.step,
				answers = excluded.answers,
				escalated = excluded.escalated,
				updated_at = excluded.updated_at`,
			string(sess.ID),
			boolToInt(sess.ScreeningInProgress),
			sess.Step,
			string(answersJSON),
			boolToInt(sess.Escalated),
			formatTime(sess.CreatedAt),
			formatTime(sess.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("saving session %s: %w", id, err)
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
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, string(id))
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

func (s *Store) ListEscalated(ctx context.Context, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE escalated = 1 ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing escalated sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, ev *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, session_id, kind, score, severity, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.ID), string(ev.SessionID), string(ev.Kind), ev.Score, ev.Severity, formatTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("appending event %s: %w", ev.Kind, err)
	}
	return nil
}

// ListEventsBySession returns the last `limit` events by created_at, oldest first.
func (s *Store) ListEventsBySession(ctx context.Context, id domain.SessionID, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, score, severity, created_at FROM (
			SELECT seq, id, kind, score, severity, created_at FROM events
			WHERE session_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?
		) ORDER BY created_at ASC, seq ASC`, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("listing events for session %s: %w", id, err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			evID, kind, severity, createdAt string
			score                           int
		)
		if err := rows.Scan(&evID, &kind, &score, &severity, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event time: %w", err)
		}
		out = append(out, &domain.Event{
			ID:        domain.EventID(evID),
			SessionID: id,
			Kind:      domain.EventKind(kind),
			Score:     score,
			Severity:  severity,
			CreatedAt: t,
		})
	}
	return out, rows.Err()
}
