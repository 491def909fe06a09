package domain

import "context"

// ReplyGenerator is the external free-text generator used for general conversation.
type ReplyGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest is a single-turn generation request.
type GenerateRequest struct {
	SystemPreamble string
	UserMessage    string
	Temperature    float32
}

// UpdateFunc mutates a session in place. Returning an error discards the mutation.
type UpdateFunc func(sess *Session) error

// SessionStore defines session's persistence.
//
// Update must serialize calls for the same id: fn sees the state committed by
// the previous call for that id, and its changes are persisted only when it
// returns nil and ctx is still live. Sessions are created on first reference.
type SessionStore interface {
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	Update(ctx context.Context, id SessionID, fn UpdateFunc) (*Session, error)
	ListEscalated(ctx context.Context, limit int) ([]*Session, error)
}

// EventStore defines event's persistence
type EventStore interface {
	AppendEvent(ctx context.Context, ev *Event) error
	ListEventsBySession(ctx context.Context, id SessionID, limit int) ([]*Event, error)
}
