package domain

// Event records a notable transition of a session, for follow-up by
// moderation or care collaborators.
type Event struct {
	ID        EventID   `json:"id"`
	SessionID SessionID `json:"session_id"`
	Kind      EventKind `json:"kind"`
	CreatedAt Timestamp `json:"created_at"`

	// Set only for screening_completed.
	Score    int    `json:"score,omitempty"`
	Severity string `json:"severity,omitempty"`
}
