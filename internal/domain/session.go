package domain

import (
	"fmt"
	"slices"
)

// QuestionCount is the length of the PHQ-9 question sequence.
const QuestionCount = 9

// Session is the per-conversant state tracked across turns.
type Session struct {
	ID        SessionID
	CreatedAt Timestamp
	UpdatedAt Timestamp

	// Screening flow. While ScreeningInProgress, len(Answers) == Step.
	ScreeningInProgress bool
	Step                int
	Answers             []string

	// Escalated is sticky: set on the first crisis turn, never cleared here.
	Escalated bool
}

// NewSession returns an idle session.
func NewSession(id SessionID, now Timestamp) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Answers:   []string{},
	}
}

// Clone returns a deep copy so callers can mutate it without touching the stored value.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Answers = slices.Clone(s.Answers)
	if c.Answers == nil {
		c.Answers = []string{}
	}
	return &c
}

// StartScreening moves the session into SCREENING(0).
func (s *Session) StartScreening() {
	s.ScreeningInProgress = true
	s.Step = 0
	s.Answers = []string{}
}

// RecordAnswer appends a normalized answer and advances the step.
func (s *Session) RecordAnswer(answer string) {
	s.Answers = append(s.Answers, answer)
	s.Step++
}

// ResetScreening returns the session to IDLE. Escalated is left untouched.
func (s *Session) ResetScreening() {
	s.ScreeningInProgress = false
	s.Step = 0
	s.Answers = []string{}
}

// Validate checks the screening invariants.
func (s *Session) Validate() error {
	if s.Step < 0 || s.Step > QuestionCount {
		return fmt.Errorf("%w: step %d out of range", ErrCorruptSession, s.Step)
	}
	if len(s.Answers) != s.Step {
		return fmt.Errorf("%w: %d answers at step %d", ErrCorruptSession, len(s.Answers), s.Step)
	}
	if !s.ScreeningInProgress && s.Step != 0 {
		return fmt.Errorf("%w: idle session at step %d", ErrCorruptSession, s.Step)
	}
	if s.ScreeningInProgress && s.Step >= QuestionCount {
		return fmt.Errorf("%w: screening past last question", ErrCorruptSession)
	}
	return nil
}
