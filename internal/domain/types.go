package domain

import "time"

type SessionID string
type EventID string

type Intent string

const (
	IntentCrisis            Intent = "crisis"
	IntentMotivational      Intent = "motivational"
	IntentGreeting          Intent = "greeting"
	IntentScreeningStart    Intent = "screening_start"
	IntentScreeningAnswer   Intent = "screening_answer"
	IntentScreeningReprompt Intent = "screening_reprompt"
	IntentScreeningComplete Intent = "screening_complete"
	IntentGeneralChat       Intent = "general_chat"
)

type EventKind string

const (
	EventEscalated          EventKind = "escalated"
	EventScreeningStarted   EventKind = "screening_started"
	EventScreeningCompleted EventKind = "screening_completed"
)

type Timestamp = time.Time
