package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/farum-triage/internal/app/reply"
	"github.com/PabloGalante/farum-triage/internal/app/screening"
	"github.com/PabloGalante/farum-triage/internal/app/triage"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

const defaultGeneratorTimeout = 20 * time.Second

// Service is the dialogue engine: it classifies one inbound message against
// the session state and produces the reply for that turn.
type Service struct {
	generator    domain.ReplyGenerator
	sessionStore domain.SessionStore
	eventStore   domain.EventStore
	classifier   *triage.Classifier
	composer     *reply.Composer

	generatorTimeout time.Duration
	temperature      float32
	now              func() time.Time
	newID            func() string
}

type Option func(*Service)

func WithEventStore(store domain.EventStore) Option {
	return func(s *Service) { s.eventStore = store }
}

func WithClassifier(c *triage.Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

func WithComposer(c *reply.Composer) Option {
	return func(s *Service) { s.composer = c }
}

// WithGeneratorTimeout bounds the general-conversation call. Zero keeps the default.
func WithGeneratorTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.generatorTimeout = d
		}
	}
}

func WithTemperature(t float32) Option {
	return func(s *Service) { s.temperature = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(
	generator domain.ReplyGenerator,
	sessionStore domain.SessionStore,
	opts ...Option,
) *Service {
	s := &Service{
		generator:        generator,
		sessionStore:     sessionStore,
		classifier:       triage.Default(),
		composer:         reply.NewComposer(),
		generatorTimeout: defaultGeneratorTimeout,
		temperature:      defaultTemperature,
		now:              time.Now,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ChatInput struct {
	// SessionID may be empty; a new one is generated and returned.
	SessionID domain.SessionID
	Message   string
}

type ChatOutput struct {
	SessionID domain.SessionID
	Reply     string
	Escalate  bool
	Intent    domain.Intent

	// Degraded is set when the reply is a fallback for a failed generator call.
	Degraded bool
}

// turn is the outcome of the locked part of a chat turn.
type turn struct {
	intent   domain.Intent
	reply    string
	escalate bool
	event    *domain.Event
}

// Chat runs one turn of the dialogue for the session.
//
// Crisis detection runs first in every state. When idle, motivational,
// greeting and screening-start triggers are checked in that order before
// falling back to the reply generator; while screening, the message is
// treated as an answer to the current question.
func (s *Service) Chat(ctx context.Context, in ChatInput) (*ChatOutput, error) {
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = domain.SessionID(s.newID())
	}
	message := strings.TrimSpace(in.Message)

	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	var t turn
	_, err := s.sessionStore.Update(ctx, sessionID, func(sess *domain.Session) error {
		// May run more than once on stores that retry transactions.
		t = s.decide(log, sess, message)
		now := s.now()
		sess.UpdatedAt = now
		if t.event != nil {
			// Stamped under the session lock so event time follows commit order.
			t.event.CreatedAt = now
		}
		return nil
	})
	if err != nil {
		log.Error("failed to update session", "error", err)
		return nil, fmt.Errorf("updating session %s: %w", sessionID, err)
	}

	out := &ChatOutput{
		SessionID: sessionID,
		Reply:     t.reply,
		Escalate:  t.escalate,
		Intent:    t.intent,
	}

	if t.intent == domain.IntentGeneralChat {
		// Generated outside the session update so a slow backend never
		// blocks other turns for this session.
		text, err := s.generate(ctx, message)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error("reply generator failed, using fallback", "error", err)
			out.Reply = s.composer.Fallback()
			out.Degraded = true
		} else {
			out.Reply = text
		}
	}

	if t.event != nil {
		s.recordEvent(ctx, log, sessionID, t.event)
	}

	log.Info("chat turn completed",
		"intent", out.Intent,
		"escalate", out.Escalate,
		"degraded", out.Degraded,
	)
	return out, nil
}

// decide applies the priority cascade to sess, mutating it in place.
func (s *Service) decide(log *slog.Logger, sess *domain.Session, message string) turn {
	if err := sess.Validate(); err != nil {
		log.Error("session invariant violated, resetting to idle",
			"error", err,
			"step", sess.Step,
			"answers", len(sess.Answers),
		)
		sess.ResetScreening()
	}

	if s.classifier.IsCrisis(message) {
		if !sess.Escalated {
			log.Warn("session escalated")
		}
		sess.Escalated = true
		return turn{
			intent:   domain.IntentCrisis,
			reply:    s.composer.Crisis(),
			escalate: true,
			event:    &domain.Event{Kind: domain.EventEscalated},
		}
	}

	if sess.ScreeningInProgress {
		return s.answer(log, sess, message)
	}

	switch {
	case s.classifier.IsMotivational(message):
		return turn{intent: domain.IntentMotivational, reply: s.composer.Motivational()}

	case s.classifier.IsGreeting(message):
		return turn{intent: domain.IntentGreeting, reply: s.composer.Greeting()}

	case s.classifier.IsScreeningStart(message):
		sess.StartScreening()
		log.Info("screening started")
		return turn{
			intent: domain.IntentScreeningStart,
			reply:  s.composer.ScreeningIntro(),
			event:  &domain.Event{Kind: domain.EventScreeningStarted},
		}

	default:
		return turn{intent: domain.IntentGeneralChat}
	}
}

// answer handles a message while the questionnaire is active.
func (s *Service) answer(log *slog.Logger, sess *domain.Session, message string) turn {
	answer := triage.NormalizeAnswer(message)
	if !screening.IsValidAnswer(answer) {
		return turn{intent: domain.IntentScreeningReprompt, reply: s.composer.Reprompt(sess.Step)}
	}

	sess.RecordAnswer(answer)
	if sess.Step < domain.QuestionCount {
		log.Info("screening answer recorded", "step", sess.Step)
		return turn{intent: domain.IntentScreeningAnswer, reply: s.composer.NextQuestion(sess.Step)}
	}

	res := screening.Score(sess.Answers)
	sess.ResetScreening()
	log.Info("screening completed", "score", res.Score, "severity", res.Severity)

	return turn{
		intent: domain.IntentScreeningComplete,
		reply:  s.composer.Completion(res),
		event: &domain.Event{
			Kind:     domain.EventScreeningCompleted,
			Score:    res.Score,
			Severity: string(res.Severity),
		},
	}
}

// generate calls the reply generator with a timeout. The call runs on its
// own goroutine so a generator that ignores ctx cannot stall the turn.
// Panics in the generator are reported as errors.
func (s *Service) generate(ctx context.Context, message string) (string, error) {
	if s.generator == nil {
		return "", domain.ErrGeneratorUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.generatorTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	start := time.Now()
	go func() {
		var res result
		defer func() {
			if r := recover(); r != nil {
				res = result{err: fmt.Errorf("generator panic: %v", r)}
			}
			done <- res
		}()
		res.text, res.err = s.generator.Generate(ctx, domain.GenerateRequest{
			SystemPreamble: SystemPreamble,
			UserMessage:    message,
			Temperature:    s.temperature,
		})
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	observability.LoggerFromContext(ctx).Debug("reply generator call",
		"elapsed_ms", time.Since(start).Milliseconds(),
		"error", res.err,
	)
	if res.err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGeneratorUnavailable, res.err)
	}

	text := strings.TrimSpace(res.text)
	if text == "" {
		return "", domain.ErrEmptyReply
	}
	return text, nil
}

func (s *Service) recordEvent(ctx context.Context, log *slog.Logger, id domain.SessionID, ev *domain.Event) {
	if s.eventStore == nil {
		return
	}
	ev.ID = domain.EventID(s.newID())
	ev.SessionID = id

	if err := s.eventStore.AppendEvent(ctx, ev); err != nil {
		log.Error("failed to append event", "kind", ev.Kind, "error", err)
	}
}

// GetSession returns the stored state of a session.
func (s *Service) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return s.sessionStore.GetSession(ctx, id)
}

// ListEscalated returns sessions flagged for follow-up.
func (s *Service) ListEscalated(ctx context.Context, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.sessionStore.ListEscalated(ctx, limit)
}

// GetSessionEvents returns the last `limit` events for a session.
func (s *Service) GetSessionEvents(ctx context.Context, id domain.SessionID, limit int) ([]*domain.Event, error) {
	if _, err := s.sessionStore.GetSession(ctx, id); err != nil {
		return nil, err
	}
	if s.eventStore == nil {
		return []*domain.Event{}, nil
	}
	return s.eventStore.ListEventsBySession(ctx, id, limit)
}
