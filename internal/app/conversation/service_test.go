package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/farum-triage/internal/adapters/llm"
	"github.com/PabloGalante/farum-triage/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-triage/internal/app/conversation"
	"github.com/PabloGalante/farum-triage/internal/app/reply"
	"github.com/PabloGalante/farum-triage/internal/app/screening"
	"github.com/PabloGalante/farum-triage/internal/domain"
)

func TestMain(m *testing.M) {
	// genai's transport pulls in opencensus, whose init starts a worker that never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type generatorFunc func(ctx context.Context, req domain.GenerateRequest) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	return f(ctx, req)
}

type harness struct {
	svc      *conversation.Service
	sessions *memory.SessionStore
	events   *memory.EventStore
}

func newHarness(t *testing.T, gen domain.ReplyGenerator, opts ...conversation.Option) *harness {
	t.Helper()
	if gen == nil {
		gen = llm.NewMockLLM()
	}
	h := &harness{
		sessions: memory.NewSessionStore(),
		events:   memory.NewEventStore(),
	}
	opts = append([]conversation.Option{
		conversation.WithEventStore(h.events),
		conversation.WithComposer(reply.NewSeededComposer(7)),
	}, opts...)
	h.svc = conversation.NewService(gen, h.sessions, opts...)
	return h
}

func (h *harness) chat(t *testing.T, id domain.SessionID, msg string) *conversation.ChatOutput {
	t.Helper()
	out, err := h.svc.Chat(context.Background(), conversation.ChatInput{SessionID: id, Message: msg})
	require.NoError(t, err)
	require.Equal(t, id, out.SessionID)
	return out
}

func (h *harness) session(t *testing.T, id domain.SessionID) *domain.Session {
	t.Helper()
	sess, err := h.svc.GetSession(context.Background(), id)
	require.NoError(t, err)
	return sess
}

// advance starts a screening and answers `answered` questions with "not at all".
func (h *harness) advance(t *testing.T, id domain.SessionID, answered int) {
	t.Helper()
	out := h.chat(t, id, "I want to take the depression test")
	require.Equal(t, domain.IntentScreeningStart, out.Intent)
	for i := 0; i < answered; i++ {
		out = h.chat(t, id, "Not at all")
		require.Equal(t, domain.IntentScreeningAnswer, out.Intent)
	}
}

func TestChatGeneratesSessionID(t *testing.T) {
	h := newHarness(t, nil, conversation.WithIDGenerator(func() string { return "generated-id" }))

	out, err := h.svc.Chat(context.Background(), conversation.ChatInput{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("generated-id"), out.SessionID)

	_, err = h.svc.GetSession(context.Background(), "generated-id")
	assert.NoError(t, err)
}

func TestChatGeneratesUniqueSessionIDsByDefault(t *testing.T) {
	h := newHarness(t, nil)

	a, err := h.svc.Chat(context.Background(), conversation.ChatInput{Message: "hello"})
	require.NoError(t, err)
	b, err := h.svc.Chat(context.Background(), conversation.ChatInput{Message: "hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, a.SessionID)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestGreetingOnFreshSession(t *testing.T) {
	h := newHarness(t, nil)

	out := h.chat(t, "s", "hello")
	assert.Equal(t, domain.IntentGreeting, out.Intent)
	assert.Contains(t, reply.GreetingReplies(), out.Reply)
	assert.False(t, out.Escalate)
	assert.False(t, h.session(t, "s").ScreeningInProgress)
}

func TestMotivationalBeatsGreeting(t *testing.T) {
	h := newHarness(t, nil)

	out := h.chat(t, "s", "hey, I'm struggling and lost hope")
	assert.Equal(t, domain.IntentMotivational, out.Intent)
	assert.Contains(t, reply.MotivationalMessages(), out.Reply)
	assert.NotContains(t, reply.GreetingReplies(), out.Reply)
}

func TestGreetingBeatsScreeningStart(t *testing.T) {
	h := newHarness(t, nil)

	out := h.chat(t, "s", "hi, can I take a test?")
	assert.Equal(t, domain.IntentGreeting, out.Intent)
	assert.False(t, h.session(t, "s").ScreeningInProgress)
}

func TestScreeningStart(t *testing.T) {
	h := newHarness(t, nil)

	out := h.chat(t, "s", "I want to take the depression test")
	q0, _ := screening.Question(0)

	assert.Equal(t, domain.IntentScreeningStart, out.Intent)
	assert.Contains(t, out.Reply, q0)
	assert.Contains(t, out.Reply, "Please answer with: Not at all, Several days, More than half the days, Nearly every day.")

	sess := h.session(t, "s")
	assert.True(t, sess.ScreeningInProgress)
	assert.Zero(t, sess.Step)
	assert.Empty(t, sess.Answers)
}

func TestGeneralChatUsesGenerator(t *testing.T) {
	var got domain.GenerateRequest
	gen := generatorFunc(func(ctx context.Context, req domain.GenerateRequest) (string, error) {
		got = req
		return "  It sounds like a heavy week.  \n", nil
	})
	h := newHarness(t, gen)

	out := h.chat(t, "s", "  my week was heavy ")
	assert.Equal(t, domain.IntentGeneralChat, out.Intent)
	assert.Equal(t, "It sounds like a heavy week.", out.Reply)
	assert.False(t, out.Degraded)

	assert.Equal(t, conversation.SystemPreamble, got.SystemPreamble)
	assert.Equal(t, "my week was heavy", got.UserMessage)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
}

func TestGeneratorFailureFallsBack(t *testing.T) {
	cases := map[string]domain.ReplyGenerator{
		"error": generatorFunc(func(ctx context.Context, req domain.GenerateRequest) (string, error) {
			return "", errors.New("quota exceeded")
		}),
		"empty": generatorFunc(func(ctx context.Context, req domain.GenerateRequest) (string, error) {
			return "   ", nil
		}),
		"panic": generatorFunc(func(ctx context.Context, req domain.GenerateRequest) (string, error) {
			panic("backend exploded")
		}),
	}

	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, gen)

			out := h.chat(t, "s", "tell me something nice")
			assert.Equal(t, domain.IntentGeneralChat, out.Intent)
			assert.True(t, out.Degraded)
			assert.False(t, out.Escalate)
			assert.NotEmpty(t, out.Reply)
			assert.Equal(t, reply.NewComposer().Fallback(), out.Reply)

			// The session survives the failure.
			assert.False(t, h.session(t, "s").ScreeningInProgress)
		})
	}
}

func TestGeneratorTimeout(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, req domain.GenerateRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	h := newHarness(t, gen, conversation.WithGeneratorTimeout(20*time.Millisecond))

	start := time.Now()
	out := h.chat(t, "s", "tell me something nice")
	assert.True(t, out.Degraded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGeneratorIgnoringContextStillTimesOut(t *testing.T) {
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, req domain.GenerateRequest) (string, error) {
		<-release
		return "too late", nil
	})
	h := newHarness(t, gen, conversation.WithGeneratorTimeout(20*time.Millisecond))

	out := h.chat(t, "s", "tell me something nice")
	assert.True(t, out.Degraded)
	assert.Equal(t, reply.NewComposer().Fallback(), out.Reply)

	close(release)
}

func TestGeneratorDoesNotHoldSessionLock(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, req domain.GenerateRequest) (string, error) {
		close(entered)
		<-release
		return "ok", nil
	})
	h := newHarness(t, gen)

	var g errgroup.Group
	g.Go(func() error {
		_, err := h.svc.Chat(context.Background(), conversation.ChatInput{SessionID: "s", Message: "just chatting"})
		return err
	})
	<-entered

	// A second turn for the same session completes while the generator is busy.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, err := h.svc.Chat(ctx, conversation.ChatInput{SessionID: "s", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentGreeting, out.Intent)

	close(release)
	require.NoError(t, g.Wait())
}

func TestCallerCancellationDuringGeneration(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, req domain.GenerateRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	h := newHarness(t, gen)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.svc.Chat(ctx, conversation.ChatInput{SessionID: "s", Message: "just chatting"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	sess := h.session(t, "s")
	assert.False(t, sess.ScreeningInProgress)
	assert.Zero(t, sess.Step)
}

func TestCrisisPreemptsEveryState(t *testing.T) {
	for step := -1; step < domain.QuestionCount; step++ {
		t.Run(fmt.Sprintf("step=%d", step), func(t *testing.T) {
			h := newHarness(t, nil)
			if step >= 0 {
				h.advance(t, "s", step)
			} else {
				h.chat(t, "s", "hello")
			}
			before := h.session(t, "s")

			out := h.chat(t, "s", "I want to die")
			assert.True(t, out.Escalate)
			assert.Equal(t, domain.IntentCrisis, out.Intent)
			assert.Contains(t, out.Reply, "crisis helpline")

			after := h.session(t, "s")
			assert.True(t, after.Escalated)
			assert.Equal(t, before.ScreeningInProgress, after.ScreeningInProgress)
			assert.Equal(t, before.Step, after.Step)
			assert.Equal(t, before.Answers, after.Answers)
		})
	}
}

func TestEscalationIsSticky(t *testing.T) {
	h := newHarness(t, nil)

	h.chat(t, "s", "thinking about self-harm")
	out := h.chat(t, "s", "hello")
	assert.False(t, out.Escalate, "escalate is per turn")

	h.advance(t, "s", domain.QuestionCount-1)
	h.chat(t, "s", "not at all")
	assert.True(t, h.session(t, "s").Escalated)
}

func TestInvalidAnswerIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.advance(t, "s", 4)
	before := h.session(t, "s")
	q4, _ := screening.Question(4)

	for _, msg := range []string{"sometimes", "", "hello", "depression test", "I'm struggling"} {
		out := h.chat(t, "s", msg)
		assert.Equal(t, domain.IntentScreeningReprompt, out.Intent, msg)
		assert.True(t, strings.HasPrefix(out.Reply, "Please answer with one of the following only:"))
		assert.True(t, strings.HasSuffix(out.Reply, q4))

		after := h.session(t, "s")
		assert.True(t, after.ScreeningInProgress)
		assert.Equal(t, before.Step, after.Step)
		assert.Equal(t, before.Answers, after.Answers)
	}
}

func TestAnswersAreNormalized(t *testing.T) {
	h := newHarness(t, nil)
	h.advance(t, "s", 0)

	out := h.chat(t, "s", "  MORE THAN HALF THE DAYS ")
	assert.Equal(t, domain.IntentScreeningAnswer, out.Intent)
	q1, _ := screening.Question(1)
	assert.True(t, strings.HasPrefix(out.Reply, q1))

	assert.Equal(t, []string{"more than half the days"}, h.session(t, "s").Answers)
}

func TestScreeningCompletionScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.advance(t, "s", domain.QuestionCount-1)
	require.Equal(t, domain.QuestionCount-1, h.session(t, "s").Step)

	out := h.chat(t, "s", "nearly every day")
	assert.Equal(t, domain.IntentScreeningComplete, out.Intent)
	assert.Contains(t, out.Reply, "Your score is 3, indicating minimal or no depression.")
	assert.Contains(t, out.Reply, "not a diagnosis")
	assert.False(t, out.Escalate)

	sess := h.session(t, "s")
	assert.False(t, sess.ScreeningInProgress)
	assert.Zero(t, sess.Step)
	assert.Empty(t, sess.Answers)

	evs, err := h.svc.GetSessionEvents(context.Background(), "s", 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.EventScreeningStarted, evs[0].Kind)
	assert.Equal(t, domain.EventScreeningCompleted, evs[1].Kind)
	assert.Equal(t, 3, evs[1].Score)
	assert.Equal(t, string(screening.SeverityMinimal), evs[1].Severity)
}

func TestScreeningTotals(t *testing.T) {
	sequences := map[string]struct {
		answers []string
		score   int
		band    screening.Severity
	}{
		"all several days":     {repeat("several days", 9), 9, screening.SeverityMild},
		"all more than half":   {repeat("more than half the days", 9), 18, screening.SeverityModeratelySevere},
		"all nearly every day": {repeat("nearly every day", 9), 27, screening.SeveritySevere},
		"mixed": {
			[]string{"not at all", "several days", "more than half the days", "nearly every day",
				"not at all", "several days", "more than half the days", "nearly every day", "several days"},
			13, screening.SeverityModerate,
		},
	}

	for name, tc := range sequences {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.advance(t, "s", 0)

			var out *conversation.ChatOutput
			for _, a := range tc.answers {
				out = h.chat(t, "s", a)
			}
			assert.Equal(t, domain.IntentScreeningComplete, out.Intent)
			assert.Contains(t, out.Reply, fmt.Sprintf("Your score is %d, indicating %s.", tc.score, tc.band))
			assert.False(t, h.session(t, "s").ScreeningInProgress)
		})
	}
}

func TestAfterCompletionTriggersWorkAgain(t *testing.T) {
	h := newHarness(t, nil)
	h.advance(t, "s", domain.QuestionCount-1)
	out := h.chat(t, "s", "several days")
	require.Equal(t, domain.IntentScreeningComplete, out.Intent)

	out = h.chat(t, "s", "hello")
	assert.Equal(t, domain.IntentGreeting, out.Intent)

	out = h.chat(t, "s", "can I redo the assessment")
	assert.Equal(t, domain.IntentScreeningStart, out.Intent)
}

func TestConcurrentAnswersForSameSession(t *testing.T) {
	h := newHarness(t, nil)
	h.advance(t, "s", 0)

	submitted := []string{
		"not at all", "several days", "more than half the days", "nearly every day",
		"Not at all", "SEVERAL DAYS", "more than half the days ", " nearly every day",
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, a := range submitted {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			out, err := h.svc.Chat(context.Background(), conversation.ChatInput{SessionID: "s", Message: a})
			assert.NoError(t, err)
			assert.Equal(t, domain.IntentScreeningAnswer, out.Intent)
		}()
	}
	close(start)
	wg.Wait()

	sess := h.session(t, "s")
	assert.True(t, sess.ScreeningInProgress)
	assert.Equal(t, len(submitted), sess.Step)

	want := make([]string, 0, len(submitted))
	for _, a := range submitted {
		want = append(want, strings.ToLower(strings.TrimSpace(a)))
	}
	assert.ElementsMatch(t, want, sess.Answers)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	h := newHarness(t, nil)

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		id := domain.SessionID(fmt.Sprintf("s-%d", i))
		g.Go(func() error {
			if _, err := h.svc.Chat(context.Background(), conversation.ChatInput{SessionID: id, Message: "phq"}); err != nil {
				return err
			}
			for j := 0; j < domain.QuestionCount; j++ {
				if _, err := h.svc.Chat(context.Background(), conversation.ChatInput{SessionID: id, Message: "several days"}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < 10; i++ {
		sess := h.session(t, domain.SessionID(fmt.Sprintf("s-%d", i)))
		assert.False(t, sess.ScreeningInProgress)
		assert.Zero(t, sess.Step)
	}
}

// corruptingStore hands the engine an inconsistent session once.
type corruptingStore struct {
	*memory.SessionStore
	once sync.Once
}

func (c *corruptingStore) Update(ctx context.Context, id domain.SessionID, fn domain.UpdateFunc) (*domain.Session, error) {
	return c.SessionStore.Update(ctx, id, func(sess *domain.Session) error {
		c.once.Do(func() {
			sess.ScreeningInProgress = true
			sess.Step = 5
			sess.Answers = []string{"not at all"}
		})
		return fn(sess)
	})
}

func TestCorruptSessionIsResetToIdle(t *testing.T) {
	store := &corruptingStore{SessionStore: memory.NewSessionStore()}
	svc := conversation.NewService(llm.NewMockLLM(), store)

	out, err := svc.Chat(context.Background(), conversation.ChatInput{SessionID: "s", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentGreeting, out.Intent, "turn continues from idle")

	sess, err := svc.GetSession(context.Background(), "s")
	require.NoError(t, err)
	assert.NoError(t, sess.Validate())
	assert.False(t, sess.ScreeningInProgress)
}

func TestEscalationEventsAndListing(t *testing.T) {
	h := newHarness(t, nil)

	h.chat(t, "calm", "hello")
	h.chat(t, "risk", "I want to end my life")

	listed, err := h.svc.ListEscalated(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, domain.SessionID("risk"), listed[0].ID)

	evs, err := h.svc.GetSessionEvents(context.Background(), "risk", 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventEscalated, evs[0].Kind)
	assert.NotEmpty(t, evs[0].ID)

	_, err = h.svc.GetSessionEvents(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEventsAreStampedWithTurnTime(t *testing.T) {
	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}
	h := newHarness(t, nil, conversation.WithClock(tick))

	h.chat(t, "s", "phq")
	h.chat(t, "s", "I want to die")

	evs, err := h.svc.GetSessionEvents(context.Background(), "s", 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.EventScreeningStarted, evs[0].Kind)
	assert.Equal(t, domain.EventEscalated, evs[1].Kind)

	sess := h.session(t, "s")
	assert.True(t, evs[0].CreatedAt.Before(evs[1].CreatedAt))
	assert.Equal(t, sess.UpdatedAt, evs[1].CreatedAt, "event carries the commit time of its turn")
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
