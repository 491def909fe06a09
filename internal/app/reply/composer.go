// Package reply builds the user-facing text for each branch of the dialogue.
package reply

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/PabloGalante/farum-triage/internal/app/screening"
)

// IntN returns a uniform integer in [0, n).
type IntN func(n int) int

// Composer renders replies. Only Motivational and Greeting are random.
type Composer struct {
	intN IntN
}

// NewComposer uses the global math/rand source.
func NewComposer() *Composer {
	return &Composer{intN: rand.IntN}
}

// NewSeededComposer returns a composer with a deterministic source, safe for
// concurrent use.
func NewSeededComposer(seed uint64) *Composer {
	var mu sync.Mutex
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Composer{intN: func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return r.IntN(n)
	}}
}

// NewComposerWith injects an arbitrary source.
func NewComposerWith(intN IntN) *Composer {
	if intN == nil {
		intN = rand.IntN
	}
	return &Composer{intN: intN}
}

func (c *Composer) pick(candidates []string) string {
	return candidates[c.intN(len(candidates))]
}

func (c *Composer) Crisis() string { return crisisReply }

func (c *Composer) Fallback() string { return fallbackReply }

func (c *Composer) Motivational() string { return c.pick(motivationalMessages) }

func (c *Composer) Greeting() string { return c.pick(greetingReplies) }

// ScreeningIntro opens the questionnaire with the first question.
func (c *Composer) ScreeningIntro() string {
	q, _ := screening.Question(0)
	return introLine + "\n" + q + "\n" + formatHint
}

// NextQuestion asks the question at step.
func (c *Composer) NextQuestion(step int) string {
	q, _ := screening.Question(step)
	return q + "\n" + formatHint
}

// Reprompt repeats the unanswered question at step after an unrecognized answer.
func (c *Composer) Reprompt(step int) string {
	q, _ := screening.Question(step)
	return repromptHint + "\n\n" + q
}

// Completion reports the final score.
func (c *Composer) Completion(res screening.Result) string {
	return fmt.Sprintf(completionTemplate, res.Score, res.Severity)
}
