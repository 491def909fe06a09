// Package triage holds the stateless text classifiers that drive the
// dialogue cascade. All checks run on a lower-cased copy of the input.
package triage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// Classifier answers the trigger questions for a single message.
type Classifier struct {
	crisis         *matcher
	greeting       *matcher
	motivational   *matcher
	screeningStart *matcher
}

// NewClassifier compiles a lexicon.
func NewClassifier(lx *Lexicon) (*Classifier, error) {
	if lx == nil {
		return nil, fmt.Errorf("nil lexicon")
	}

	var c Classifier
	targets := []struct {
		name string
		rule Rule
		dst  **matcher
	}{
		{"crisis", lx.Crisis, &c.crisis},
		{"greeting", lx.Greeting, &c.greeting},
		{"motivational", lx.Motivational, &c.motivational},
		{"screening_start", lx.ScreeningStart, &c.screeningStart},
	}
	for _, t := range targets {
		m, err := compileRule(t.rule)
		if err != nil {
			return nil, fmt.Errorf("lexicon rule %q: %w", t.name, err)
		}
		*t.dst = m
	}
	return &c, nil
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
)

// Default returns the classifier built from the embedded lexicon.
func Default() *Classifier {
	defaultOnce.Do(func() {
		lx, err := DefaultLexicon()
		if err != nil {
			panic(fmt.Sprintf("triage: embedded lexicon: %v", err))
		}
		c, err := NewClassifier(lx)
		if err != nil {
			panic(fmt.Sprintf("triage: embedded lexicon: %v", err))
		}
		defaultClassifier = c
	})
	return defaultClassifier
}

func (c *Classifier) IsCrisis(text string) bool {
	return c.crisis.match(strings.ToLower(text))
}

func (c *Classifier) IsGreeting(text string) bool {
	return c.greeting.match(strings.ToLower(text))
}

// IsMotivational uses plain substring containment, so "unmotivated" matches.
func (c *Classifier) IsMotivational(text string) bool {
	return c.motivational.match(strings.ToLower(text))
}

func (c *Classifier) IsScreeningStart(text string) bool {
	return c.screeningStart.match(strings.ToLower(text))
}

// Matches lists every trigger the text fires, in cascade priority order.
func (c *Classifier) Matches(text string) []domain.Intent {
	lower := strings.ToLower(text)
	var out []domain.Intent
	if c.crisis.match(lower) {
		out = append(out, domain.IntentCrisis)
	}
	if c.motivational.match(lower) {
		out = append(out, domain.IntentMotivational)
	}
	if c.greeting.match(lower) {
		out = append(out, domain.IntentGreeting)
	}
	if c.screeningStart.match(lower) {
		out = append(out, domain.IntentScreeningStart)
	}
	return out
}

// NormalizeAnswer is the lookup key for screening answers.
func NormalizeAnswer(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
