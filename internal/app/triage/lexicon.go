package triage

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// MatchKind selects how a rule's patterns are applied.
type MatchKind string

const (
	MatchRegex     MatchKind = "regex"
	MatchWord      MatchKind = "word"
	MatchSubstring MatchKind = "substring"
)

// Rule is one trigger table.
type Rule struct {
	Match    MatchKind `yaml:"match"`
	Patterns []string  `yaml:"patterns"`
}

// Lexicon holds the trigger tables for every classifier.
type Lexicon struct {
	Crisis         Rule `yaml:"crisis"`
	Greeting       Rule `yaml:"greeting"`
	Motivational   Rule `yaml:"motivational"`
	ScreeningStart Rule `yaml:"screening_start"`
}

// DefaultLexicon returns the built-in tables.
func DefaultLexicon() (*Lexicon, error) {
	return ParseLexicon(defaultLexicon)
}

// LoadLexicon reads a YAML lexicon from path.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon %s: %w", path, err)
	}
	return ParseLexicon(data)
}

// ParseLexicon decodes YAML into a Lexicon. Every rule must be present.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lx Lexicon
	if err := yaml.Unmarshal(data, &lx); err != nil {
		return nil, fmt.Errorf("decoding lexicon: %w", err)
	}

	rules := map[string]Rule{
		"crisis":          lx.Crisis,
		"greeting":        lx.Greeting,
		"motivational":    lx.Motivational,
		"screening_start": lx.ScreeningStart,
	}
	for name, r := range rules {
		if len(r.Patterns) == 0 {
			return nil, fmt.Errorf("lexicon rule %q has no patterns", name)
		}
		switch r.Match {
		case MatchRegex, MatchWord, MatchSubstring:
		default:
			return nil, fmt.Errorf("lexicon rule %q: unknown match kind %q", name, r.Match)
		}
	}

	return &lx, nil
}

// matcher is a compiled Rule.
type matcher struct {
	regexes    []*regexp.Regexp
	substrings []string
}

func compileRule(r Rule) (*matcher, error) {
	m := &matcher{}
	for _, p := range r.Patterns {
		switch r.Match {
		case MatchSubstring:
			m.substrings = append(m.substrings, strings.ToLower(p))
		case MatchWord:
			m.regexes = append(m.regexes, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToLower(p))+`\b`))
		case MatchRegex:
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q: %w", p, err)
			}
			m.regexes = append(m.regexes, re)
		}
	}
	return m, nil
}

// match expects lower-cased text.
func (m *matcher) match(lower string) bool {
	for _, s := range m.substrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	for _, re := range m.regexes {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}
