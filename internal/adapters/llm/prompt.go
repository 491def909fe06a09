package llm

import (
	"strings"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// Prompt represents the system prompt + the content to send as "user".
type Prompt struct {
	System string
	User   string
}

// BuildPrompt normalizes a generation request into system and user content.
func BuildPrompt(req domain.GenerateRequest) Prompt {
	return Prompt{
		System: strings.TrimSpace(req.SystemPreamble),
		User:   strings.TrimSpace(req.UserMessage),
	}
}

// Flatten renders the prompt as a single transcript turn, for backends
// without a system instruction slot.
func (p Prompt) Flatten() string {
	var b strings.Builder
	if p.System != "" {
		b.WriteString(p.System)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(p.User)
	b.WriteString("\nAI:")
	return b.String()
}
