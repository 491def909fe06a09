package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := BuildPrompt(req)
	// Enough personality to exercise the general-conversation path locally.
	return fmt.Sprintf("I hear you. You said %q. Would you like to tell me a bit more about how that feels?", p.User), nil
}
