package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-triage/internal/adapters/llm"
	"github.com/PabloGalante/farum-triage/internal/domain"
)

func TestBuildPromptFlatten(t *testing.T) {
	p := llm.BuildPrompt(domain.GenerateRequest{
		SystemPreamble: "  Be kind.  ",
		UserMessage:    " I had a long day\n",
	})

	assert.Equal(t, "Be kind.", p.System)
	assert.Equal(t, "I had a long day", p.User)
	assert.Equal(t, "Be kind.\n\nUser: I had a long day\nAI:", p.Flatten())

	assert.Equal(t, "User: hi\nAI:", llm.Prompt{User: "hi"}.Flatten())
}

func TestMockLLM(t *testing.T) {
	m := llm.NewMockLLM()

	out, err := m.Generate(context.Background(), domain.GenerateRequest{UserMessage: "rough week"})
	require.NoError(t, err)
	assert.Contains(t, out, `"rough week"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, domain.GenerateRequest{UserMessage: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGenAIClientRequiresCredentials(t *testing.T) {
	_, err := llm.NewGenAIClient(context.Background(), llm.GenAIConfig{})
	assert.Error(t, err)
}
