package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// GenAIConfig selects the backend: an API key uses the Gemini API, a GCP
// project without a key uses Vertex AI.
type GenAIConfig struct {
	APIKey    string
	Project   string
	Location  string
	ModelName string

	// FlattenPrompt sends preamble and message as one user turn instead of
	// using the system instruction slot.
	FlattenPrompt bool
	TopP          float32
	MaxTokens     int32
}

type GenAIClient struct {
	client *genai.Client
	cfg    GenAIConfig
}

// NewGenAIClient creates a domain.ReplyGenerator backed by Gemini.
func NewGenAIClient(ctx context.Context, cfg GenAIConfig) (*GenAIClient, error) {
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.5-flash"
	}
	if cfg.TopP == 0 {
		cfg.TopP = 0.9
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	var cc *genai.ClientConfig
	switch {
	case cfg.APIKey != "":
		cc = &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
	case cfg.Project != "" && cfg.Location != "":
		cc = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	default:
		return nil, fmt.Errorf("genai: either an API key or a GCP project and location must be set")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GenAIClient{client: client, cfg: cfg}, nil
}

// Generate implements domain.ReplyGenerator.
func (g *GenAIClient) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	p := BuildPrompt(req)

	temp := req.Temperature
	topP := g.cfg.TopP
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: g.cfg.MaxTokens,
	}

	var contents []*genai.Content
	if g.cfg.FlattenPrompt {
		contents = []*genai.Content{genai.NewContentFromText(p.Flatten(), genai.RoleUser)}
	} else {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
		contents = []*genai.Content{genai.NewContentFromText(p.User, genai.RoleUser)}
	}

	res, err := g.client.Models.GenerateContent(ctx, g.cfg.ModelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("genai returned empty text")
	}

	return text, nil
}
