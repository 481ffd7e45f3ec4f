package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"analyst/internal/usage"
)

// =============================================================================
// GOOGLE GENAI PROVIDER
// =============================================================================

// GeminiProvider calls the Gemini API through the GenAI SDK.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a provider authenticated with apiKey.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Complete implements Provider. System messages become the system
// instruction; assistant turns use the "model" role.
func (p *GeminiProvider) Complete(ctx context.Context, messages []Message, model string, temperature float64) (string, error) {
	system, contents := toGenAIContents(messages)
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", &ServiceError{Provider: p.Name(), Model: model, Reason: "GenAI generate failed", Err: err}
	}

	text, ok := candidateText(resp)
	if !ok {
		return "", &ServiceError{Provider: p.Name(), Model: model, Reason: "response has no candidate text"}
	}
	var in, out int
	if md := resp.UsageMetadata; md != nil {
		in, out = int(md.PromptTokenCount), int(md.CandidatesTokenCount)
	}
	usage.Track(ctx, p.Name(), model, in, out)
	return text, nil
}

func toGenAIContents(messages []Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func candidateText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", false
	}
	return sb.String(), true
}
