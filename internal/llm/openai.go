package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"analyst/internal/usage"
)

// DefaultEndpoint is a local OpenAI-compatible server (LM Studio).
const DefaultEndpoint = "http://localhost:1234/v1/chat/completions"

const maxErrorBody = 4 << 10

// OpenAIProvider posts chat completions to an OpenAI-compatible endpoint.
// The endpoint is the full chat completions URL.
type OpenAIProvider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIProvider creates a provider. An empty endpoint means
// DefaultEndpoint; an empty key sends no Authorization header.
func NewOpenAIProvider(endpoint, apiKey string, client *http.Client) *OpenAIProvider {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAIProvider{endpoint: endpoint, apiKey: apiKey, httpClient: client}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, model string, temperature float64) (string, error) {
	body, err := json.Marshal(openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		Stream:      false,
	})
	if err != nil {
		return "", p.fail(model, 0, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", p.fail(model, 0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", p.fail(model, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := readLimitedBody(resp.Body, maxErrorBody)
		return "", p.fail(model, resp.StatusCode,
			fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(snippet)), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", p.fail(model, resp.StatusCode, "failed to read response", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", p.fail(model, resp.StatusCode, "failed to parse response", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", p.fail(model, resp.StatusCode, "API error: "+parsed.Error.Message, nil)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", p.fail(model, resp.StatusCode, "response has no choices[0].message.content", nil)
	}
	if parsed.Usage != nil {
		usage.Track(ctx, p.Name(), model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	} else {
		usage.Track(ctx, p.Name(), model, 0, 0)
	}
	return *parsed.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) fail(model string, status int, reason string, err error) *ServiceError {
	return &ServiceError{Provider: p.Name(), Model: model, StatusCode: status, Reason: reason, Err: err}
}

// readLimitedBody reads at most limit bytes, marking truncation.
func readLimitedBody(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if int64(len(data)) > limit {
		return string(data[:limit]) + "...(truncated)", err
	}
	return string(data), err
}
