package agent

import (
	"context"

	"analyst/internal/llm"
	"analyst/internal/logging"
	"analyst/internal/progress"
	"analyst/internal/usage"
)

// Synthesizer turns raw script output into a prose answer.
type Synthesizer struct {
	llm         Completer
	model       string
	temperature float64
	language    string
}

// NewSynthesizer creates a synthesizer answering in language.
func NewSynthesizer(c Completer, model string, temperature float64, language string) *Synthesizer {
	return &Synthesizer{llm: c, model: model, temperature: temperature, language: language}
}

// Synthesize never fails: a model error becomes the answer text. It sees no
// conversation history.
func (s *Synthesizer) Synthesize(ctx context.Context, query, output string) string {
	sink := progress.FromContext(ctx)
	progress.Emit(sink, progress.StageSynthesis, progress.StatusRunning, nil)

	messages := llm.BuildMessages(synthesizerPrompt(s.language), nil, synthesisUserContent(query, output))
	answer, err := s.llm.Complete(usage.WithOperation(ctx, "synthesis"), messages, s.model, s.temperature)
	if err != nil {
		logging.Synthesis("synthesis call failed: %v", err)
		answer = "Error calling LLM API: " + err.Error()
	}

	logging.SynthesisDebug("answer length=%d", len(answer))
	progress.Emit(sink, progress.StageSynthesis, progress.StatusComplete, map[string]any{"answer": answer})
	return answer
}
