package agent

import (
	"context"

	"analyst/internal/llm"
	"analyst/internal/logging"
	"analyst/internal/progress"
	"analyst/internal/usage"
)

// GenerationFailed is reported when a reply carries no code block.
const GenerationFailed = "Agent failed to generate a valid script."

// Planner writes analysis scripts, and rewrites them after a failure.
type Planner struct {
	llm         Completer
	model       string
	temperature float64
	schema      string
	packages    []string
}

// NewPlanner creates a planner for a dataset described by schema.
func NewPlanner(c Completer, model string, temperature float64, schema string, packages []string) *Planner {
	return &Planner{llm: c, model: model, temperature: temperature, schema: schema, packages: packages}
}

// Plan returns a fresh script for query, or "" when none could be produced.
func (p *Planner) Plan(ctx context.Context, query string, history []llm.Turn) string {
	messages := llm.BuildMessages(plannerPrompt(p.packages), history, planUserContent(p.schema, query))
	return p.generate(ctx, progress.StagePlanner, messages)
}

// Replan returns a corrected script given the failed one and its failure
// text, or "" when none could be produced.
func (p *Planner) Replan(ctx context.Context, query string, history []llm.Turn, failedCode, feedback string) string {
	messages := llm.BuildMessages(repairPrompt(p.packages), history, repairUserContent(p.schema, query, failedCode, feedback))
	return p.generate(ctx, progress.StageReflection, messages)
}

func (p *Planner) generate(ctx context.Context, stage progress.Stage, messages []llm.Message) string {
	sink := progress.FromContext(ctx)
	progress.Emit(sink, stage, progress.StatusRunning, nil)

	var code string
	text, err := p.llm.Complete(usage.WithOperation(ctx, string(stage)), messages, p.model, p.temperature)
	if err != nil {
		logging.PlannerWarn("%s: model call failed: %v", stage, err)
	} else if c, ok := extractCodeBlock(text); ok {
		code = c
	} else {
		logging.PlannerWarn("%s: reply had no code block (%d chars)", stage, len(text))
	}

	if code == "" {
		progress.Emit(sink, stage, progress.StatusFailed, map[string]any{"error": GenerationFailed})
		return ""
	}
	logging.PlannerDebug("%s: generated %d bytes of code", stage, len(code))
	progress.Emit(sink, stage, progress.StatusComplete, map[string]any{"code": code})
	return code
}
