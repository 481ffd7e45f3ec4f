package agent

import (
	"context"

	"analyst/internal/dataset"
	"analyst/internal/llm"
	"analyst/internal/sandbox"
)

// Completer is the language model contract the roles depend on.
// *llm.Gateway satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, model string, temperature float64) (string, error)
}

// Executor runs one script. *sandbox.Sandbox satisfies it. Implementations
// must not mutate frame.
type Executor interface {
	Execute(ctx context.Context, code string, frame *dataset.Frame) sandbox.Observation
}

// DecisionKind is the router's classification.
type DecisionKind string

const (
	Analysis     DecisionKind = "analysis"
	DirectAnswer DecisionKind = "direct_answer"
)

// Decision is the router's verdict. Answer is set only for DirectAnswer.
type Decision struct {
	Kind   DecisionKind
	Answer string
}

// Attempt is one generated script and its 1-based position in the retry loop.
type Attempt struct {
	Code   string
	Number int
}

// Outcome names how a query was resolved.
type Outcome string

const (
	OutcomeDirect       Outcome = "direct"
	OutcomeAnswered     Outcome = "answered"
	OutcomePlanFailed   Outcome = "plan_failed"
	OutcomeRepairFailed Outcome = "repair_failed"
	OutcomeExhausted    Outcome = "exhausted"
)

// User-visible answers for failed queries.
const (
	MsgPlanFailed   = "Agent failed to create a script."
	MsgRepairFailed = "Agent failed to recover from error."
	MsgExhausted    = "Agent failed to recover after multiple attempts."
)

// Result describes one answered query.
type Result struct {
	QueryID  string
	Answer   string
	Outcome  Outcome
	Attempts int // scripts executed
	Decision Decision
}

// Models names the model used by each role.
type Models struct {
	Router      string
	Planner     string
	Synthesizer string
}

// Temperatures holds the sampling temperature of each role.
type Temperatures struct {
	Router      float64
	Planner     float64
	Synthesizer float64
}

// Config tunes an Agent.
type Config struct {
	Models         Models
	Temperatures   Temperatures
	MaxRetries     int // scripts executed per query, at least 1
	HistoryLength  int // turns shown to router and planner; 0 shows none
	AnswerLanguage string
	// Packages are the imports the planner is told it may use.
	Packages []string
}

// DefaultConfig mirrors the stock deployment against a local LM Studio.
func DefaultConfig() Config {
	return Config{
		Models: Models{
			Router:      "google/gemma-3-12b",
			Planner:     "mistralai/codestral-22b-v0.1",
			Synthesizer: "google/gemma-3-12b",
		},
		Temperatures: Temperatures{
			Router:      0.2,
			Planner:     0.3,
			Synthesizer: 0.7,
		},
		MaxRetries:     3,
		HistoryLength:  3,
		AnswerLanguage: "Arabic",
		Packages:       sandbox.DefaultAllowedPackages(),
	}
}
