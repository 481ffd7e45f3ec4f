// Package agent answers natural-language questions about a dataset.
//
// An Agent runs each query through four roles: the Router decides whether
// the dataset is needed, the Planner writes a Go script, the Executor runs it
// and the Synthesizer turns the output into prose. A failed run goes back to
// the Planner together with the failure text, up to MaxRetries scripts per
// query. Every stage transition is reported to the agent's progress sink.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"analyst/internal/dataset"
	"analyst/internal/llm"
	"analyst/internal/logging"
	"analyst/internal/progress"
	"analyst/internal/usage"
)

// Agent is one conversation over one dataset snapshot. Queries may be issued
// concurrently; callers wanting strict turn order serialize them (the session
// manager does).
type Agent struct {
	cfg       Config
	frame     *dataset.Frame
	schema    string
	exec      Executor
	sink      progress.Sink
	sessionID string

	router      *Router
	planner     *Planner
	synthesizer *Synthesizer

	mu      sync.Mutex
	history []llm.Turn
}

// Option customizes an Agent.
type Option func(*Agent)

// WithSink sets the progress sink. Events are stamped with the session and
// query IDs before they reach it.
func WithSink(s progress.Sink) Option {
	return func(a *Agent) { a.sink = s }
}

// WithSessionID tags events and audit records with a session.
func WithSessionID(id string) Option {
	return func(a *Agent) { a.sessionID = id }
}

// WithHistory seeds the conversation, e.g. when resuming a session.
func WithHistory(turns []llm.Turn) Option {
	return func(a *Agent) { a.history = append([]llm.Turn(nil), turns...) }
}

// New builds an agent over frame. The schema summary handed to the planner is
// computed here, once.
func New(frame *dataset.Frame, c Completer, exec Executor, cfg Config, opts ...Option) *Agent {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.HistoryLength < 0 {
		cfg.HistoryLength = 0
	}
	if cfg.AnswerLanguage == "" {
		cfg.AnswerLanguage = DefaultConfig().AnswerLanguage
	}
	if cfg.Packages == nil {
		cfg.Packages = DefaultConfig().Packages
	}

	a := &Agent{
		cfg:    cfg,
		frame:  frame,
		schema: frame.Info(),
		exec:   exec,
		sink:   progress.Discard,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sink == nil {
		a.sink = progress.Discard
	}

	a.router = NewRouter(c, cfg.Models.Router, cfg.Temperatures.Router, cfg.AnswerLanguage)
	a.planner = NewPlanner(c, cfg.Models.Planner, cfg.Temperatures.Planner, a.schema, cfg.Packages)
	a.synthesizer = NewSynthesizer(c, cfg.Models.Synthesizer, cfg.Temperatures.Synthesizer, cfg.AnswerLanguage)
	return a
}

// Schema returns the dataset summary given to the planner.
func (a *Agent) Schema() string { return a.schema }

// SessionID returns the session the agent reports under.
func (a *Agent) SessionID() string { return a.sessionID }

// History returns a copy of every recorded turn.
func (a *Agent) History() []llm.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Turn(nil), a.history...)
}

// Process answers query and returns only the answer text.
func (a *Agent) Process(ctx context.Context, query string) string {
	return a.Ask(ctx, query).Answer
}

// Ask answers query. It never fails: every path ends in an answer string,
// which is recorded in the history whatever the outcome.
func (a *Agent) Ask(ctx context.Context, query string) Result {
	res := Result{QueryID: uuid.NewString()}
	sink := progress.Scoped(a.sink, a.sessionID, res.QueryID)
	ctx = progress.WithSink(ctx, sink)
	ctx = usage.WithSession(ctx, a.sessionID)

	audit := logging.AuditWithQuery(a.sessionID, res.QueryID)
	audit.QueryStart(query)
	start := time.Now()

	history := a.recent()
	res.Decision = a.router.Route(ctx, query, history)

	switch res.Decision.Kind {
	case DirectAnswer:
		res.Answer = res.Decision.Answer
		res.Outcome = OutcomeDirect
		progress.Emit(sink, progress.StageSynthesis, progress.StatusComplete, map[string]any{"answer": res.Answer})
	default:
		res.Answer, res.Outcome, res.Attempts = a.analyze(ctx, sink, audit, query, history)
	}

	a.remember(llm.Turn{Query: query, Answer: res.Answer})
	audit.QueryEnd(string(res.Outcome), res.Attempts, time.Since(start))
	logging.Session("query %s resolved: outcome=%s attempts=%d in %v", res.QueryID, res.Outcome, res.Attempts, time.Since(start))
	return res
}

// analyze runs the plan, execute, repair loop.
func (a *Agent) analyze(ctx context.Context, sink progress.Sink, audit *logging.AuditLogger, query string, history []llm.Turn) (string, Outcome, int) {
	code := a.planner.Plan(ctx, query, history)
	if code == "" {
		return MsgPlanFailed, OutcomePlanFailed, 0
	}

	limit := a.cfg.MaxRetries
	attempt := Attempt{Code: code, Number: 1}
	for {
		progress.Emit(sink, progress.StageExecution, progress.StatusRunning, map[string]any{
			"attempt":     attempt.Number,
			"max_retries": limit,
		})

		obs := a.exec.Execute(ctx, attempt.Code, a.frame)
		audit.SandboxRun(attempt.Number, obs.Succeeded, obs.Duration, obs.ErrorText)

		if obs.Succeeded {
			progress.Emit(sink, progress.StageExecution, progress.StatusComplete, map[string]any{
				"attempt": attempt.Number,
				"output":  obs.Output,
			})
			return a.synthesizer.Synthesize(ctx, query, obs.Output), OutcomeAnswered, attempt.Number
		}

		progress.Emit(sink, progress.StageExecution, progress.StatusFailed, map[string]any{
			"attempt": attempt.Number,
			"output":  obs.ErrorText,
		})
		if attempt.Number >= limit {
			return MsgExhausted, OutcomeExhausted, attempt.Number
		}

		next := a.planner.Replan(ctx, query, history, attempt.Code, obs.ErrorText)
		if next == "" {
			return MsgRepairFailed, OutcomeRepairFailed, attempt.Number
		}
		attempt = Attempt{Code: next, Number: attempt.Number + 1}
	}
}

// recent returns a copy of the last HistoryLength turns.
func (a *Agent) recent() []llm.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.cfg.HistoryLength
	if n <= 0 || len(a.history) == 0 {
		return nil
	}
	if n > len(a.history) {
		n = len(a.history)
	}
	return append([]llm.Turn(nil), a.history[len(a.history)-n:]...)
}

func (a *Agent) remember(t llm.Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, t)
}
