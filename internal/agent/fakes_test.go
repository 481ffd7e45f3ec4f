package agent

import (
	"context"
	"errors"
	"sync"

	"analyst/internal/dataset"
	"analyst/internal/llm"
	"analyst/internal/progress"
	"analyst/internal/sandbox"
)

const (
	routerModel  = "router-model"
	plannerModel = "planner-model"
	synthModel   = "synth-model"
)

type reply struct {
	text string
	err  error
}

func say(text string) reply { return reply{text: text} }

func fail(msg string) reply { return reply{err: errors.New(msg)} }

func fenced(code string) string { return "Here you go:\n```go\n" + code + "\n```\nDone." }

// scriptedLLM answers each model from its own queue, repeating the last reply
// once the queue runs dry. A failing reply also reports the error event the
// real gateway would.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   map[string][][]llm.Message
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{replies: make(map[string][]reply), calls: make(map[string][][]llm.Message)}
}

func (s *scriptedLLM) on(model string, replies ...reply) *scriptedLLM {
	s.replies[model] = append(s.replies[model], replies...)
	return s
}

func (s *scriptedLLM) Complete(ctx context.Context, messages []llm.Message, model string, _ float64) (string, error) {
	s.mu.Lock()
	n := len(s.calls[model])
	s.calls[model] = append(s.calls[model], messages)
	queue := s.replies[model]
	s.mu.Unlock()

	if len(queue) == 0 {
		return "", errors.New("no reply scripted for " + model)
	}
	if n >= len(queue) {
		n = len(queue) - 1
	}
	r := queue[n]
	if r.err != nil {
		progress.Emit(progress.FromContext(ctx), progress.StageError, progress.StatusFailed, map[string]any{"error": r.err.Error()})
		return "", r.err
	}
	return r.text, nil
}

func (s *scriptedLLM) callCount(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls[model])
}

func (s *scriptedLLM) lastCall(model string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.calls[model]
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// scriptedExecutor returns observations in order, repeating the last.
type scriptedExecutor struct {
	mu    sync.Mutex
	obs   []sandbox.Observation
	codes []string
}

func (e *scriptedExecutor) Execute(_ context.Context, code string, _ *dataset.Frame) sandbox.Observation {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.codes)
	e.codes = append(e.codes, code)
	if len(e.obs) == 0 {
		return sandbox.Observation{Succeeded: true, Output: "ok\n"}
	}
	if n >= len(e.obs) {
		n = len(e.obs) - 1
	}
	return e.obs[n]
}

func (e *scriptedExecutor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.codes...)
}

func ok(out string) sandbox.Observation {
	return sandbox.Observation{Succeeded: true, Output: out}
}

func broken(text string) sandbox.Observation {
	return sandbox.Observation{ErrorText: text}
}

func testFrame() *dataset.Frame {
	return dataset.MustNew(
		dataset.NewColumn("username", dataset.KindString, []any{"alice", "bob"}),
		dataset.NewColumn("likes", dataset.KindInt, []any{int64(3), int64(9)}),
	)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Models = Models{Router: routerModel, Planner: plannerModel, Synthesizer: synthModel}
	return cfg
}

func newTestAgent(l *scriptedLLM, e *scriptedExecutor, cfg Config) (*Agent, *progress.Recorder) {
	rec := &progress.Recorder{}
	return New(testFrame(), l, e, cfg, WithSink(rec), WithSessionID("sess-1")), rec
}
