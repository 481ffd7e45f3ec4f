// Package regression runs YAML-defined question batteries against the agent
// so that prompt, model or sandbox changes can be checked against known
// answers.
package regression

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"analyst/internal/agent"
	"analyst/internal/logging"
)

// Battery is a collection of regression tasks.
type Battery struct {
	Version int    `yaml:"version"`
	Tasks   []Task `yaml:"tasks"`
}

// Task is one question with expectations about its answer.
type Task struct {
	ID    string `yaml:"id"`
	Query string `yaml:"query"`

	// Tasks naming the same session run in one conversation, in file order,
	// so follow-up questions see earlier turns. Empty means a fresh session.
	Session string `yaml:"session,omitempty"`

	ExpectOutcome  string   `yaml:"expect_outcome,omitempty"`  // direct, answered, ...
	ExpectContains []string `yaml:"expect_contains,omitempty"` // case-insensitive substrings of the answer
	MaxAttempts    int      `yaml:"max_attempts,omitempty"`    // fail if more scripts were needed
	TimeoutSec     int      `yaml:"timeout_sec,omitempty"`
}

// Result captures execution outcome for a task.
type Result struct {
	TaskID     string
	Success    bool
	Outcome    agent.Outcome
	Attempts   int
	Answer     string
	Failures   []string
	DurationMs int64
}

// Asker answers questions within one conversation. *session.Session
// satisfies it.
type Asker interface {
	Ask(ctx context.Context, query string) agent.Result
}

// NewSessionFunc opens a fresh conversation.
type NewSessionFunc func(ctx context.Context) (Asker, error)

// LoadBattery reads and validates a YAML battery file.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks task IDs are unique and every task has a query.
func (b *Battery) Validate() error {
	seen := make(map[string]bool, len(b.Tasks))
	for i, t := range b.Tasks {
		if t.ID == "" {
			return fmt.Errorf("task %d: id is required", i+1)
		}
		if seen[t.ID] {
			return fmt.Errorf("task %q: duplicate id", t.ID)
		}
		seen[t.ID] = true
		if strings.TrimSpace(t.Query) == "" {
			return fmt.Errorf("task %q: query is required", t.ID)
		}
	}
	return nil
}

// RunBattery asks every task's question and checks the result. A task
// failing its expectations does not stop the run; an error opening a session
// does.
func RunBattery(ctx context.Context, b *Battery, newSession NewSessionFunc) ([]Result, error) {
	if b == nil || len(b.Tasks) == 0 {
		return nil, nil
	}

	sessions := make(map[string]Asker)
	results := make([]Result, 0, len(b.Tasks))

	for _, task := range b.Tasks {
		asker, ok := sessions[task.Session]
		if !ok || task.Session == "" {
			s, err := newSession(ctx)
			if err != nil {
				return results, fmt.Errorf("task %q: failed to open session: %w", task.ID, err)
			}
			asker = s
			if task.Session != "" {
				sessions[task.Session] = s
			}
		}

		timeout := time.Duration(task.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		tctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		ans := asker.Ask(tctx, task.Query)
		cancel()

		res := Result{
			TaskID:     task.ID,
			Outcome:    ans.Outcome,
			Attempts:   ans.Attempts,
			Answer:     ans.Answer,
			Failures:   check(task, ans),
			DurationMs: time.Since(start).Milliseconds(),
		}
		res.Success = len(res.Failures) == 0
		logging.Session("battery task %s: success=%v outcome=%s attempts=%d", task.ID, res.Success, res.Outcome, res.Attempts)
		results = append(results, res)

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, nil
}

func check(task Task, ans agent.Result) []string {
	var failures []string
	if task.ExpectOutcome != "" && string(ans.Outcome) != task.ExpectOutcome {
		failures = append(failures, fmt.Sprintf("outcome %s, want %s", ans.Outcome, task.ExpectOutcome))
	}
	lower := strings.ToLower(ans.Answer)
	for _, want := range task.ExpectContains {
		if !strings.Contains(lower, strings.ToLower(want)) {
			failures = append(failures, fmt.Sprintf("answer does not mention %q", want))
		}
	}
	if task.MaxAttempts > 0 && ans.Attempts > task.MaxAttempts {
		failures = append(failures, fmt.Sprintf("needed %d attempts, want at most %d", ans.Attempts, task.MaxAttempts))
	}
	return failures
}

// Summary counts passed and failed results.
func Summary(results []Result) (passed, failed int) {
	for _, r := range results {
		if r.Success {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
