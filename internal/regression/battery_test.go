package regression

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"analyst/internal/agent"
)

func TestLoadBattery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "battery.yaml")
	content := `version: 1
tasks:
  - id: count
    query: How many tweets are there?
    expect_outcome: answered
    expect_contains: ["1200"]
    max_attempts: 2
  - id: hello
    query: hi
    session: chat
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write battery: %v", err)
	}

	b, err := LoadBattery(path)
	if err != nil {
		t.Fatalf("LoadBattery failed: %v", err)
	}
	if b.Version != 1 {
		t.Fatalf("Version = %d, want 1", b.Version)
	}
	if len(b.Tasks) != 2 || b.Tasks[0].ID != "count" || b.Tasks[1].Session != "chat" {
		t.Fatalf("unexpected tasks: %+v", b.Tasks)
	}
	if b.Tasks[0].MaxAttempts != 2 || b.Tasks[0].ExpectContains[0] != "1200" {
		t.Fatalf("expectations not parsed: %+v", b.Tasks[0])
	}
}

func TestLoadBatteryRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing id":    "tasks:\n  - query: q\n",
		"missing query": "tasks:\n  - id: a\n",
		"duplicate id":  "tasks:\n  - id: a\n    query: q\n  - id: a\n    query: r\n",
		"bad yaml":      "tasks: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "b.yaml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadBattery(path); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

// fakeSession answers from a function and remembers what it was asked.
type fakeSession struct {
	asked  []string
	answer func(q string, turn int) agent.Result
}

func (f *fakeSession) Ask(_ context.Context, q string) agent.Result {
	f.asked = append(f.asked, q)
	return f.answer(q, len(f.asked))
}

func TestRunBatteryChecksExpectations(t *testing.T) {
	b := &Battery{Tasks: []Task{
		{ID: "pass", Query: "count", ExpectOutcome: "answered", ExpectContains: []string{"TWELVE"}},
		{ID: "wrong-outcome", Query: "count", ExpectOutcome: "direct"},
		{ID: "missing-text", Query: "count", ExpectContains: []string{"thirteen"}},
		{ID: "too-many-attempts", Query: "count", MaxAttempts: 1},
	}}
	newSession := func(context.Context) (Asker, error) {
		return &fakeSession{answer: func(string, int) agent.Result {
			return agent.Result{Answer: "There are twelve.", Outcome: agent.OutcomeAnswered, Attempts: 2}
		}}, nil
	}

	results, err := RunBattery(context.Background(), b, newSession)
	if err != nil {
		t.Fatalf("RunBattery failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("results len = %d, want 4 (no fail-fast)", len(results))
	}
	if !results[0].Success {
		t.Errorf("pass failed: %v", results[0].Failures)
	}
	for _, r := range results[1:] {
		if r.Success || len(r.Failures) != 1 {
			t.Errorf("%s: success=%v failures=%v, want one failure", r.TaskID, r.Success, r.Failures)
		}
	}
	if !strings.Contains(results[1].Failures[0], "want direct") {
		t.Errorf("unexpected failure text: %q", results[1].Failures[0])
	}

	passed, failed := Summary(results)
	if passed != 1 || failed != 3 {
		t.Errorf("Summary = %d/%d, want 1/3", passed, failed)
	}
}

func TestRunBatterySharedSessions(t *testing.T) {
	b := &Battery{Tasks: []Task{
		{ID: "a1", Query: "first", Session: "a"},
		{ID: "solo", Query: "alone"},
		{ID: "a2", Query: "follow-up", Session: "a"},
	}}
	var opened []*fakeSession
	newSession := func(context.Context) (Asker, error) {
		s := &fakeSession{answer: func(q string, turn int) agent.Result {
			return agent.Result{Answer: q, Outcome: agent.OutcomeDirect}
		}}
		opened = append(opened, s)
		return s, nil
	}

	if _, err := RunBattery(context.Background(), b, newSession); err != nil {
		t.Fatalf("RunBattery failed: %v", err)
	}
	if len(opened) != 2 {
		t.Fatalf("opened %d sessions, want 2", len(opened))
	}
	if got := strings.Join(opened[0].asked, ","); got != "first,follow-up" {
		t.Errorf("shared session asked %q", got)
	}
}

func TestRunBatterySessionError(t *testing.T) {
	b := &Battery{Tasks: []Task{{ID: "x", Query: "q"}}}
	_, err := RunBattery(context.Background(), b, func(context.Context) (Asker, error) {
		return nil, errors.New("store down")
	})
	if err == nil || !strings.Contains(err.Error(), "store down") {
		t.Fatalf("expected session error, got %v", err)
	}
}

func TestRunBatteryEmpty(t *testing.T) {
	results, err := RunBattery(context.Background(), &Battery{}, nil)
	if err != nil || results != nil {
		t.Fatalf("empty battery: results=%v err=%v", results, err)
	}
}
