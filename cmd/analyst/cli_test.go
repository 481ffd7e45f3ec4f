package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyst/internal/config"
	"analyst/internal/progress"
	"analyst/internal/store"
)

const testCSV = "post.text,post.username,post_metrics.like_count,extra\n" +
	"hello world,alice,3,x\n" +
	"second post,bob,5,y\n"

// workspace writes a dataset and a config pointing at it and at a private
// store, returning the config path.
func workspace(t *testing.T, mutate func(*config.Config)) (string, *config.Config) {
	t.Helper()
	for _, k := range []string{"ANALYST_LLM_ENDPOINT", "ANALYST_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "ANALYST_DATA", "ANALYST_DB"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	data := filepath.Join(dir, "tweets.csv")
	require.NoError(t, os.WriteFile(data, []byte(testCSV), 0644))

	c := config.DefaultConfig()
	c.Dataset.Path = data
	c.Store.Path = filepath.Join(dir, "db", "transcripts.db")
	c.Logging.File = filepath.Join(dir, "analyst.log")
	if mutate != nil {
		mutate(c)
	}
	path := filepath.Join(dir, "analyst.yaml")
	require.NoError(t, c.Save(path))
	return path, c
}

// execute runs the root command with fresh flag state.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, dataPath, verbose = config.DefaultPath, "", false
	askSession, askProgress, askJSON = "", false, false
	schemaDescribe, schemaHead = false, 0
	sessionsLimit, historyEvents, historyScripts = 20, false, false
	configForce = false
	evalAnswers = false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSchemaCmd(t *testing.T) {
	path, _ := workspace(t, nil)

	out, err := execute(t, "schema", "--config", path, "--head", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows")
	assert.Contains(t, out, "text")
	assert.Contains(t, out, "likes")
	assert.NotContains(t, out, "extra", "unmapped columns are dropped")
	assert.Contains(t, out, "hello world")
	assert.NotContains(t, out, "second post", "--head 1 shows one row")
}

func TestSchemaCmdMissingData(t *testing.T) {
	path, _ := workspace(t, nil)
	_, err := execute(t, "schema", "--config", path, "--data", filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	for _, k := range []string{"ANALYST_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "ANALYST_DATA", "ANALYST_DB"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "conf", "analyst.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Models, loaded.Models)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestConfigShowRedactsKey(t *testing.T) {
	path, _ := workspace(t, nil)
	t.Setenv("ANALYST_LLM_API_KEY", "sk-secret")

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "<redacted>")
}

func TestSessionsAndHistory(t *testing.T) {
	path, c := workspace(t, nil)

	out, err := execute(t, "sessions", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No stored sessions.")

	st, err := store.NewLocalStore(c.Store.Path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, "sess-1", "tweets.csv"))
	_, err = st.RecordTurn(ctx, store.TurnRecord{SessionID: "sess-1", QueryID: "q1", Query: "who posted most?", Answer: "alice", Outcome: "answered", Attempts: 2})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err = execute(t, "sessions", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "sess-1")
	assert.Contains(t, out, "Total: 1 sessions")

	out, err = execute(t, "history", "sess-1", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Q: who posted most?")
	assert.Contains(t, out, "A: alice")
	assert.Contains(t, out, "[answered, 2 attempts]")

	_, err = execute(t, "history", "nope", "--config", path)
	assert.ErrorContains(t, err, "not found")
}

func TestSessionsStoreDisabled(t *testing.T) {
	path, _ := workspace(t, func(c *config.Config) { c.Store.Enabled = false })
	_, err := execute(t, "sessions", "--config", path)
	assert.ErrorContains(t, err, "disabled")
}

// chatServer answers every router call with a direct answer.
func chatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, _ := json.Marshal(map[string]string{"decision": "direct_answer", "answer": answer})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": string(content)}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAskCmd(t *testing.T) {
	srv := chatServer(t, "Hello! Ask me about the tweets.")
	path, c := workspace(t, func(c *config.Config) { c.LLM.Endpoint = srv.URL })

	out, err := execute(t, "ask", "--config", path, "hi", "there")
	require.NoError(t, err)
	assert.Equal(t, "Hello! Ask me about the tweets.\n", out)

	st, err := store.NewLocalStore(c.Store.Path)
	require.NoError(t, err)
	defer st.Close()
	list, err := st.Sessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	turns, err := st.Turns(context.Background(), list[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hi there", turns[0].Query)
	assert.Equal(t, "direct", turns[0].Outcome)

	out, err = execute(t, "usage", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "router")
	assert.NotContains(t, out, "No model calls recorded.")
}

func TestUsageCmdEmpty(t *testing.T) {
	path, _ := workspace(t, nil)
	out, err := execute(t, "usage", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No model calls recorded.")
}

func TestAskCmdJSONAndResume(t *testing.T) {
	srv := chatServer(t, "sure")
	path, _ := workspace(t, func(c *config.Config) { c.LLM.Endpoint = srv.URL })

	out, err := execute(t, "ask", "--config", path, "--json", "first")
	require.NoError(t, err)
	var first struct {
		SessionID string `json:"session_id"`
		Outcome   string `json:"outcome"`
		Answer    string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, "direct", first.Outcome)
	assert.Equal(t, "sure", first.Answer)

	_, err = execute(t, "ask", "--config", path, "--session", first.SessionID, "second")
	require.NoError(t, err)

	out, err = execute(t, "history", first.SessionID, "--config", path, "--events")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Q: "))
	assert.Contains(t, out, "Decision: direct_answer")

	_, err = execute(t, "ask", "--config", path, "--session", "missing", "third")
	assert.Error(t, err)
}

func TestAskCmdInvalidConfig(t *testing.T) {
	path, _ := workspace(t, func(c *config.Config) { c.LLM.Provider = "carrier-pigeon" })
	_, err := execute(t, "ask", "--config", path, "q")
	assert.ErrorContains(t, err, "invalid config")
}

func TestRenderScripts(t *testing.T) {
	events := []progress.Event{
		{Stage: progress.StagePlanner, Status: progress.StatusRunning},
		{Stage: progress.StagePlanner, Status: progress.StatusComplete, Payload: map[string]any{"code": "x := 1\nfmt.Println(y)\n"}},
		{Stage: progress.StageExecution, Status: progress.StatusFailed, Payload: map[string]any{"output": "undefined: y"}},
		{Stage: progress.StageReflection, Status: progress.StatusComplete, Payload: map[string]any{"code": "x := 1\nfmt.Println(x)\n"}},
	}

	out := renderScripts(events)
	assert.Contains(t, out, "Script 1:\nx := 1\nfmt.Println(y)\n")
	assert.Contains(t, out, "Repair 1 (+1 -1):")
	assert.Contains(t, out, "-fmt.Println(y)\n+fmt.Println(x)\n")
	assert.Empty(t, renderScripts(events[:1]))
}

func TestEvalCmd(t *testing.T) {
	srv := chatServer(t, "Hello there")
	path, _ := workspace(t, func(c *config.Config) { c.LLM.Endpoint = srv.URL })

	battery := filepath.Join(t.TempDir(), "battery.yaml")
	require.NoError(t, os.WriteFile(battery, []byte(`version: 1
tasks:
  - id: greet
    query: hi
    expect_outcome: direct
    expect_contains: ["hello"]
`), 0644))

	out, err := execute(t, "eval", battery, "--config", path, "--answers")
	require.NoError(t, err)
	assert.Contains(t, out, "greet")
	assert.Contains(t, out, "Passed: 1/1")
	assert.Contains(t, out, "Hello there")

	require.NoError(t, os.WriteFile(battery, []byte(`tasks:
  - id: greet
    query: hi
    expect_outcome: answered
`), 0644))
	out, err = execute(t, "eval", battery, "--config", path)
	assert.ErrorContains(t, err, "1 of 1 tasks failed")
	assert.Contains(t, out, "FAIL")
}
