package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestCategoryHelpersUseNamedLoggers(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	Routing("decision=%s", "analysis")
	PlannerDebug("attempt %d", 2)
	SandboxWarn("slow run")
	StoreError("boom")

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, "routing", entries[0].LoggerName)
	assert.Equal(t, "decision=analysis", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)

	assert.Equal(t, "planner", entries[1].LoggerName)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)

	assert.Equal(t, "sandbox", entries[2].LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)

	assert.Equal(t, "store", entries[3].LoggerName)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestLevelFiltering(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	APIDebug("hidden")
	API("shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestGetCachesPerCategory(t *testing.T) {
	observe(t, zapcore.InfoLevel)
	assert.Same(t, Get(CategorySession), Get(CategorySession))
	assert.NotSame(t, Get(CategorySession), Get(CategoryDataset))
}

func TestSetLoggerResetsCache(t *testing.T) {
	observe(t, zapcore.InfoLevel)
	before := Get(CategoryBoot)
	logs := observe(t, zapcore.InfoLevel)
	after := Get(CategoryBoot)
	assert.NotSame(t, before, after)

	Boot("hello")
	assert.Equal(t, 1, logs.Len())
}

func TestWithAddsFields(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	Get(CategorySession).With("session", "s-1").Info("opened")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "s-1", logs.All()[0].ContextMap()["session"])
}

func TestAuditScopedFields(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	a := AuditWithQuery("sess", "q1")
	a.QueryStart("how many posts?")
	a.SandboxRun(2, false, 15*time.Millisecond, "panic: boom")
	a.LLMError("planner-model", errors.New("connection refused"))
	a.QueryEnd("answered", 2, time.Second)

	entries := logs.FilterLoggerName("audit").All()
	require.Len(t, entries, 4)

	start := entries[0].ContextMap()
	assert.Equal(t, "query_start", start["event"])
	assert.Equal(t, "sess", start["session"])
	assert.Equal(t, "q1", start["query"])

	run := entries[1]
	assert.Equal(t, zapcore.WarnLevel, run.Level)
	assert.Equal(t, "panic: boom", run.ContextMap()["error"])
	assert.EqualValues(t, 2, run.ContextMap()["attempt"])

	assert.Equal(t, "planner-model", entries[2].ContextMap()["target"])

	end := entries[3]
	assert.Equal(t, zapcore.InfoLevel, end.Level)
	assert.Equal(t, "answered", end.ContextMap()["target"])
}

func TestInitializeWritesFile(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })
	path := filepath.Join(t.TempDir(), "logs", "analyst.log")

	require.NoError(t, Initialize(Config{Level: "debug", Format: "json", File: path}))
	Dataset("loaded %d rows", 42)
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "loaded 42 rows"))
	assert.True(t, strings.Contains(string(data), `"logger":"dataset"`))
}

func TestInitializeBadLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })
	path := filepath.Join(t.TempDir(), "a.log")

	require.NoError(t, Initialize(Config{Level: "loud", Format: "text", File: path}))
	BootDebug("invisible")
	Boot("visible")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "invisible")
	assert.Contains(t, string(data), "visible")
}
