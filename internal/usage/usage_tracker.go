// Package usage accounts language model token usage per provider, model,
// agent role and session, persisted as JSON next to the transcript store.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"analyst/internal/logging"
)

const dataVersion = "1"

// Tracker manages token usage recording and persistence.
type Tracker struct {
	mu       sync.Mutex
	data     UsageData
	filePath string
	dirty    bool
}

// NewTracker creates a tracker persisted at path. Existing data is loaded; a
// corrupt file is logged and replaced on the next Save. An empty path keeps
// the tracker in memory only.
func NewTracker(path string) (*Tracker, error) {
	t := &Tracker{
		filePath: path,
		data:     UsageData{Version: dataVersion, Aggregate: newAggregate()},
	}
	if path == "" {
		return t, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage directory: %w", err)
	}
	if err := t.Load(); err != nil {
		logging.Get(logging.CategoryAPI).Warn("ignoring unreadable usage file %s: %v", path, err)
	}
	return t, nil
}

// Load reads the usage data from disk.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var loaded UsageData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	// Partial files leave nil maps.
	agg := newAggregate()
	agg.Total = loaded.Aggregate.Total
	for dst, src := range map[*map[string]TokenCounts]map[string]TokenCounts{
		&agg.ByProvider:  loaded.Aggregate.ByProvider,
		&agg.ByModel:     loaded.Aggregate.ByModel,
		&agg.ByOperation: loaded.Aggregate.ByOperation,
		&agg.BySession:   loaded.Aggregate.BySession,
	} {
		for k, v := range src {
			(*dst)[k] = v
		}
	}
	t.data = UsageData{Version: dataVersion, Aggregate: agg}
	return nil
}

// Save writes the usage data to disk if anything changed.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filePath == "" || !t.dirty {
		return nil
	}
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.filePath, data, 0644); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Path returns the persistence path.
func (t *Tracker) Path() string { return t.filePath }

// Track records one completed call. The operation and session come from ctx.
// A nil tracker ignores the call.
func (t *Tracker) Track(ctx context.Context, provider, model string, input, output int) {
	if t == nil {
		return
	}
	operation := stringValue(ctx, operationKey{})
	session := stringValue(ctx, sessionKey{})

	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Aggregate.Total.Add(input, output)
	addToMap(t.data.Aggregate.ByProvider, provider, input, output)
	addToMap(t.data.Aggregate.ByModel, model, input, output)
	addToMap(t.data.Aggregate.ByOperation, operation, input, output)
	addToMap(t.data.Aggregate.BySession, session, input, output)
	t.dirty = true

	logging.APIDebug("usage: provider=%s model=%s operation=%s in=%d out=%d", provider, model, operation, input, output)
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByProvider = copyTokenCountsMap(stats.ByProvider)
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	stats.ByOperation = copyTokenCountsMap(stats.ByOperation)
	stats.BySession = copyTokenCountsMap(stats.BySession)
	return stats
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}

// =============================================================================
// CONTEXT HELPERS
// =============================================================================

type (
	trackerKey   struct{}
	operationKey struct{}
	sessionKey   struct{}
)

// NewContext returns a context carrying the tracker.
func NewContext(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// FromContext retrieves the tracker, or nil.
func FromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}

// WithOperation tags calls made under ctx with the calling role.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation)
}

// WithSession tags calls made under ctx with a session.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// Track records a call against the tracker carried by ctx, if any.
func Track(ctx context.Context, provider, model string, input, output int) {
	FromContext(ctx).Track(ctx, provider, model, input, output)
}

func stringValue(ctx context.Context, key any) string {
	if s, ok := ctx.Value(key).(string); ok && s != "" {
		return s
	}
	return "unknown"
}
