package usage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestTracker_TrackAggregatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "usage.json")
	tracker, err := NewTracker(path)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	ctx := NewContext(context.Background(), tracker)
	ctx = WithSession(ctx, "sess_1")
	Track(WithOperation(ctx, "planner"), "openai", "codestral", 10, 5)
	Track(WithOperation(ctx, "router"), "openai", "gemma", 2, 3)

	stats := tracker.Stats()
	if stats.Total.Input != 12 || stats.Total.Output != 8 || stats.Total.Total != 20 || stats.Total.Calls != 2 {
		t.Fatalf("Total=%+v, want calls=2 input=12 output=8 total=20", stats.Total)
	}
	if got := stats.ByProvider["openai"]; got.Total != 20 {
		t.Fatalf("ByProvider[openai]=%+v, want total=20", got)
	}
	if got := stats.ByModel["codestral"]; got.Total != 15 {
		t.Fatalf("ByModel[codestral]=%+v, want total=15", got)
	}
	if got := stats.ByOperation["router"]; got.Total != 5 || got.Calls != 1 {
		t.Fatalf("ByOperation[router]=%+v, want total=5 calls=1", got)
	}
	if got := stats.BySession["sess_1"]; got.Total != 20 {
		t.Fatalf("BySession[sess_1]=%+v, want total=20", got)
	}

	if err := tracker.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var persisted UsageData
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if persisted.Aggregate.Total.Total != 20 {
		t.Fatalf("persisted total = %d, want 20", persisted.Aggregate.Total.Total)
	}

	reloaded, err := NewTracker(path)
	if err != nil {
		t.Fatalf("NewTracker reload: %v", err)
	}
	if got := reloaded.Stats().ByModel["gemma"]; got.Total != 5 {
		t.Fatalf("reloaded ByModel[gemma]=%+v, want total=5", got)
	}
}

func TestTracker_UntaggedCallsAreUnknown(t *testing.T) {
	tracker, _ := NewTracker("")
	tracker.Track(context.Background(), "gemini", "flash", 1, 1)

	stats := tracker.Stats()
	if stats.ByOperation["unknown"].Calls != 1 || stats.BySession["unknown"].Calls != 1 {
		t.Fatalf("untagged call not bucketed as unknown: %+v", stats)
	}
	if err := tracker.Save(); err != nil {
		t.Fatalf("Save without a path should be a no-op: %v", err)
	}
}

func TestTrack_NoTrackerInContext(t *testing.T) {
	// Must not panic.
	Track(context.Background(), "openai", "m", 1, 2)
	var nilTracker *Tracker
	nilTracker.Track(context.Background(), "openai", "m", 1, 2)
}

func TestTracker_CorruptFileIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	tracker, err := NewTracker(path)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if tracker.Stats().Total.Calls != 0 {
		t.Fatal("corrupt file should start from zero")
	}
}

func TestTracker_StatsIsACopy(t *testing.T) {
	tracker, _ := NewTracker("")
	tracker.Track(context.Background(), "openai", "m", 1, 1)
	stats := tracker.Stats()
	stats.ByModel["m"] = TokenCounts{}
	if tracker.Stats().ByModel["m"].Calls != 1 {
		t.Fatal("mutating Stats() leaked into the tracker")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tracker, _ := NewTracker("")
	ctx := NewContext(context.Background(), tracker)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Track(ctx, "openai", "m", 1, 1)
		}()
	}
	wg.Wait()
	if got := tracker.Stats().Total.Calls; got != 50 {
		t.Fatalf("calls = %d, want 50", got)
	}
}
