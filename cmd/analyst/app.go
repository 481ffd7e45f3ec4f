package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"analyst/internal/config"
	"analyst/internal/dataset"
	"analyst/internal/llm"
	"analyst/internal/logging"
	"analyst/internal/progress"
	"analyst/internal/sandbox"
	"analyst/internal/session"
	"analyst/internal/store"
	"analyst/internal/usage"
)

// app is the wired runtime shared by ask and chat.
type app struct {
	cfg      *config.Config
	frame    *dataset.Frame
	gateway  *llm.Gateway
	sandbox  *sandbox.Sandbox
	store    *store.LocalStore // nil when the store is disabled
	sessions *session.Manager
	usage    *usage.Tracker
}

// openApp validates cfg, loads the dataset and wires the agent stack. sink
// receives every session's progress events and may be nil.
func openApp(ctx context.Context, cfg *config.Config, sink progress.Sink) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	timer := logging.StartTimer(logging.CategoryBoot, "openApp")
	defer timer.Stop()

	frame, err := dataset.LoadCSV(cfg.Dataset.Path, cfg.ToLoadOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	gateway, err := llm.New(ctx, cfg.ToLLM())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM gateway: %w", err)
	}

	tracker, err := usage.NewTracker(usagePath(cfg))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		frame:   frame,
		gateway: gateway,
		sandbox: sandbox.New(cfg.ToSandbox()),
		usage:   tracker,
	}

	opts := []session.Option{session.WithSink(sink)}
	if cfg.Store.Enabled {
		st, err := store.NewLocalStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.store = st
		opts = append(opts, session.WithTranscripts(st))
	}

	a.sessions = session.NewManager(frame, gateway, a.sandbox, session.Config{
		TTL:     cfg.GetSessionTTL(),
		Dataset: cfg.Dataset.Path,
		Agent:   cfg.ToAgent(),
	}, opts...)

	logging.Boot("ready: %d rows, %d columns, provider=%s", frame.Len(), len(frame.Columns()), cfg.LLM.Provider)
	return a, nil
}

// withUsage makes model calls under ctx count towards the app's tracker.
func (a *app) withUsage(ctx context.Context) context.Context {
	return usage.NewContext(ctx, a.usage)
}

// session resumes id, or starts a new session when id is empty.
func (a *app) session(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return a.sessions.Create(ctx)
	}
	if a.store == nil {
		return nil, fmt.Errorf("cannot resume session %s: the transcript store is disabled", id)
	}
	return a.sessions.Resume(ctx, id)
}

func (a *app) Close() {
	a.sessions.CloseAll(context.Background())
	if err := a.usage.Save(); err != nil {
		logging.APIError("failed to save usage to %s: %v", a.usage.Path(), err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.StoreError("failed to close store: %v", err)
		}
	}
}

// openStore opens the transcript store for the read-only commands.
func openStore(cfg *config.Config) (*store.LocalStore, error) {
	if !cfg.Store.Enabled {
		return nil, fmt.Errorf("the transcript store is disabled (store.enabled: false)")
	}
	return store.NewLocalStore(cfg.Store.Path)
}

// usagePath keeps token accounting next to the transcripts. Without a store
// usage is kept in memory only.
func usagePath(cfg *config.Config) string {
	if !cfg.Store.Enabled {
		return ""
	}
	return filepath.Join(filepath.Dir(cfg.Store.Path), "usage.json")
}

// pruneInterval checks for idle sessions a few times per TTL.
func pruneInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Hour
	}
	if iv := ttl / 4; iv > time.Minute {
		return iv
	}
	return time.Minute
}
