// Package session keeps one analyst conversation per session ID on top of a
// shared dataset snapshot, language model gateway and sandbox.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"analyst/internal/agent"
	"analyst/internal/dataset"
	"analyst/internal/llm"
	"analyst/internal/logging"
	"analyst/internal/progress"
	"analyst/internal/store"
)

// ErrNotFound is returned for session IDs that are neither live nor stored.
var ErrNotFound = errors.New("session not found")

// Transcripts is the persistence the manager writes through to.
// *store.LocalStore satisfies it.
type Transcripts interface {
	CreateSession(ctx context.Context, id, dataset string) error
	CloseSession(ctx context.Context, id string) error
	Session(ctx context.Context, id string) (store.SessionInfo, error)
	RecordTurn(ctx context.Context, rec store.TurnRecord) (int, error)
	History(ctx context.Context, sessionID string, limit int) ([]llm.Turn, error)
	EventSink() progress.Sink
}

// Config holds manager settings.
type Config struct {
	// TTL is how long a session may sit idle before Prune drops it.
	// Zero disables pruning.
	TTL time.Duration

	// Dataset names the loaded data in stored transcripts.
	Dataset string

	Agent agent.Config
}

// Manager owns the live sessions.
type Manager struct {
	mu sync.RWMutex

	// Shared by every session
	frame       *dataset.Frame
	llm         agent.Completer
	exec        agent.Executor
	transcripts Transcripts
	sink        progress.Sink

	cfg      Config
	sessions map[string]*Session
	now      func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTranscripts persists sessions, turns and events.
func WithTranscripts(t Transcripts) Option {
	return func(m *Manager) { m.transcripts = t }
}

// WithSink adds a sink that receives every session's events.
func WithSink(s progress.Sink) Option {
	return func(m *Manager) { m.sink = s }
}

// NewManager creates a session manager over frame.
func NewManager(frame *dataset.Frame, c agent.Completer, exec agent.Executor, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		frame:    frame,
		llm:      c,
		exec:     exec,
		cfg:      cfg,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	logging.Session("session manager ready (ttl=%v, dataset=%s)", cfg.TTL, cfg.Dataset)
	return m
}

// Create starts a new session with an empty history.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	if m.transcripts != nil {
		if err := m.transcripts.CreateSession(ctx, id, m.cfg.Dataset); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}
	s := m.register(id, nil)
	logging.Session("session %s created", id)
	return s, nil
}

// Resume returns the live session id, or rebuilds it from the transcript
// store with its recent history restored.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	if s, ok := m.Get(id); ok {
		return s, nil
	}
	if m.transcripts == nil {
		return nil, ErrNotFound
	}

	if _, err := m.transcripts.Session(ctx, id); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	var history []llm.Turn
	if n := m.cfg.Agent.HistoryLength; n > 0 {
		h, err := m.transcripts.History(ctx, id, n)
		if err != nil {
			return nil, fmt.Errorf("restore history: %w", err)
		}
		history = h
	}
	// Reopens a closed session.
	if err := m.transcripts.CreateSession(ctx, id, m.cfg.Dataset); err != nil {
		return nil, fmt.Errorf("reopen session: %w", err)
	}

	s := m.register(id, history)
	logging.Session("session %s resumed with %d turns of history", id, len(history))
	return s, nil
}

func (m *Manager) register(id string, history []llm.Turn) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Another Resume may have won the race.
	if s, ok := m.sessions[id]; ok {
		return s
	}

	sinks := []progress.Sink{m.sink}
	if m.transcripts != nil {
		sinks = append(sinks, m.transcripts.EventSink())
	}
	sinks = append(sinks, progress.Log())

	now := m.now()
	s := &Session{
		id:          id,
		createdAt:   now,
		lastActive:  now,
		transcripts: m.transcripts,
		now:         m.now,
	}
	s.agent = agent.New(m.frame, m.llm, m.exec, m.cfg.Agent,
		agent.WithSessionID(id),
		agent.WithHistory(history),
		agent.WithSink(progress.Multi(sinks...)),
	)
	m.sessions[id] = s
	return s
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Ask runs query in session id, resuming it from the store if needed.
func (m *Manager) Ask(ctx context.Context, id, query string) (agent.Result, error) {
	s, err := m.Resume(ctx, id)
	if err != nil {
		return agent.Result{}, err
	}
	return s.Ask(ctx, query), nil
}

// Close drops a live session and marks it closed in the store. It waits for
// an in-flight query to finish.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.markClosed(ctx, id)
	logging.Session("session %s closed", id)
	return nil
}

// CloseAll closes every live session.
func (m *Manager) CloseAll(ctx context.Context) {
	for _, info := range m.List() {
		_ = m.Close(ctx, info.ID)
	}
}

func (m *Manager) markClosed(ctx context.Context, id string) {
	if m.transcripts == nil {
		return
	}
	if err := m.transcripts.CloseSession(ctx, id); err != nil {
		logging.Get(logging.CategorySession).Warn("failed to mark session %s closed: %v", id, err)
	}
}

// Prune drops sessions idle for longer than the TTL. Sessions with a query in
// flight are never idle.
func (m *Manager) Prune(ctx context.Context) int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.TTL)

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.markClosed(ctx, id)
	}
	if len(expired) > 0 {
		logging.SessionDebug("pruned %d idle sessions", len(expired))
	}
	return len(expired)
}

// StartPruner prunes every interval until ctx ends or stop is called. stop
// waits for the pruner to exit.
func (m *Manager) StartPruner(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Prune(ctx)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// Info describes a live session.
type Info struct {
	ID         string
	CreatedAt  time.Time
	LastActive time.Time
	Turns      int
}

// List returns the live sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Info{
			ID:         s.id,
			CreatedAt:  s.createdAt,
			LastActive: s.LastActive(),
			Turns:      len(s.agent.History()),
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
