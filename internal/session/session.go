package session

import (
	"context"
	"sync"
	"time"

	"analyst/internal/agent"
	"analyst/internal/llm"
	"analyst/internal/logging"
	"analyst/internal/store"
)

// Session is one conversation. Queries within a session run one at a time.
type Session struct {
	id        string
	createdAt time.Time
	agent     *agent.Agent

	transcripts Transcripts
	now         func() time.Time

	// mu serializes queries.
	mu sync.Mutex

	stateMu    sync.Mutex
	lastActive time.Time
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Agent returns the session's agent.
func (s *Session) Agent() *agent.Agent { return s.agent }

// History returns the turns recorded in this session.
func (s *Session) History() []llm.Turn { return s.agent.History() }

// LastActive is when the session last finished a query.
func (s *Session) LastActive() time.Time {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.stateMu.Lock()
	s.lastActive = s.now()
	s.stateMu.Unlock()
}

// Ask answers query, waiting for any earlier query in the session to finish.
// The turn is written to the transcript store; a write failure is logged and
// does not affect the answer.
func (s *Session) Ask(ctx context.Context, query string) agent.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.agent.Ask(ctx, query)
	s.touch()

	if s.transcripts != nil {
		_, err := s.transcripts.RecordTurn(ctx, store.TurnRecord{
			SessionID: s.id,
			QueryID:   res.QueryID,
			Query:     query,
			Answer:    res.Answer,
			Outcome:   string(res.Outcome),
			Attempts:  res.Attempts,
		})
		if err != nil {
			logging.Get(logging.CategorySession).Warn("failed to record turn for session %s: %v", s.id, err)
		}
	}
	return res
}
