package store

import (
	"context"
	"fmt"
	"time"

	"analyst/internal/llm"
	"analyst/internal/logging"
)

// =============================================================================
// TURNS
// =============================================================================

// TurnRecord is one stored question and answer.
type TurnRecord struct {
	SessionID string
	QueryID   string
	Number    int // 1-based within the session
	Query     string
	Answer    string
	Outcome   string
	Attempts  int
	CreatedAt time.Time
}

// Turn converts to the conversation history form.
func (r TurnRecord) Turn() llm.Turn {
	return llm.Turn{Query: r.Query, Answer: r.Answer}
}

// RecordTurn appends a turn to its session, assigning the next turn number.
func (s *LocalStore) RecordTurn(ctx context.Context, rec TurnRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, rec.SessionID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("lookup session: %w", err)
	}
	if exists == 0 {
		return 0, ErrSessionNotFound
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(turn_number), 0) + 1 FROM turns WHERE session_id = ?`, rec.SessionID,
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("next turn number: %w", err)
	}

	now := formatTime(s.now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, query_id, turn_number, query, answer, outcome, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.QueryID, next, rec.Query, rec.Answer, rec.Outcome, rec.Attempts, now,
	); err != nil {
		logging.StoreError("failed to store turn: session=%s turn=%d: %v", rec.SessionID, next, err)
		return 0, fmt.Errorf("insert turn: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, rec.SessionID); err != nil {
		return 0, fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	logging.StoreDebug("turn stored: session=%s turn=%d outcome=%s", rec.SessionID, next, rec.Outcome)
	return next, nil
}

// Turns returns a session's turns, oldest first. limit > 0 keeps only the
// most recent limit turns.
func (s *LocalStore) Turns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Turns")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, query_id, turn_number, query, answer, outcome, attempts, created_at
		 FROM (
		   SELECT * FROM turns WHERE session_id = ? ORDER BY turn_number DESC LIMIT ?
		 )
		 ORDER BY turn_number ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var r TurnRecord
		var created string
		if err := rows.Scan(&r.SessionID, &r.QueryID, &r.Number, &r.Query, &r.Answer, &r.Outcome, &r.Attempts, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// History returns the last limit turns as conversation history.
func (s *LocalStore) History(ctx context.Context, sessionID string, limit int) ([]llm.Turn, error) {
	recs, err := s.Turns(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Turn, len(recs))
	for i, r := range recs {
		out[i] = r.Turn()
	}
	return out, nil
}
