package store

import (
	"context"
	"encoding/json"
	"fmt"

	"analyst/internal/logging"
	"analyst/internal/progress"
)

// =============================================================================
// PROGRESS EVENTS
// =============================================================================

// RecordEvent appends a progress event. Events are numbered per query in the
// order they arrive.
func (s *LocalStore) RecordEvent(ctx context.Context, e progress.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	at := e.At
	if at.IsZero() {
		at = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (session_id, query_id, seq, stage, status, payload, created_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE session_id = ? AND query_id = ?), ?, ?, ?, ?)`,
		e.SessionID, e.QueryID, e.SessionID, e.QueryID, string(e.Stage), string(e.Status), string(payload), formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Events returns the events of one query in emission order. An empty queryID
// returns every event of the session.
func (s *LocalStore) Events(ctx context.Context, sessionID, queryID string) ([]progress.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, query_id, stage, status, payload, created_at
		 FROM events
		 WHERE session_id = ? AND (? = '' OR query_id = ?)
		 ORDER BY id`,
		sessionID, queryID, queryID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []progress.Event
	for rows.Next() {
		var e progress.Event
		var stage, status, payload, created string
		if err := rows.Scan(&e.SessionID, &e.QueryID, &stage, &status, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Stage = progress.Stage(stage)
		e.Status = progress.Status(status)
		e.At = parseTime(created)
		if payload != "" && payload != "null" {
			if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventSink records every event it receives. Write failures are logged, never
// surfaced: progress reporting must not affect the query.
func (s *LocalStore) EventSink() progress.Sink {
	return progress.SinkFunc(func(e progress.Event) {
		if err := s.RecordEvent(context.Background(), e); err != nil {
			logging.StoreError("failed to record %s/%s event for query %s: %v", e.Stage, e.Status, e.QueryID, err)
		}
	})
}
