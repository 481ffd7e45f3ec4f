package logging

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one kind of audit record.
type AuditEventType string

const (
	AuditQueryStart  AuditEventType = "query_start"
	AuditQueryEnd    AuditEventType = "query_end"
	AuditRouteDecide AuditEventType = "route_decide"
	AuditSandboxRun  AuditEventType = "sandbox_run"
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMError    AuditEventType = "llm_error"
	AuditSessionOpen AuditEventType = "session_open"
	AuditSessionEnd  AuditEventType = "session_end"
)

// AuditEvent is one structured audit record.
type AuditEvent struct {
	EventType  AuditEventType
	SessionID  string
	QueryID    string
	Target     string
	Success    bool
	DurationMs int64
	Error      string
	Fields     map[string]interface{}
}

// AuditLogger writes audit events to the audit category.
type AuditLogger struct {
	sessionID string
	queryID   string
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithQuery creates an audit logger scoped to a session and query.
func AuditWithQuery(sessionID, queryID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID, queryID: queryID}
}

// Log writes the event, filling correlation IDs from the scope when unset.
func (a *AuditLogger) Log(event AuditEvent) {
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}
	if event.QueryID == "" {
		event.QueryID = a.queryID
	}

	fields := []zap.Field{
		zap.String("event", string(event.EventType)),
		zap.Bool("success", event.Success),
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session", event.SessionID))
	}
	if event.QueryID != "" {
		fields = append(fields, zap.String("query", event.QueryID))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.DurationMs > 0 {
		fields = append(fields, zap.Int64("dur_ms", event.DurationMs))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	l := Get(CategoryAudit).Zap()
	if event.Success {
		l.Info("audit", fields...)
	} else {
		l.Warn("audit", fields...)
	}
}

// QueryStart records the beginning of a query.
func (a *AuditLogger) QueryStart(query string) {
	a.Log(AuditEvent{
		EventType: AuditQueryStart,
		Success:   true,
		Fields:    map[string]interface{}{"query_len": len(query)},
	})
}

// QueryEnd records how a query resolved.
func (a *AuditLogger) QueryEnd(outcome string, attempts int, elapsed time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditQueryEnd,
		Target:     outcome,
		Success:    outcome == "answered" || outcome == "direct",
		DurationMs: elapsed.Milliseconds(),
		Fields:     map[string]interface{}{"attempts": attempts},
	})
}

// SandboxRun records one script execution.
func (a *AuditLogger) SandboxRun(attempt int, succeeded bool, elapsed time.Duration, errText string) {
	a.Log(AuditEvent{
		EventType:  AuditSandboxRun,
		Success:    succeeded,
		DurationMs: elapsed.Milliseconds(),
		Error:      errText,
		Fields:     map[string]interface{}{"attempt": attempt},
	})
}

// LLMError records a failed gateway call.
func (a *AuditLogger) LLMError(model string, err error) {
	a.Log(AuditEvent{
		EventType: AuditLLMError,
		Target:    model,
		Success:   false,
		Error:     err.Error(),
	})
}
