package progress

import (
	"analyst/internal/logging"

	"go.uber.org/zap"
)

// Log writes every event to the session log category.
func Log() Sink {
	return SinkFunc(func(e Event) {
		l := logging.Get(logging.CategorySession).Zap()
		fields := []zap.Field{
			zap.String("stage", string(e.Stage)),
			zap.String("status", string(e.Status)),
		}
		if e.SessionID != "" {
			fields = append(fields, zap.String("session", e.SessionID))
		}
		if e.QueryID != "" {
			fields = append(fields, zap.String("query", e.QueryID))
		}
		for k, v := range e.Payload {
			fields = append(fields, zap.Any(k, v))
		}
		if e.Status == StatusFailed || e.Stage == StageError {
			l.Warn("progress", fields...)
			return
		}
		l.Debug("progress", fields...)
	})
}
