// Package progress carries stage-transition notifications from the agent to
// whoever is watching a query: a terminal UI, a transcript store, a log.
//
// Delivery is push-based and fire-and-forget. A Sink is called synchronously,
// in emission order, and its return is never inspected.
package progress

import (
	"context"
	"time"
)

// Stage identifies the pipeline step an event belongs to.
type Stage string

const (
	StageRouter     Stage = "router"
	StagePlanner    Stage = "planner"
	StageReflection Stage = "reflection"
	StageExecution  Stage = "execution"
	StageSynthesis  Stage = "synthesis"
	StageError      Stage = "error"
)

// Status is the state a stage reports.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Event is one progress notification.
type Event struct {
	Stage     Stage
	Status    Status
	Payload   map[string]any
	SessionID string
	QueryID   string
	At        time.Time
}

// Map flattens the event into the {stage, status, ...payload} shape that
// callback consumers expect. Payload keys never override stage or status.
func (e Event) Map() map[string]any {
	m := make(map[string]any, len(e.Payload)+2)
	for k, v := range e.Payload {
		m[k] = v
	}
	m["stage"] = string(e.Stage)
	if e.Status != "" {
		m["status"] = string(e.Status)
	}
	return m
}

// Sink receives progress events.
type Sink interface {
	Report(Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Event)

// Report calls f(e).
func (f SinkFunc) Report(e Event) { f(e) }

// MapFunc adapts a callback taking the flat map shape.
func MapFunc(fn func(map[string]any)) Sink {
	return SinkFunc(func(e Event) { fn(e.Map()) })
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans each event out to every non-nil sink, in order.
func Multi(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return Discard
	case 1:
		return live[0]
	}
	return SinkFunc(func(e Event) {
		for _, s := range live {
			s.Report(e)
		}
	})
}

// Scoped stamps session and query IDs and a timestamp onto every event.
func Scoped(next Sink, sessionID, queryID string) Sink {
	return Stamped(next, sessionID, queryID, time.Now)
}

// Stamped is Scoped with an explicit clock.
func Stamped(next Sink, sessionID, queryID string, now func() time.Time) Sink {
	if next == nil {
		next = Discard
	}
	return SinkFunc(func(e Event) {
		if e.SessionID == "" {
			e.SessionID = sessionID
		}
		if e.QueryID == "" {
			e.QueryID = queryID
		}
		if e.At.IsZero() && now != nil {
			e.At = now()
		}
		next.Report(e)
	})
}

// Emit builds and reports an event.
func Emit(s Sink, stage Stage, status Status, payload map[string]any) {
	if s == nil {
		return
	}
	s.Report(Event{Stage: stage, Status: status, Payload: payload})
}

type sinkKey struct{}

// WithSink returns a context carrying the query-scoped sink.
func WithSink(ctx context.Context, s Sink) context.Context {
	return context.WithValue(ctx, sinkKey{}, s)
}

// FromContext returns the sink carried by ctx, or Discard.
func FromContext(ctx context.Context) Sink {
	if ctx == nil {
		return Discard
	}
	if s, ok := ctx.Value(sinkKey{}).(Sink); ok && s != nil {
		return s
	}
	return Discard
}
