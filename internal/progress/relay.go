package progress

import "sync"

// Relay delivers events to a channel without ever blocking the reporter.
// Events are queued in memory and forwarded in order by a single goroutine,
// so a slow consumer delays delivery but never the agent.
type Relay struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
	out    chan Event
	done   chan struct{}
}

// NewRelay starts the forwarding goroutine.
func NewRelay() *Relay {
	r := &Relay{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
		done: make(chan struct{}),
	}
	go r.pump()
	return r
}

// Events is the delivery channel. It is closed after Close once the queue
// has drained.
func (r *Relay) Events() <-chan Event {
	return r.out
}

// Report queues e. Events reported after Close are dropped.
func (r *Relay) Report(e Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, e)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting events. Already queued events are still delivered.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Done is closed when the pump has exited.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

func (r *Relay) pump() {
	defer close(r.done)
	defer close(r.out)
	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		closed := r.closed
		r.mu.Unlock()

		for _, e := range batch {
			r.out <- e
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-r.wake
		}
	}
}
