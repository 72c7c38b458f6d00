// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import "sync"

// Event is one completion-queue entry: the call that progressed and
// whether the transport reports the step as successful. OK=false means
// the call must be cleaned up without protocol-correct completion.
type Event struct {
	Call *Call
	OK   bool
}

// CompletionQueue is an ordered, blocking multiplexer of completion
// events. Each backend owns exactly one queue; shutting it down is how
// the backend's worker is told to exit. Events pushed before Shutdown
// drain in order; pushes after Shutdown are dropped.
type CompletionQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	events   []Event
	shutdown bool
}

func NewCompletionQueue() *CompletionQueue {
	q := &CompletionQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an event. It reports whether the event was accepted;
// after Shutdown events are dropped and the caller owns the cleanup.
func (q *CompletionQueue) Push(c *Call, ok bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shutdown {
		return false
	}
	q.events = append(q.events, Event{Call: c, OK: ok})
	q.cond.Signal()
	return true
}

// Next blocks until an event is available or the queue has been shut
// down and drained. The second return is false once the queue is
// drained; the worker exits on it.
func (q *CompletionQueue) Next() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.events) == 0 {
		if q.shutdown {
			return Event{}, false
		}
		q.cond.Wait()
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

// Shutdown marks the queue as draining and wakes the worker. Safe to
// call more than once.
func (q *CompletionQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shutdown = true
	q.cond.Broadcast()
}
