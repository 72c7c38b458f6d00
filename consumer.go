// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"log"
	"sync"
)

// Consumer delivers inbound messages of type In to the host via
// non-blocking Poll. One reusable call serves the method: it re-arms
// itself after every invocation, and each delivered message is moved
// onto the pending queue before the call cycles, so nothing is lost
// across re-arms. Strict FIFO within the backend; no ordering
// guarantee relative to other backends.
type Consumer[In Payload] struct {
	backendCore

	mu      sync.Mutex
	pending []In
	current *Call // the serving reusable call
}

func newConsumer[In Payload](m *Method, binding MethodBinding, cq *CompletionQueue) *Consumer[In] {
	c := &Consumer[In]{backendCore: newBackendCore("consumer", m, binding, cq)}
	c.worker = newWorker(c.id, c.kind, cq, c.handle)
	return c
}

func (c *Consumer[In]) Initialize() {}

// Start arms the first reusable call and starts the worker. Must run
// before any Poll delivers anything.
func (c *Consumer[In]) Start() {
	if !c.state.CompareAndSwap(backendIdle, backendStarted) {
		return
	}
	c.arm()
	c.worker.start()
}

func (c *Consumer[In]) Establish() {}

// Poll pops the oldest delivered message, if any. Non-blocking; after
// Shutdown it returns empty forever.
func (c *Consumer[In]) Poll() (In, bool) {
	var zero In
	if c.closed() {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return zero, false
	}
	msg := c.pending[0]
	c.pending = c.pending[1:]
	return msg, true
}

// Shutdown signals queue shutdown and joins the worker. Idempotent.
func (c *Consumer[In]) Shutdown() {
	c.state.Store(backendClosed)
	c.worker.stop()
}

func (c *Consumer[In]) arm() {
	call := c.newCall(true)
	c.mu.Lock()
	c.current = call
	c.mu.Unlock()
	if err := call.Arm(); err != nil {
		log.Printf("[gymlink] consumer %s: arm: %v", c.id, err)
	}
}

// handle advances the serving call for each completion event. A
// delivery event moves the inbound message onto the pending queue
// before the call is advanced (and eventually reset), so the re-arm
// cannot drop data.
func (c *Consumer[In]) handle(ev Event) {
	if !ev.OK {
		c.failed.Add(1)
		log.Printf("[gymlink] consumer %s: failed completion event, cleaning up call", c.id)
		ev.Call.CleanUp()
		// Keep the method served across client disconnects: if the
		// failed call was the serving one, arm a replacement.
		c.mu.Lock()
		wasCurrent := ev.Call == c.current
		c.mu.Unlock()
		if wasCurrent && c.started() {
			c.arm()
		}
		return
	}

	if ev.Call.IsReady() {
		if msg, ok := ev.Call.Request().(In); ok {
			c.mu.Lock()
			c.pending = append(c.pending, msg)
			c.mu.Unlock()
			c.delivered.Add(1)
		}
	} else {
		c.completed.Add(1)
	}
	if err := ev.Call.DoWork(); err != nil {
		log.Printf("[gymlink] consumer %s: advance call: %v", c.id, err)
	}
}
