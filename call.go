// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"context"
	"fmt"
	"sync"
)

// callStatus is the per-call state machine position.
type callStatus int32

const (
	// statusCreate: constructed or reset, not yet armed on the queue.
	statusCreate callStatus = iota
	// statusProcess: armed; the next completion event for the call
	// means its request has been delivered.
	statusProcess
	// statusFinish: response submitted; the next completion event
	// confirms the transport is done with it.
	statusFinish
)

// Call tracks one RPC invocation cycle. A reusable call re-arms itself
// after completion and serves many invocations; a one-shot call is
// destroyed after one. The call owns its outbound message from the
// moment it is set until Reset or CleanUp releases it.
//
// State transitions are driven from exactly two places: the backend's
// worker goroutine (via DoWork and CleanUp) and, for exchanges, the
// host thread submitting a response. The transport only delivers
// requests and posts events.
type Call struct {
	method   *Method
	binding  MethodBinding
	cq       *CompletionQueue
	reusable bool

	// Log correlation only. The backend assigns both.
	owner string
	id    uint64

	mu      sync.Mutex
	status  callStatus
	done    bool
	aborted bool
	req     Payload
	resp    Payload
	// respCh hands the submitted response to the transport handler
	// parked in serve. Capacity 1: at most one Submit per cycle.
	respCh chan Payload
}

func newCall(owner string, id uint64, m *Method, b MethodBinding, cq *CompletionQueue, reusable bool) *Call {
	return &Call{
		method:   m,
		binding:  b,
		cq:       cq,
		reusable: reusable,
		owner:    owner,
		id:       id,
		respCh:   make(chan Payload, 1),
	}
}

// Arm registers the call with its method binding so the transport can
// deliver the next inbound request to it. Mirrors queue re-arming in
// the async server model: arming happens on creation and reset, never
// lazily on completion, so the method is never starved.
func (c *Call) Arm() error {
	c.mu.Lock()
	if c.done || c.status != statusCreate {
		c.mu.Unlock()
		return fmt.Errorf("arm call %s/%d: %w", c.owner, c.id, errCallState)
	}
	c.status = statusProcess
	c.mu.Unlock()
	return c.binding.Arm(c)
}

// Request returns the delivered inbound message. Only meaningful while
// the call is in the Process state with a request delivered.
func (c *Call) Request() Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

// MutableResponse allocates a fresh outbound message owned by the
// call and returns it for in-place population.
func (c *Call) MutableResponse() Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resp = c.method.NewResponse()
	return c.resp
}

// SetResponse attaches the outbound message. Ownership transfers to
// the call; any previously set response is discarded.
func (c *Call) SetResponse(p Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resp = p
}

// HasResponse reports whether an outbound message has been set.
func (c *Call) HasResponse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resp != nil
}

// IsReady reports whether the call holds a request awaiting a
// response. Workers use it to tell a delivery event from a completion
// event.
func (c *Call) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == statusProcess && !c.done
}

// Submit completes the processing phase: the outbound message is
// handed to the transport and the call moves to Finish. A bare
// response is synthesized if none was set; every Process-state call
// ends with a response being sent.
func (c *Call) Submit() error {
	c.mu.Lock()
	if c.done || c.status != statusProcess {
		c.mu.Unlock()
		return fmt.Errorf("submit call %s/%d: %w", c.owner, c.id, errCallState)
	}
	if c.resp == nil {
		c.resp = c.method.NewResponse()
	}
	resp := c.resp
	c.status = statusFinish
	c.mu.Unlock()

	c.respCh <- resp
	return nil
}

// Reset clears the call so it can serve the next invocation: the
// inbound buffer is dropped, the outbound message released, and the
// call re-armed.
func (c *Call) Reset() error {
	c.mu.Lock()
	if c.done || c.status != statusFinish {
		c.mu.Unlock()
		return fmt.Errorf("reset call %s/%d: %w", c.owner, c.id, errCallState)
	}
	c.req = nil
	c.resp = nil
	c.status = statusCreate
	c.mu.Unlock()

	// A response can sit unconsumed if the remote side vanished
	// between Submit and pickup.
	select {
	case <-c.respCh:
	default:
	}
	return c.Arm()
}

// Finish releases a completed one-shot call.
func (c *Call) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done || c.status != statusFinish {
		return fmt.Errorf("finish call %s/%d: %w", c.owner, c.id, errCallState)
	}
	c.done = true
	c.req = nil
	c.resp = nil
	return nil
}

// Abort marks the call stale and withdraws it from its binding. An
// armed call that was never taken is released immediately and reports
// true. A false return means a transport handler already holds the
// call; serve releases it at delivery and retakes, so the inbound
// request is never answered by the stale call.
func (c *Call) Abort() bool {
	c.mu.Lock()
	c.aborted = true
	c.mu.Unlock()
	if c.binding.Unarm(c) {
		c.CleanUp()
		return true
	}
	return false
}

// CleanUp releases the call from any state without protocol-correct
// completion. Used when a completion event reports failure or the
// queue drains at shutdown.
func (c *Call) CleanUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	c.req = nil
	c.resp = nil
}

// DoWork advances the state machine one step: arm when created,
// submit when processing, and reset or release when finished.
func (c *Call) DoWork() error {
	c.mu.Lock()
	status, done := c.status, c.done
	c.mu.Unlock()
	if done {
		return fmt.Errorf("work on released call %s/%d: %w", c.owner, c.id, errCallState)
	}
	switch status {
	case statusCreate:
		return c.Arm()
	case statusProcess:
		return c.Submit()
	default:
		if c.reusable {
			return c.Reset()
		}
		return c.Finish()
	}
}

// serve runs on the transport handler's goroutine. It delivers the
// decoded request, posts the delivery event, then parks until the
// response is submitted and posts the completion event. Context
// cancellation (client gone, server stopping) posts a failure event
// instead so the worker can clean the call up.
func (c *Call) serve(ctx context.Context, req Payload) (Payload, error) {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		c.CleanUp()
		return nil, errCallAborted
	}
	c.req = req
	c.mu.Unlock()

	if !c.cq.Push(c, true) {
		c.CleanUp()
		return nil, ErrBackendClosed
	}

	select {
	case resp := <-c.respCh:
		c.cq.Push(c, true)
		return resp, nil
	case <-ctx.Done():
		c.cq.Push(c, false)
		return nil, ctx.Err()
	}
}
