// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"fmt"
	"log"
)

// Producer pushes outbound messages of type Out to the client
// asynchronously. Every Publish arms an independent one-shot call with
// the message preset as its response; multiple publishes may be
// outstanding concurrently and no backpressure is applied.
type Producer[Out Payload] struct {
	backendCore

	onEstablish func()
}

func newProducer[Out Payload](m *Method, binding MethodBinding, cq *CompletionQueue) *Producer[Out] {
	p := &Producer[Out]{backendCore: newBackendCore("producer", m, binding, cq)}
	p.worker = newWorker(p.id, p.kind, cq, p.handle)
	return p
}

func (p *Producer[Out]) Initialize() {}

func (p *Producer[Out]) Start() {
	if !p.state.CompareAndSwap(backendIdle, backendStarted) {
		return
	}
	p.worker.start()
}

// OnEstablish registers a hook run once the transport is ready, for
// values that must be published exactly once per new connection (e.g.
// a session-scoped definition).
func (p *Producer[Out]) OnEstablish(f func()) { p.onEstablish = f }

func (p *Producer[Out]) Establish() {
	if p.onEstablish != nil {
		p.onEstablish()
	}
}

// Publish attaches msg as a fresh one-shot call's response and arms it
// on the queue. Ownership of the message transfers to the call. Fails
// fast, releasing the message, if the backend is not running.
func (p *Producer[Out]) Publish(msg Out) error {
	if p.closed() {
		return fmt.Errorf("publish on %s: %w", p.method.FullName(), ErrBackendClosed)
	}
	if !p.started() {
		return fmt.Errorf("publish on %s: %w", p.method.FullName(), ErrBackendNotStarted)
	}
	call := p.newCall(false)
	call.SetResponse(msg)
	if err := call.Arm(); err != nil {
		call.CleanUp()
		return fmt.Errorf("publish on %s: %w", p.method.FullName(), err)
	}
	return nil
}

// Shutdown signals queue shutdown and joins the worker. Idempotent.
func (p *Producer[Out]) Shutdown() {
	p.state.Store(backendClosed)
	p.worker.stop()
}

// handle: producer events only ever represent one-shot sends; advance
// unconditionally.
func (p *Producer[Out]) handle(ev Event) {
	if !ev.OK {
		p.failed.Add(1)
		log.Printf("[gymlink] producer %s: failed completion event, cleaning up call", p.id)
		ev.Call.CleanUp()
		return
	}
	if ev.Call.IsReady() {
		p.delivered.Add(1)
	} else {
		p.completed.Add(1)
	}
	if err := ev.Call.DoWork(); err != nil {
		log.Printf("[gymlink] producer %s: advance call: %v", p.id, err)
	}
}
