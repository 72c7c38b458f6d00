// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Future resolves once with a value or an error. Wait is the only
// blocking operation in the engine; callers needing a timeout wrap the
// context themselves.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
	})
}

func (f *Future[T]) fail(err error) {
	var zero T
	f.complete(zero, err)
}

// Done is closed when the future has resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or ctx ends.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Exchange couples one outbound send with the next inbound receive as
// an atomic two-phase round trip. Its core invariant: exactly one
// Receive/Respond pair may be in flight at any instant. The slot is
// mutated by both the worker goroutine (on inbound delivery) and the
// host thread (on Respond); ex.mu keeps "fulfill future" and "accept
// new Respond" from racing.
type Exchange[In, Out Payload] struct {
	backendCore

	mu         sync.Mutex
	curr       *Call
	fut        *Future[In]
	hasRequest bool
}

func newExchange[In, Out Payload](m *Method, binding MethodBinding, cq *CompletionQueue) *Exchange[In, Out] {
	ex := &Exchange[In, Out]{backendCore: newBackendCore("exchange", m, binding, cq)}
	ex.worker = newWorker(ex.id, ex.kind, cq, ex.handle)
	return ex
}

func (ex *Exchange[In, Out]) Initialize() {}

func (ex *Exchange[In, Out]) Start() {
	if !ex.state.CompareAndSwap(backendIdle, backendStarted) {
		return
	}
	ex.worker.start()
}

func (ex *Exchange[In, Out]) Establish() {}

// Receive starts a new exchange: a fresh one-shot call is armed and
// the returned future resolves when the transport delivers the paired
// inbound message. Returns ErrExchangeInFlight if the previous
// exchange has not been completed with Respond.
func (ex *Exchange[In, Out]) Receive() (*Future[In], error) {
	if ex.closed() {
		return nil, fmt.Errorf("receive on %s: %w", ex.method.FullName(), ErrBackendClosed)
	}
	if !ex.started() {
		return nil, fmt.Errorf("receive on %s: %w", ex.method.FullName(), ErrBackendNotStarted)
	}

	ex.mu.Lock()
	if ex.curr != nil {
		ex.mu.Unlock()
		return nil, ErrExchangeInFlight
	}
	call := ex.newCall(false)
	fut := newFuture[In]()
	ex.curr = call
	ex.fut = fut
	ex.hasRequest = false
	ex.mu.Unlock()

	if err := call.Arm(); err != nil {
		ex.mu.Lock()
		ex.curr = nil
		ex.fut = nil
		ex.mu.Unlock()
		call.CleanUp()
		return nil, fmt.Errorf("receive on %s: %w", ex.method.FullName(), err)
	}
	return fut, nil
}

// Respond completes the current outstanding exchange: msg is attached
// as the call's response and submitted, which sends it over the
// transport and frees the slot for the next Receive. Returns
// ErrNoExchange if nothing is outstanding.
func (ex *Exchange[In, Out]) Respond(msg Out) error {
	ex.mu.Lock()
	call := ex.curr
	if call == nil {
		ex.mu.Unlock()
		return ErrNoExchange
	}
	ex.curr = nil
	ex.fut = nil
	ex.hasRequest = false
	ex.mu.Unlock()

	call.SetResponse(msg)
	if err := call.Submit(); err != nil {
		return fmt.Errorf("respond on %s: %w", ex.method.FullName(), err)
	}
	return nil
}

// Reset drains stale exchange state after a client disconnect: a
// parked call is unblocked with a synthesized default response rather
// than leaked, the receive future resolves with ErrExchangeAborted if
// it has not already resolved, and the slot is freed for the next
// connection's Receive.
func (ex *Exchange[In, Out]) Reset() {
	ex.mu.Lock()
	call, fut, had := ex.curr, ex.fut, ex.hasRequest
	ex.curr = nil
	ex.fut = nil
	ex.hasRequest = false
	ex.mu.Unlock()

	if call == nil {
		return
	}
	log.Printf("[gymlink] exchange %s: completing stale exchange on reset", ex.id)
	if had {
		// Submit with no response set sends a bare one.
		if err := call.Submit(); err != nil {
			log.Printf("[gymlink] exchange %s: stale submit: %v", ex.id, err)
		}
	} else if !call.Abort() {
		// A handler holds the call; serve releases it at delivery.
		log.Printf("[gymlink] exchange %s: stale call in delivery, released by handler", ex.id)
	}
	if fut != nil {
		fut.fail(ErrExchangeAborted)
	}
}

// Shutdown signals queue shutdown, joins the worker, and resolves any
// parked receive future so no caller hangs. Idempotent.
func (ex *Exchange[In, Out]) Shutdown() {
	ex.state.Store(backendClosed)
	ex.worker.stop()

	ex.mu.Lock()
	fut := ex.fut
	ex.curr = nil
	ex.fut = nil
	ex.hasRequest = false
	ex.mu.Unlock()
	if fut != nil {
		fut.fail(ErrBackendClosed)
	}
}

// handle fulfills the pending receive future on inbound delivery
// without advancing the call out of its processing state; the call
// stays parked until the host calls Respond. All other events advance
// normally.
func (ex *Exchange[In, Out]) handle(ev Event) {
	if !ev.OK {
		ex.failed.Add(1)
		log.Printf("[gymlink] exchange %s: failed completion event, cleaning up call", ex.id)
		ev.Call.CleanUp()
		ex.mu.Lock()
		var fut *Future[In]
		if ev.Call == ex.curr {
			fut = ex.fut
			ex.curr = nil
			ex.fut = nil
			ex.hasRequest = false
		}
		ex.mu.Unlock()
		if fut != nil {
			fut.fail(ErrExchangeAborted)
		}
		return
	}

	ex.mu.Lock()
	if ev.Call == ex.curr && !ex.hasRequest && ev.Call.IsReady() {
		ex.hasRequest = true
		fut := ex.fut
		msg, ok := ev.Call.Request().(In)
		ex.mu.Unlock()
		ex.delivered.Add(1)
		if ok && fut != nil {
			// The call will not see another event until Respond
			// submits it, so the future cannot double-resolve.
			fut.complete(msg, nil)
		}
		return
	}
	ex.mu.Unlock()

	if !ev.Call.IsReady() {
		ex.completed.Add(1)
	}
	if err := ev.Call.DoWork(); err != nil {
		log.Printf("[gymlink] exchange %s: advance call: %v", ex.id, err)
	}
}
