// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Backend is the lifecycle surface the manager drives. Each backend
// binds one RPC method to one channel pattern and owns one completion
// queue plus one worker goroutine.
type Backend interface {
	// ID is the backend's correlation identifier, assigned at
	// construction.
	ID() string

	// Initialize prepares the backend before the server starts.
	Initialize()

	// Start arms the backend's calls and starts its worker. Broadcast
	// by the manager once the server is up.
	Start()

	// Establish runs once the transport is ready, for backends that
	// must act exactly once per new connection.
	Establish()

	// Shutdown drains the completion queue and joins the worker.
	// Idempotent.
	Shutdown()

	// Stats reports the backend's counters for monitoring.
	Stats() BackendStats
}

// BackendStats is a point-in-time snapshot of one backend's counters.
type BackendStats struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Method    string `json:"method"`
	Delivered uint64 `json:"delivered"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

// Backend lifecycle states.
const (
	backendIdle int32 = iota
	backendStarted
	backendClosed
)

// backendCore carries the pieces every backend shares: the method
// binding, the completion queue, the worker, lifecycle state, and
// counters.
type backendCore struct {
	id      string
	kind    string
	method  *Method
	binding MethodBinding
	cq      *CompletionQueue
	worker  *worker
	state   atomic.Int32
	seq     atomic.Uint64

	delivered atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

func newBackendCore(kind string, m *Method, b MethodBinding, cq *CompletionQueue) backendCore {
	return backendCore{
		id:      uuid.NewString()[:8],
		kind:    kind,
		method:  m,
		binding: b,
		cq:      cq,
	}
}

func (b *backendCore) ID() string { return b.id }

func (b *backendCore) Stats() BackendStats {
	return BackendStats{
		ID:        b.id,
		Kind:      b.kind,
		Method:    b.method.FullName(),
		Delivered: b.delivered.Load(),
		Completed: b.completed.Load(),
		Failed:    b.failed.Load(),
	}
}

// newCall allocates a call owned by this backend with the next
// correlation sequence number.
func (b *backendCore) newCall(reusable bool) *Call {
	return newCall(b.id, b.seq.Add(1), b.method, b.binding, b.cq, reusable)
}

func (b *backendCore) started() bool { return b.state.Load() == backendStarted }
func (b *backendCore) closed() bool  { return b.state.Load() == backendClosed }
