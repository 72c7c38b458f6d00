// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"context"
	"fmt"
	"sync"
)

// Transport names
const (
	TransportGRPC   = "grpc"   // default
	TransportInproc = "inproc" // in-process, for tests and local trainers
)

// DefaultTransport is the transport used when none is selected.
const DefaultTransport = TransportGRPC

// Transport is the boundary between the engine and the async RPC
// server feeding it. A transport accepts method registrations before
// Start, delivers each inbound request to the oldest armed call of the
// bound method, and flushes still-armed calls with failure events when
// stopped.
type Transport interface {
	// Register binds a method and returns the binding its calls arm
	// on. Must be called before Start.
	Register(m *Method) (MethodBinding, error)

	// Start binds the listening endpoint and begins serving. A bind
	// failure is returned synchronously.
	Start(addr string) error

	// Stop stops accepting new calls immediately and flushes armed
	// calls with failure events. Safe to call more than once.
	Stop()
}

// MethodBinding accepts armed calls for one method.
type MethodBinding interface {
	Arm(c *Call) error

	// Unarm withdraws a still-queued call, reporting whether it was
	// found. A false return means a handler already took it.
	Unarm(c *Call) bool
}

type transportFactory func() Transport

var (
	transportsMu sync.RWMutex
	transports   = map[string]transportFactory{
		TransportGRPC:   func() Transport { return newGRPCTransport() },
		TransportInproc: func() Transport { return NewInprocTransport() },
	}
)

// RegisterTransport registers an additional transport implementation.
func RegisterTransport(name string, f func() Transport) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = f
}

// AvailableTransports returns the registered transport names.
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	return result
}

func newTransport(name string) (Transport, error) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	f, ok := transports[name]
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", name)
	}
	return f(), nil
}

// armQueue is the MethodBinding shared by the built-in transports: a
// FIFO of armed calls the handler side takes from, blocking until one
// is available.
type armQueue struct {
	method *Method

	mu     sync.Mutex
	calls  []*Call
	closed bool
	// notify wakes one waiting taker; capacity 1 so arming never
	// blocks.
	notify chan struct{}
	done   chan struct{}
}

func newArmQueue(m *Method) *armQueue {
	return &armQueue{
		method: m,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (b *armQueue) Arm(c *Call) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("arm %s: %w", b.method.FullName(), ErrBackendClosed)
	}
	b.calls = append(b.calls, c)
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

func (b *armQueue) Unarm(c *Call) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, q := range b.calls {
		if q == c {
			b.calls = append(b.calls[:i], b.calls[i+1:]...)
			return true
		}
	}
	return false
}

// take pops the oldest armed call, blocking until one is armed, the
// context ends, or the binding closes.
func (b *armQueue) take(ctx context.Context) (*Call, error) {
	for {
		b.mu.Lock()
		if len(b.calls) > 0 {
			c := b.calls[0]
			b.calls = b.calls[1:]
			b.mu.Unlock()
			return c, nil
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return nil, ErrBackendClosed
		}
		select {
		case <-b.notify:
		case <-b.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// close drains and returns the calls still armed so the transport can
// flush them with failure events.
func (b *armQueue) close() []*Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	calls := b.calls
	b.calls = nil
	return calls
}
