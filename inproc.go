// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// InprocTransport delivers requests to armed calls without any
// sockets. It backs tests and same-process trainers: the "client" side
// is Invoke, which behaves like one remote unary call.
type InprocTransport struct {
	mu       sync.Mutex
	bindings map[string]*armQueue
	started  bool
}

func NewInprocTransport() *InprocTransport {
	return &InprocTransport{bindings: make(map[string]*armQueue)}
}

func (t *InprocTransport) Register(m *Method) (MethodBinding, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil, fmt.Errorf("register %s: %w", m.FullName(), ErrServerStarted)
	}
	if b, ok := t.bindings[m.FullName()]; ok {
		return b, nil
	}
	b := newArmQueue(m)
	t.bindings[m.FullName()] = b
	return b, nil
}

func (t *InprocTransport) Start(string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrServerStarted
	}
	t.started = true
	return nil
}

func (t *InprocTransport) Stop() {
	t.mu.Lock()
	var flush []*Call
	for _, b := range t.bindings {
		flush = append(flush, b.close()...)
	}
	t.mu.Unlock()

	for _, c := range flush {
		if !c.cq.Push(c, false) {
			c.CleanUp()
		}
	}
}

// Invoke performs one call against a bound method, exactly as a remote
// client would: the request is handed to the oldest armed call and the
// submitted response is returned. Blocks until the host side responds
// or ctx ends.
func (t *InprocTransport) Invoke(ctx context.Context, fullMethod string, req Payload) (Payload, error) {
	t.mu.Lock()
	b, ok := t.bindings[fullMethod]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("inproc invoke: unknown method %s", fullMethod)
	}
	for {
		c, err := b.take(ctx)
		if err != nil {
			return nil, fmt.Errorf("inproc invoke %s: %w", fullMethod, err)
		}
		resp, err := c.serve(ctx, req)
		if errors.Is(err, errCallAborted) {
			continue
		}
		return resp, err
	}
}
