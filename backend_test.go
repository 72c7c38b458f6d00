// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newInprocManager(t testing.TB) (*Manager, *InprocTransport) {
	t.Helper()
	m := NewManager(WithTransport(TransportInproc))
	if err := m.Initialize(0, "inproc"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tr, ok := m.Transport().(*InprocTransport)
	if !ok {
		t.Fatalf("transport is %T, want inproc", m.Transport())
	}
	return m, tr
}

func pollWithin(t *testing.T, c *Consumer[*pingMsg], d time.Duration) *pingMsg {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if msg, ok := c.Poll(); ok {
			return msg
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Poll: no message within deadline")
	return nil
}

func TestConsumerPollDelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, tr := newInprocManager(t)
	consumer, err := CreatePollingBackend[pingMsg, pongMsg](m, "test.Service", "Start")
	if err != nil {
		t.Fatalf("CreatePollingBackend: %v", err)
	}
	if err := m.StartBackends(); err != nil {
		t.Fatalf("StartBackends: %v", err)
	}
	defer m.ShutdownServer()

	if _, ok := consumer.Poll(); ok {
		t.Fatal("Poll returned a message before any invocation")
	}

	resp, err := tr.Invoke(ctx, "/test.Service/Start", &pingMsg{Value: 42})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	// The consumer acknowledges with a bare response.
	if _, ok := resp.(*pongMsg); !ok {
		t.Fatalf("Invoke response: got %#v", resp)
	}

	msg := pollWithin(t, consumer, time.Second)
	if msg.Value != 42 {
		t.Errorf("polled value: got %d, want 42", msg.Value)
	}
	if _, ok := consumer.Poll(); ok {
		t.Fatal("Poll returned a second message")
	}
}

func TestConsumerFIFOAcrossInvocations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, tr := newInprocManager(t)
	consumer, err := CreatePollingBackend[pingMsg, pongMsg](m, "test.Service", "Start")
	if err != nil {
		t.Fatalf("CreatePollingBackend: %v", err)
	}
	if err := m.StartBackends(); err != nil {
		t.Fatalf("StartBackends: %v", err)
	}
	defer m.ShutdownServer()

	// Sequential invocations of the one reusable call: each returns
	// only after its message moved to the pending queue.
	for i := 1; i <= 3; i++ {
		if _, err := tr.Invoke(ctx, "/test.Service/Start", &pingMsg{Value: i}); err != nil {
			t.Fatalf("Invoke %d: %v", i, err)
		}
	}
	for i := 1; i <= 3; i++ {
		msg := pollWithin(t, consumer, time.Second)
		if msg.Value != i {
			t.Errorf("message %d: got value %d", i, msg.Value)
		}
	}

	stats := consumer.Stats()
	if stats.Delivered != 3 {
		t.Errorf("delivered: got %d, want 3", stats.Delivered)
	}
	if stats.Kind != "consumer" {
		t.Errorf("kind: got %q", stats.Kind)
	}
}

func TestConsumerPollAfterShutdown(t *testing.T) {
	m, _ := newInprocManager(t)
	consumer, err := CreatePollingBackend[pingMsg, pongMsg](m, "test.Service", "Start")
	if err != nil {
		t.Fatalf("CreatePollingBackend: %v", err)
	}
	if err := m.StartBackends(); err != nil {
		t.Fatalf("StartBackends: %v", err)
	}
	m.ShutdownServer()

	if _, ok := consumer.Poll(); ok {
		t.Error("Poll returned a message after shutdown")
	}
	// Idempotent.
	consumer.Shutdown()
}

func TestProducerPublishOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, tr := newInprocManager(t)
	producer, err := CreateProducerBackend[pingMsg, pongMsg](m, "test.Service", "Definitions")
	if err != nil {
		t.Fatalf("CreateProducerBackend: %v", err)
	}
	if err := m.StartBackends(); err != nil {
		t.Fatalf("StartBackends: %v", err)
	}
	defer m.ShutdownServer()

	// Several publishes may be outstanding at once; arming order is
	// delivery order.
	for i := 1; i <= 3; i++ {
		if err := producer.Publish(&pongMsg{Echo: i}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	for i := 1; i <= 3; i++ {
		resp, err := tr.Invoke(ctx, "/test.Service/Definitions", &pingMsg{})
		if err != nil {
			t.Fatalf("Invoke %d: %v", i, err)
		}
		out, ok := resp.(*pongMsg)
		if !ok || out.Echo != i {
			t.Errorf("invocation %d: got %#v", i, resp)
		}
	}
}

func TestProducerLifecycleErrors(t *testing.T) {
	m, _ := newInprocManager(t)
	producer, err := CreateProducerBackend[pingMsg, pongMsg](m, "test.Service", "Definitions")
	if err != nil {
		t.Fatalf("CreateProducerBackend: %v", err)
	}

	if err := producer.Publish(&pongMsg{Echo: 1}); !errors.Is(err, ErrBackendNotStarted) {
		t.Errorf("Publish before start: got %v", err)
	}

	if err := m.StartBackends(); err != nil {
		t.Fatalf("StartBackends: %v", err)
	}
	m.ShutdownServer()

	if err := producer.Publish(&pongMsg{Echo: 2}); !errors.Is(err, ErrBackendClosed) {
		t.Errorf("Publish after shutdown: got %v", err)
	}
}

func TestProducerEstablishHook(t *testing.T) {
	m, _ := newInprocManager(t)
	producer, err := CreateProducerBackend[pingMsg, pongMsg](m, "test.Service", "Definitions")
	if err != nil {
		t.Fatalf("CreateProducerBackend: %v", err)
	}

	published := 0
	producer.OnEstablish(func() {
		published++
		if err := producer.Publish(&pongMsg{Echo: 99}); err != nil {
			t.Errorf("Publish from establish hook: %v", err)
		}
	})

	if err := m.StartBackends(); err != nil {
		t.Fatalf("StartBackends: %v", err)
	}
	defer m.ShutdownServer()

	// On-start runs before on-ready, so the hook sees a started
	// backend exactly once.
	if published != 1 {
		t.Errorf("establish hook ran %d times, want 1", published)
	}
}
