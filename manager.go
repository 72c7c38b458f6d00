// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// State is the communication system's lifecycle position.
type State int32

const (
	StateNotStarted State = iota
	StateStarted
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarted:
		return "started"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithTransport selects a registered transport by name. gRPC is the
// default.
func WithTransport(name string) Option {
	return func(m *Manager) { m.transportName = name }
}

// Manager owns one server, the set of registered services, and the
// lifecycle broadcasts that wire backends to server startup and
// shutdown. Backends are created through the Create*Backend factories
// before StartBackends; afterwards the host only talks to the backends
// themselves.
type Manager struct {
	mu            sync.Mutex
	addr          string
	transportName string
	transport     Transport
	services      map[string]bool
	backends      []Backend

	onStart       []func()
	onReady       []func()
	onEstablished []func()
	onShutdown    []func()

	state atomic.Int32
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		transportName: DefaultTransport,
		services:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize binds the manager to a single listening endpoint. All
// method bindings registered afterwards share it.
func (m *Manager) Initialize(port int, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transport != nil {
		return fmt.Errorf("initialize: manager already initialized")
	}
	t, err := newTransport(m.transportName)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	m.transport = t
	m.addr = fmt.Sprintf("%s:%d", address, port)
	return nil
}

// State returns the lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

// Addr returns the configured listen address.
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Transport exposes the underlying transport, mainly so in-process
// setups can drive Invoke against it.
func (m *Manager) Transport() Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

// Lifecycle broadcast subscriptions for collaborators outside the
// backend set.

func (m *Manager) OnStart(f func()) { m.subscribe(&m.onStart, f) }

func (m *Manager) OnReady(f func()) { m.subscribe(&m.onReady, f) }

func (m *Manager) OnConnectionEstablished(f func()) { m.subscribe(&m.onEstablished, f) }

func (m *Manager) OnShutdown(f func()) { m.subscribe(&m.onShutdown, f) }

func (m *Manager) subscribe(hooks *[]func(), f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*hooks = append(*hooks, f)
}

// registerBackend binds a method on the transport, marks its service
// registered, and subscribes the backend to the lifecycle broadcasts.
func (m *Manager) registerBackend(method *Method, build func(*Method, MethodBinding, *CompletionQueue) Backend) (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transport == nil {
		return nil, fmt.Errorf("create backend %s: manager not initialized", method.FullName())
	}
	if m.State() == StateStarted {
		return nil, fmt.Errorf("create backend %s: %w", method.FullName(), ErrServerStarted)
	}
	binding, err := m.transport.Register(method)
	if err != nil {
		return nil, fmt.Errorf("create backend %s: %w", method.FullName(), err)
	}
	if !m.services[method.Service] {
		m.services[method.Service] = true
		log.Printf("[gymlink] manager: service %s registered", method.Service)
	}

	b := build(method, binding, NewCompletionQueue())
	m.backends = append(m.backends, b)
	m.onStart = append(m.onStart, b.Start)
	m.onReady = append(m.onReady, b.Establish)
	m.onShutdown = append(m.onShutdown, b.Shutdown)
	b.Initialize()
	return b, nil
}

// CreatePollingBackend binds a method whose inbound messages the host
// drains with Poll.
func CreatePollingBackend[In, Out any, PIn Message[In], POut Message[Out]](m *Manager, service, method string) (*Consumer[PIn], error) {
	var c *Consumer[PIn]
	_, err := m.registerBackend(NewMethod[In, Out, PIn, POut](service, method), func(mt *Method, b MethodBinding, cq *CompletionQueue) Backend {
		c = newConsumer[PIn](mt, b, cq)
		return c
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateProducerBackend binds a method the host pushes outbound
// messages through with Publish.
func CreateProducerBackend[In, Out any, PIn Message[In], POut Message[Out]](m *Manager, service, method string) (*Producer[POut], error) {
	var p *Producer[POut]
	_, err := m.registerBackend(NewMethod[In, Out, PIn, POut](service, method), func(mt *Method, b MethodBinding, cq *CompletionQueue) Backend {
		p = newProducer[POut](mt, b, cq)
		return p
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateExchangeBackend binds a method the host serves as strict
// Receive/Respond round trips.
func CreateExchangeBackend[In, Out any, PIn Message[In], POut Message[Out]](m *Manager, service, method string) (*Exchange[PIn, POut], error) {
	var ex *Exchange[PIn, POut]
	_, err := m.registerBackend(NewMethod[In, Out, PIn, POut](service, method), func(mt *Method, b MethodBinding, cq *CompletionQueue) Backend {
		ex = newExchange[PIn, POut](mt, b, cq)
		return ex
	})
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// StartBackends binds the listening address, builds the server, and on
// success fires, in order: on-start (backends begin polling), on-ready
// (producers publish initial values), on-connection-established. A
// bind failure moves the manager to StateFailure; it does not retry.
func (m *Manager) StartBackends() error {
	m.mu.Lock()
	if m.transport == nil {
		m.mu.Unlock()
		return fmt.Errorf("start backends: manager not initialized")
	}
	if m.State() == StateStarted {
		m.mu.Unlock()
		return ErrServerStarted
	}
	transport, addr := m.transport, m.addr
	onStart := append([]func(){}, m.onStart...)
	onReady := append([]func(){}, m.onReady...)
	onEstablished := append([]func(){}, m.onEstablished...)
	m.mu.Unlock()

	if err := transport.Start(addr); err != nil {
		m.state.Store(int32(StateFailure))
		return fmt.Errorf("start backends on %s: %w", addr, err)
	}
	m.state.Store(int32(StateStarted))
	log.Printf("[gymlink] manager: serving on %s", addr)

	broadcast(onStart)
	broadcast(onReady)
	broadcast(onEstablished)
	return nil
}

// ShutdownServer stops accepting new calls immediately and fires
// on-shutdown so every backend drains its queue and joins its worker.
// Idempotent; the manager returns to StateNotStarted. Shutdown is
// final for this manager: the transport and its bindings do not
// restart, so serving again takes a fresh Manager.
func (m *Manager) ShutdownServer() {
	m.mu.Lock()
	transport := m.transport
	hooks := make([]func(), len(m.onShutdown))
	copy(hooks, m.onShutdown)
	m.mu.Unlock()

	if transport != nil {
		transport.Stop()
	}

	// Backends drain independently; join them in parallel.
	var g errgroup.Group
	for _, f := range hooks {
		g.Go(func() error {
			f()
			return nil
		})
	}
	_ = g.Wait()

	m.state.Store(int32(StateNotStarted))
	log.Printf("[gymlink] manager: shut down")
}

func broadcast(hooks []func()) {
	for _, f := range hooks {
		f()
	}
}

// ManagerStatus is a point-in-time view of the manager and its
// backends, served by the monitor endpoint.
type ManagerStatus struct {
	State     string         `json:"state"`
	Address   string         `json:"address"`
	Transport string         `json:"transport"`
	Backends  []BackendStats `json:"backends"`
}

// Snapshot collects the current status.
func (m *Manager) Snapshot() ManagerStatus {
	m.mu.Lock()
	backends := make([]Backend, len(m.backends))
	copy(backends, m.backends)
	addr, name := m.addr, m.transportName
	m.mu.Unlock()

	st := ManagerStatus{
		State:     m.State().String(),
		Address:   addr,
		Transport: name,
	}
	for _, b := range backends {
		st.Backends = append(st.Backends, b.Stats())
	}
	return st
}
