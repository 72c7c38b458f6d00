// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// grpcTransport serves the engine's methods on one grpc.Server. Each
// bound method gets a dynamically built MethodDesc whose handler
// bridges the synchronous grpc handler model to the engine's armed
// calls: decode, hand to the oldest armed call, park until the host
// submits a response.
type grpcTransport struct {
	mu       sync.Mutex
	services map[string]map[string]*armQueue
	server   *grpc.Server
	lis      net.Listener
	started  bool
}

func newGRPCTransport() *grpcTransport {
	return &grpcTransport{services: make(map[string]map[string]*armQueue)}
}

func (t *grpcTransport) Register(m *Method) (MethodBinding, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil, fmt.Errorf("register %s: %w", m.FullName(), ErrServerStarted)
	}
	methods, ok := t.services[m.Service]
	if !ok {
		methods = make(map[string]*armQueue)
		t.services[m.Service] = methods
	}
	if b, ok := methods[m.Name]; ok {
		return b, nil
	}
	b := newArmQueue(m)
	methods[m.Name] = b
	return b, nil
}

// Start binds the listening endpoint, builds the server with every
// registered service, and serves in the background. Bind errors are
// synchronous; the caller transitions to its failure state on them.
func (t *grpcTransport) Start(addr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrServerStarted
	}

	lis, err := listenAddr(addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv := grpc.NewServer(grpc.ForceServerCodec(PayloadCodec{}))
	for name, methods := range t.services {
		desc := &grpc.ServiceDesc{
			ServiceName: name,
			HandlerType: (*any)(nil),
		}
		for _, b := range methods {
			desc.Methods = append(desc.Methods, grpc.MethodDesc{
				MethodName: b.method.Name,
				Handler:    methodHandler(b),
			})
		}
		srv.RegisterService(desc, nil)
	}

	t.server = srv
	t.lis = lis
	t.started = true
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Printf("[gymlink] grpc server exited: %v", err)
		}
	}()
	return nil
}

// Stop stops accepting new calls immediately (the in-flight deadline
// is now, matching the engine's cooperative shutdown) and flushes
// still-armed calls with failure events.
func (t *grpcTransport) Stop() {
	t.mu.Lock()
	srv := t.server
	t.server = nil
	var flush []*Call
	for _, methods := range t.services {
		for _, b := range methods {
			flush = append(flush, b.close()...)
		}
	}
	t.mu.Unlock()

	if srv != nil {
		srv.Stop()
	}
	for _, c := range flush {
		if !c.cq.Push(c, false) {
			c.CleanUp()
		}
	}
}

// Addr returns the bound listen address, useful with ":0" ports.
func (t *grpcTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lis == nil {
		return ""
	}
	return t.lis.Addr().String()
}

// methodHandler adapts one armed-call binding to the grpc unary
// handler signature.
func methodHandler(b *armQueue) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		req := b.method.NewRequest()
		if err := dec(req); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decode %s: %v", b.method.FullName(), err)
		}
		for {
			c, err := b.take(ctx)
			if err != nil {
				return nil, status.Errorf(codes.Unavailable, "%s: %v", b.method.FullName(), err)
			}
			resp, err := c.serve(ctx, req)
			if errors.Is(err, errCallAborted) {
				continue
			}
			if err != nil {
				return nil, status.Errorf(codes.Unavailable, "%s: %v", b.method.FullName(), err)
			}
			return resp, nil
		}
	}
}
