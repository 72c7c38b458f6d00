// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"

	rpcv2 "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

// Monitor serves manager status over HTTP JSON-RPC, for trainers and
// operators that want to check on the engine without speaking its main
// transport.
//
//	curl -X POST -H 'Content-Type: application/json' \
//	  -d '{"jsonrpc":"2.0","method":"Engine.Status","id":1}' http://host:port/rpc
type Monitor struct {
	manager *Manager
	server  *http.Server
	lis     net.Listener
}

// EngineService is the JSON-RPC service the monitor registers.
type EngineService struct {
	manager *Manager
}

// StatusArgs is empty; Status takes no parameters.
type StatusArgs struct{}

// Status reports the manager state, address, and per-backend counters.
func (s *EngineService) Status(_ *http.Request, _ *StatusArgs, reply *ManagerStatus) error {
	*reply = s.manager.Snapshot()
	return nil
}

func NewMonitor(m *Manager) *Monitor {
	return &Monitor{manager: m}
}

// Start serves the status endpoint on addr under /rpc. Returns bind
// errors synchronously.
func (mo *Monitor) Start(addr string) error {
	srv := rpcv2.NewServer()
	srv.RegisterCodec(json2.NewCodec(), "application/json")
	if err := srv.RegisterService(&EngineService{manager: mo.manager}, "Engine"); err != nil {
		return fmt.Errorf("monitor register: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", srv)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor listen %s: %w", addr, err)
	}
	mo.lis = lis
	mo.server = &http.Server{Handler: mux}
	go func() {
		if err := mo.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Printf("[gymlink] monitor exited: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, useful with ":0".
func (mo *Monitor) Addr() string {
	if mo.lis == nil {
		return ""
	}
	return mo.lis.Addr().String()
}

// Stop shuts the endpoint down.
func (mo *Monitor) Stop(ctx context.Context) error {
	if mo.server == nil {
		return nil
	}
	return mo.server.Shutdown(ctx)
}
