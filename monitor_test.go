// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/rpc/v2/json2"
)

func TestMonitorStatus(t *testing.T) {
	m, _ := newInprocManager(t)
	if _, err := CreatePollingBackend[pingMsg, pongMsg](m, "test.Service", "Start"); err != nil {
		t.Fatalf("CreatePollingBackend: %v", err)
	}
	if err := m.StartBackends(); err != nil {
		t.Fatalf("StartBackends: %v", err)
	}
	defer m.ShutdownServer()

	mon := NewMonitor(m)
	if err := mon.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("monitor Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		mon.Stop(ctx)
	}()

	body, err := json2.EncodeClientRequest("Engine.Status", &StatusArgs{})
	if err != nil {
		t.Fatalf("EncodeClientRequest: %v", err)
	}
	resp, err := http.Post("http://"+mon.Addr()+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()

	var st ManagerStatus
	if err := json2.DecodeClientResponse(resp.Body, &st); err != nil {
		t.Fatalf("DecodeClientResponse: %v", err)
	}
	if st.State != "started" {
		t.Errorf("state: got %q, want started", st.State)
	}
	if st.Transport != TransportInproc {
		t.Errorf("transport: got %q", st.Transport)
	}
	if len(st.Backends) != 1 || st.Backends[0].Kind != "consumer" {
		t.Errorf("backends: %+v", st.Backends)
	}
}

func TestMonitorStopBeforeStart(t *testing.T) {
	mon := NewMonitor(NewManager())
	if err := mon.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
	if mon.Addr() != "" {
		t.Errorf("Addr before Start: %q", mon.Addr())
	}
}
