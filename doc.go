// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gymlink is an asynchronous RPC exchange engine for
// simulation-to-trainer communication.
//
// The engine sits on top of a completion-queue-based async transport
// and turns its raw event-driven model into three reusable channel
// patterns:
//
//   - Consumer: inbound messages, drained with non-blocking Poll
//   - Producer: outbound messages, pushed fire-and-forget with Publish
//   - Exchange: strict send/receive coupling, one round trip in flight
//
// # Usage
//
// A host builds a Manager, binds each RPC method to one backend, and
// starts everything at once:
//
//	mgr := gymlink.NewManager()
//	if err := mgr.Initialize(8000, "127.0.0.1"); err != nil {
//	    log.Fatal(err)
//	}
//
//	decisions, _ := gymlink.CreateExchangeBackend[Update, State](mgr, "sim.GymService", "UpdateState")
//	defs, _ := gymlink.CreateProducerBackend[DefRequest, Definition](mgr, "sim.GymService", "GetDefinition")
//	starts, _ := gymlink.CreatePollingBackend[StartRequest, StartResponse](mgr, "sim.GymService", "Start")
//
//	if err := mgr.StartBackends(); err != nil {
//	    log.Fatal(err)
//	}
//
// Steady state is Poll/Publish/Receive/Respond; the host never touches
// a completion queue or call state directly:
//
//	fut, err := decisions.Receive()        // start a round trip
//	update, err := fut.Wait(ctx)           // block for the paired inbound
//	err = decisions.Respond(&State{...})   // complete it
//
// Each backend owns one completion queue and one worker goroutine;
// shutting down a backend's queue is the only cancellation mechanism.
// ShutdownServer stops accepting calls immediately and joins every
// worker.
//
// # Transports
//
// gRPC is the default transport. The registry also carries an
// in-process transport for tests and same-process trainers, and the
// gRPC listener understands vsock addresses for VM-to-host setups:
//
//	gymlink.NewManager()                                // gRPC over TCP
//	gymlink.NewManager(gymlink.WithTransport("inproc")) // in-process
//	mgr.Initialize(8000, "vsock://3")                   // gRPC over vsock
//
// Application code should depend only on the backend types; transport
// selection is a deployment decision rather than a code change.
package gymlink
