// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import "errors"

var (
	// ErrExchangeInFlight is returned by Exchange.Receive when the
	// previous exchange has not been completed with Respond yet.
	ErrExchangeInFlight = errors.New("gymlink: exchange already in flight")

	// ErrNoExchange is returned by Exchange.Respond when no exchange
	// is outstanding.
	ErrNoExchange = errors.New("gymlink: no exchange outstanding")

	// ErrExchangeAborted completes a receive future whose exchange was
	// torn down by Reset or a transport failure before a Respond.
	ErrExchangeAborted = errors.New("gymlink: exchange aborted")

	// ErrBackendNotStarted is returned by operations that need a
	// running worker before Start has been broadcast.
	ErrBackendNotStarted = errors.New("gymlink: backend not started")

	// ErrBackendClosed is returned by operations against a backend
	// whose completion queue has been shut down.
	ErrBackendClosed = errors.New("gymlink: backend is shut down")

	// ErrServerStarted is returned when a backend is created or the
	// server started while it is already running.
	ErrServerStarted = errors.New("gymlink: server already started")

	// ErrServerNotStarted is returned by shutdown-time operations when
	// the server never started.
	ErrServerNotStarted = errors.New("gymlink: server not started")
)

// errCallState reports a call driven outside its contract, e.g. Submit
// on a call that is not in the Process state. Workers log it; it is
// never fatal.
var errCallState = errors.New("gymlink: call in wrong state")

// errCallAborted is returned by serve when the call was aborted after
// being taken from its binding. Transport handlers retry with the next
// armed call so the inbound request is never answered by a stale call.
var errCallAborted = errors.New("gymlink: call aborted")
