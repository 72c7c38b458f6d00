// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
)

// vsockScheme prefixes addresses served over a virtio socket instead
// of TCP, e.g. "vsock://:8000". A context ID before the colon is
// accepted and ignored; listeners are always bound to the local CID
// (dialers are the ones that need the peer CID).
const vsockScheme = "vsock://"

// listenAddr opens the listener for an engine address. Plain
// "host:port" binds TCP; the vsock scheme binds a virtio socket port
// for VM-to-host training setups.
func listenAddr(addr string) (net.Listener, error) {
	if !strings.HasPrefix(addr, vsockScheme) {
		return net.Listen("tcp", addr)
	}
	rest := strings.TrimPrefix(addr, vsockScheme)
	_, portStr, found := strings.Cut(rest, ":")
	if !found {
		portStr = rest
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("vsock address %q: %w", addr, err)
	}
	return vsock.Listen(uint32(port), nil)
}
