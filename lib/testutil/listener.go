// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"testing"
)

// ListenLoopback listens on an ephemeral TCP port on 127.0.0.1. The
// listener is closed when the test completes.
func ListenLoopback(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening on loopback: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })
	return listener
}

// AcceptOne accepts a single connection in the background. The
// channel is closed without a value if Accept fails; the accepted
// connection is closed when the test completes.
//
//	accepted := testutil.AcceptOne(t, listener)
//	conn := dial(listener.Addr())
//	peer := testutil.RequireReceive(t, accepted, 5*time.Second, "accepting")
func AcceptOne(t *testing.T, listener net.Listener) <-chan net.Conn {
	t.Helper()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()
	t.Cleanup(func() {
		select {
		case conn, ok := <-accepted:
			if ok {
				_ = conn.Close()
			}
		default:
		}
	})
	return accepted
}
