// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
)

// dialTCP connects to the daemon's TCP port.
func dialTCP(ctx context.Context, config Config) (Conn, error) {
	address := config.Address()
	conn, err := (&net.Dialer{Timeout: config.DialTimeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	return newStreamConn(conn, "tcp "+conn.RemoteAddr().String()), nil
}

// dialUnix connects to the daemon's local socket.
func dialUnix(ctx context.Context, config Config) (Conn, error) {
	conn, err := (&net.Dialer{Timeout: config.DialTimeout}).DialContext(ctx, "unix", config.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", config.SocketPath, err)
	}
	return newStreamConn(conn, "unix "+config.SocketPath), nil
}
