// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/dltlink/lib/receiver"
)

// deadlineReadWriter is what every driver's descriptor provides:
// net.Conn and pollable *os.File both qualify.
type deadlineReadWriter interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadDeadline(deadline time.Time) error
}

// expired is a read deadline in the past, used to wake blocked readers.
var expired = time.Unix(1, 0)

// shutdownState implements the Shutdown/SetReadDeadline handshake
// shared by all drivers.
type shutdownState struct {
	mutex    sync.Mutex
	shutdown atomic.Bool
}

func (s *shutdownState) isShutdown() bool { return s.shutdown.Load() }

func (s *shutdownState) setReadDeadline(target deadlineReadWriter, deadline time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.shutdown.Load() {
		return nil
	}
	return target.SetReadDeadline(deadline)
}

func (s *shutdownState) wake(target deadlineReadWriter) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.shutdown.Store(true)
	return target.SetReadDeadline(expired)
}

// readError replaces the deadline error a woken reader sees with
// ErrShutdown.
func (s *shutdownState) readError(err error) error {
	if err != nil && s.shutdown.Load() {
		return fmt.Errorf("%w: %w", ErrShutdown, err)
	}
	return err
}

// streamConn is the Conn for tcp, unix and serial descriptors.
type streamConn struct {
	shutdownState
	conn        deadlineReadWriter
	description string
}

var _ Conn = (*streamConn)(nil)

func newStreamConn(conn deadlineReadWriter, description string) *streamConn {
	return &streamConn{conn: conn, description: description}
}

func (c *streamConn) Read(p []byte) (int, error) {
	if c.isShutdown() {
		return 0, ErrShutdown
	}
	n, err := c.conn.Read(p)
	return n, c.readError(err)
}

func (c *streamConn) Write(p []byte) (int, error) { return c.conn.Write(p) }

func (c *streamConn) Kind() receiver.Kind { return receiver.Stream }

func (c *streamConn) SetReadDeadline(deadline time.Time) error {
	return c.setReadDeadline(c.conn, deadline)
}

func (c *streamConn) Shutdown() error { return c.wake(c.conn) }

func (c *streamConn) Close() error { return c.conn.Close() }

func (c *streamConn) String() string { return c.description }

// FromNetConn wraps an established stream connection, such as one
// half of net.Pipe or a socket accepted by an embedding program.
func FromNetConn(conn net.Conn) Conn {
	remote := conn.RemoteAddr()
	return newStreamConn(conn, remote.Network()+" "+remote.String())
}
