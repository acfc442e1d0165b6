// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/dltlink/lib/frame"
	"github.com/bureau-foundation/dltlink/lib/netutil"
	"github.com/bureau-foundation/dltlink/lib/receiver"
	"github.com/bureau-foundation/dltlink/transport"
)

var (
	// ErrStop is returned by a Handler to end Run cleanly.
	ErrStop = errors.New("stop requested by handler")

	// ErrInvalidArgument reports a nil handler or similar misuse.
	ErrInvalidArgument = receiver.ErrInvalidArgument

	// ErrAlreadyRunning is returned when Run is called while another
	// Run on the same client is active.
	ErrAlreadyRunning = errors.New("dispatch loop already running")

	// ErrNotConnected is returned by Run and Send before Connect, or
	// after a terminal Run released the connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned by Connect on a connected client.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")

	// ErrTransport wraps read and write failures of the connection.
	ErrTransport = errors.New("transport error")

	// ErrReadTimeout reports that no bytes arrived within ReadTimeout.
	ErrReadTimeout = errors.New("read timeout")
)

// Client is a connection to a log daemon. Run, Send, Close, State and
// Stats may be called from different goroutines; only one Run may be
// active at a time.
type Client struct {
	config Config
	logger *slog.Logger

	mutex   sync.Mutex
	conn    transport.Conn
	buffer  *receiver.Receiver
	scanner *frame.Scanner
	running bool
	closed  bool

	// writeMutex serializes Send so concurrent control requests do not
	// interleave their bytes.
	writeMutex sync.Mutex

	state atomic.Int32
	stats counters
}

// New validates config and returns an unconnected Client.
func New(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}
	config = config.withDefaults()
	return &Client{
		config: config,
		logger: config.Logger,
	}, nil
}

// NewWithConn returns a Client attached to an established connection.
// config.Transport is ignored. The Client takes ownership of conn.
func NewWithConn(conn transport.Conn, config Config) (*Client, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil connection", ErrInvalidArgument)
	}
	c, err := New(config)
	if err != nil {
		return nil, err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.attachLocked(conn); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect dials the configured transport.
func (c *Client) Connect(ctx context.Context) error {
	c.mutex.Lock()
	switch {
	case c.closed:
		c.mutex.Unlock()
		return ErrClosed
	case c.conn != nil:
		c.mutex.Unlock()
		return ErrAlreadyConnected
	}
	c.mutex.Unlock()

	conn, err := transport.Dial(ctx, c.config.Transport)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed || c.conn != nil {
		conn.Close()
		if c.closed {
			return ErrClosed
		}
		return ErrAlreadyConnected
	}
	if err := c.attachLocked(conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// attachLocked allocates the receive buffer and scanner for conn.
func (c *Client) attachLocked(conn transport.Conn) error {
	buffer, err := receiver.New(conn, conn.Kind(), c.config.BufferCapacity)
	if err != nil {
		return fmt.Errorf("allocating receive buffer: %w", err)
	}
	c.conn = conn
	c.buffer = buffer
	c.scanner = frame.NewScanner(frame.ScannerConfig{
		MaxFrameSize:    c.config.BufferCapacity,
		Sync:            c.config.Sync,
		Resync:          c.config.Resync,
		MaxMarkerSearch: c.config.MaxMarkerSearch,
	})
	c.setState(StateIdle)
	c.logger.Info("connected", "transport", conn.String(), "kind", conn.Kind(), "sync", c.config.Sync)
	return nil
}

// session is the connection state Run works on. It is only touched by
// the goroutine in Run.
type session struct {
	conn    transport.Conn
	buffer  *receiver.Receiver
	scanner *frame.Scanner
}

// Run delivers frames to handler until the peer closes, the handler
// or Continue stops it, ctx is cancelled, or a fatal error occurs.
// Clean terminations return a nil error.
//
// Except after TerminationStopped, the connection is released when Run
// returns.
func (c *Client) Run(ctx context.Context, handler Handler) (Termination, error) {
	if handler == nil {
		return TerminationNone, fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}
	current, err := c.begin()
	if err != nil {
		return TerminationNone, err
	}
	termination, err := c.dispatch(ctx, current, handler)
	c.finish(termination, err)
	return termination, err
}

func (c *Client) begin() (*session, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch {
	case c.closed:
		return nil, ErrClosed
	case c.running:
		return nil, ErrAlreadyRunning
	case c.conn == nil:
		return nil, ErrNotConnected
	}
	c.running = true
	return &session{conn: c.conn, buffer: c.buffer, scanner: c.scanner}, nil
}

func (c *Client) finish(termination Termination, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.running = false
	c.setState(StateClosed)
	if termination != TerminationStopped || c.closed {
		if closeErr := c.releaseLocked(); closeErr != nil {
			c.logger.Warn("closing transport", "error", closeErr)
		}
	}

	attributes := []any{"termination", termination.String(), "stats", c.stats.snapshot()}
	if err != nil {
		c.logger.Error("dispatch loop failed", append(attributes, "error", err)...)
		return
	}
	c.logger.Info("dispatch loop ended", attributes...)
}

// dispatch is the read, scan, deliver, discard cycle.
func (c *Client) dispatch(ctx context.Context, current *session, handler Handler) (Termination, error) {
	stopWaking := context.AfterFunc(ctx, func() {
		if err := current.conn.Shutdown(); err != nil {
			c.logger.Debug("waking reader", "error", err)
		}
	})
	defer stopWaking()
	if ctx.Err() != nil {
		return TerminationCancelled, nil
	}

	for {
		// A previous Run may have left complete frames buffered, so scan
		// before every read.
		if termination, err := c.drain(ctx, current, handler); termination != TerminationNone {
			return termination, err
		}
		if ctx.Err() != nil || c.isClosed() {
			return TerminationCancelled, nil
		}

		c.setState(StateReading)
		if c.config.ReadTimeout > 0 {
			// The kernel enforces deadlines against wall time.
			deadline := time.Now().Add(c.config.ReadTimeout) //nolint:realclock socket deadline
			if err := current.conn.SetReadDeadline(deadline); err != nil {
				return TerminationFailed, fmt.Errorf("%w: setting read deadline: %w", ErrTransport, err)
			}
		}
		droppedBefore := current.buffer.Dropped()
		count, err := current.buffer.ReadAvailable()
		if dropped := current.buffer.Dropped() - droppedBefore; dropped > 0 {
			// Leftovers left the front of the buffer; the scanner's
			// marker search position must follow them.
			current.scanner.Advance(int(dropped))
			c.stats.datagramBytesDropped.Add(dropped)
		}
		c.stats.bytesReceived.Add(uint64(count))
		if err != nil {
			if termination, err := c.readFailure(ctx, current, err); termination != TerminationNone {
				return termination, err
			}
		}
	}
}

// drain delivers every complete frame in the buffer. It returns
// TerminationNone when more bytes must be read.
func (c *Client) drain(ctx context.Context, current *session, handler Handler) (Termination, error) {
	for {
		c.setState(StateScanning)
		received, count, err := current.scanner.Scan(current.buffer.Bytes())
		switch {
		case err == nil:
			c.setState(StateDelivering)
			handlerErr := handler.HandleFrame(ctx, received)

			skipped := count - received.Length()
			if received.HasMarker() {
				skipped -= frame.MarkerSize
			}
			if err := c.discard(current, count); err != nil {
				return TerminationFailed, err
			}
			c.stats.bytesSkipped.Add(uint64(skipped))
			delivered := c.stats.frames.Add(1)

			if handlerErr != nil {
				if errors.Is(handlerErr, ErrStop) {
					return TerminationStopped, nil
				}
				return TerminationFailed, fmt.Errorf("handling frame: %w", handlerErr)
			}
			if c.config.Continue != nil && !c.config.Continue(delivered) {
				return TerminationStopped, nil
			}
			if ctx.Err() != nil {
				return TerminationCancelled, nil
			}

		case errors.Is(err, frame.ErrIncomplete):
			if !current.buffer.Full() {
				return TerminationNone, nil
			}
			if count == 0 {
				return TerminationFailed, fmt.Errorf("%w: %d bytes buffered without a complete frame",
					receiver.ErrBufferExhausted, current.buffer.Len())
			}
			// Garbage ahead of a marker is filling the buffer.
			if err := c.discard(current, count); err != nil {
				return TerminationFailed, err
			}
			c.stats.bytesSkipped.Add(uint64(count))

		case errors.Is(err, frame.ErrFraming):
			if !c.config.Resync {
				return TerminationFailed, err
			}
			if err := c.discard(current, count); err != nil {
				return TerminationFailed, err
			}
			c.stats.resyncs.Add(1)
			c.stats.bytesSkipped.Add(uint64(count))
			c.logger.Debug("resynchronizing", "error", err, "dropped", count)

		default:
			return TerminationFailed, err
		}
	}
}

func (c *Client) discard(current *session, count int) error {
	c.setState(StateDiscarding)
	if err := current.buffer.Discard(count); err != nil {
		return err
	}
	current.scanner.Advance(count)
	return nil
}

// readFailure maps a ReadAvailable error to a termination.
// TerminationNone means the loop should read again.
func (c *Client) readFailure(ctx context.Context, current *session, err error) (Termination, error) {
	switch {
	case ctx.Err() != nil || c.isClosed():
		return TerminationCancelled, nil
	case errors.Is(err, receiver.ErrTransportClosed):
		if buffered := current.buffer.Len(); buffered > 0 {
			c.logger.Debug("peer closed with a partial frame buffered", "bytes", buffered)
		}
		return TerminationPeerClosed, nil
	case errors.Is(err, transport.ErrDatagramTruncated):
		c.stats.datagramsTruncated.Add(1)
		c.logger.Warn("dropped oversized datagram", "error", err, "capacity", current.buffer.Cap())
		return TerminationNone, nil
	case netutil.IsTimeout(err):
		return TerminationFailed, fmt.Errorf("%w: no data from %s for %v", ErrReadTimeout, current.conn, c.config.ReadTimeout)
	case errors.Is(err, receiver.ErrBufferExhausted):
		return TerminationFailed, err
	default:
		return TerminationFailed, fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

// Send writes raw bytes to the daemon. It is safe to call while Run
// is active.
func (c *Client) Send(data []byte) error {
	c.mutex.Lock()
	conn, closed := c.conn, c.closed
	c.mutex.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: sending %d bytes: %w", ErrTransport, len(data), err)
	}
	return nil
}

// SendMessage encodes message and sends it, preceded by the sync
// marker when the client is configured for marker framing.
func (c *Client) SendMessage(message *frame.Message) error {
	var encoded []byte
	var err error
	if c.config.Sync == frame.SyncMarker {
		encoded, err = message.MarshalWithMarker()
	} else {
		encoded, err = message.Marshal()
	}
	if err != nil {
		return err
	}
	return c.Send(encoded)
}

// Close shuts the connection down and releases it. A Run in progress
// returns TerminationCancelled. Close is idempotent.
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.running {
		// Run releases the connection on its way out.
		if c.conn != nil {
			return c.conn.Shutdown()
		}
		return nil
	}
	c.setState(StateClosed)
	return c.releaseLocked()
}

// releaseLocked closes the connection and frees the receive buffer.
func (c *Client) releaseLocked() error {
	if c.conn == nil {
		return nil
	}
	_ = c.conn.Shutdown()
	err := c.conn.Close()
	c.logger.Debug("connection released", "transport", c.conn.String())
	c.buffer.Free()
	c.conn, c.buffer, c.scanner = nil, nil, nil
	if netutil.IsExpectedCloseError(err) {
		return nil
	}
	return err
}

func (c *Client) isClosed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.closed
}

func (c *Client) setState(state State) { c.state.Store(int32(state)) }

// State returns the dispatch loop's current position.
func (c *Client) State() State { return State(c.state.Load()) }

// Stats returns a snapshot of the counters.
func (c *Client) Stats() Stats { return c.stats.snapshot() }

// Connected reports whether the client holds a connection.
func (c *Client) Connected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.conn != nil
}
