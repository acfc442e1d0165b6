// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/dltlink/lib/frame"
	"github.com/bureau-foundation/dltlink/lib/receiver"
	"github.com/bureau-foundation/dltlink/transport"
)

// DefaultBufferCapacity holds any legal frame with room for the next
// one to arrive behind it.
const DefaultBufferCapacity = 64 * 1024

// Config configures a Client.
type Config struct {
	// Transport selects and addresses the daemon. Not used by
	// NewWithConn.
	Transport transport.Config

	// BufferCapacity is the receive buffer size and also the largest
	// frame (marker included) the client accepts. Zero means
	// DefaultBufferCapacity.
	BufferCapacity int

	// Sync selects sync marker handling. Serial links normally use
	// frame.SyncMarker or frame.SyncAuto.
	Sync frame.SyncMode

	// Resync makes framing errors recoverable: the loop drops the bytes
	// the scanner reports and keeps scanning. Without it a framing
	// error ends Run.
	Resync bool

	// MaxMarkerSearch bounds the marker search. Zero means
	// frame.DefaultMaxMarkerSearch.
	MaxMarkerSearch int

	// ReadTimeout fails Run when no bytes arrive for this long of wall
	// time. Zero waits forever.
	ReadTimeout time.Duration

	// Continue, when set, is called after every delivered frame with
	// the number of frames this client has delivered. Returning false
	// stops Run.
	Continue func(delivered uint64) bool

	// Logger receives connection lifecycle and resync events. Nil
	// discards.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.BufferCapacity == 0 {
		c.BufferCapacity = DefaultBufferCapacity
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Validate checks the client settings. Transport settings are checked
// when connecting.
func (c Config) Validate() error {
	var errs []error
	if c.BufferCapacity < 0 || c.BufferCapacity > receiver.MaxCapacity {
		errs = append(errs, fmt.Errorf("buffer capacity %d outside 1..%d", c.BufferCapacity, receiver.MaxCapacity))
	}
	if c.BufferCapacity > 0 && c.BufferCapacity < frame.PrimaryHeaderSize+frame.MarkerSize {
		errs = append(errs, fmt.Errorf("buffer capacity %d cannot hold a frame header", c.BufferCapacity))
	}
	if c.Sync < frame.SyncNone || c.Sync > frame.SyncAuto {
		errs = append(errs, fmt.Errorf("unknown sync mode %v", c.Sync))
	}
	if c.MaxMarkerSearch < 0 {
		errs = append(errs, fmt.Errorf("max marker search %d is negative", c.MaxMarkerSearch))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("read timeout %v is negative", c.ReadTimeout))
	}
	return errors.Join(errs...)
}
