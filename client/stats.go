// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"log/slog"
	"sync/atomic"
)

// Stats is a snapshot of a client's counters.
type Stats struct {
	// Frames delivered to the handler.
	Frames uint64

	// BytesReceived from the transport.
	BytesReceived uint64

	// Resyncs counts framing errors recovered by dropping bytes.
	Resyncs uint64

	// BytesSkipped counts bytes dropped while resynchronizing,
	// including garbage in front of sync markers.
	BytesSkipped uint64

	// DatagramBytesDropped counts bytes left over at the end of a
	// datagram that did not form a complete frame.
	DatagramBytesDropped uint64

	// DatagramsTruncated counts datagrams lost because they exceeded
	// the buffer.
	DatagramsTruncated uint64
}

// LogValue renders the snapshot as a slog group.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frames", s.Frames),
		slog.Uint64("bytes_received", s.BytesReceived),
		slog.Uint64("resyncs", s.Resyncs),
		slog.Uint64("bytes_skipped", s.BytesSkipped),
		slog.Uint64("datagram_bytes_dropped", s.DatagramBytesDropped),
		slog.Uint64("datagrams_truncated", s.DatagramsTruncated),
	)
}

type counters struct {
	frames               atomic.Uint64
	bytesReceived        atomic.Uint64
	resyncs              atomic.Uint64
	bytesSkipped         atomic.Uint64
	datagramBytesDropped atomic.Uint64
	datagramsTruncated   atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Frames:               c.frames.Load(),
		BytesReceived:        c.bytesReceived.Load(),
		Resyncs:              c.resyncs.Load(),
		BytesSkipped:         c.bytesSkipped.Load(),
		DatagramBytesDropped: c.datagramBytesDropped.Load(),
		DatagramsTruncated:   c.datagramsTruncated.Load(),
	}
}
