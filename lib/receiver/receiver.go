// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package receiver implements the per-connection receive buffer that
// sits between a transport and the frame scanner.
//
// A [Receiver] owns a fixed-capacity byte buffer. Transport reads append
// at the end of the valid region; consumed frames are removed from the
// front with [Receiver.Discard], which shifts the remaining partial data
// back to offset zero. The valid region is therefore always contiguous
// and starts at the beginning of the buffer, so the scanner can decode
// frames in place.
//
// A Receiver is owned by exactly one goroutine. Nothing in this package
// is safe for concurrent use.
package receiver

import (
	"errors"
	"fmt"
	"io"
)

// MaxCapacity is the largest buffer a Receiver will allocate. The
// largest legal frame is under 64 KiB, so anything beyond this is a
// configuration mistake.
const MaxCapacity = 1 << 20

var (
	// ErrInvalidArgument reports a nil source, a non-positive capacity,
	// an out-of-range discard, or use after Free.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAllocation reports that the buffer could not be reserved.
	ErrAllocation = errors.New("buffer allocation failed")

	// ErrBufferExhausted reports that the buffer is full and the caller
	// could not make room by consuming a frame. The connection cannot
	// make progress and must be reset.
	ErrBufferExhausted = errors.New("receive buffer exhausted")

	// ErrTransportClosed reports an orderly close by the peer. It wraps
	// io.EOF so callers that only know about io.Reader semantics still
	// recognize it.
	ErrTransportClosed = fmt.Errorf("transport closed: %w", io.EOF)
)

// Source is the byte source a Receiver reads from. Stream sources
// return (0, io.EOF) on orderly close. Datagram sources return exactly
// one datagram per call.
type Source interface {
	Read(p []byte) (int, error)
}

// Kind distinguishes stream from datagram sources.
type Kind int

const (
	// Stream sources (TCP, Unix, serial) deliver an ordered byte stream
	// in arbitrary chunks. A frame may span many reads.
	Stream Kind = iota

	// Datagram sources (UDP) deliver whole datagrams. Frames never span
	// datagrams, so bytes left over from one datagram are dropped
	// before the next is received.
	Datagram
)

func (k Kind) String() string {
	switch k {
	case Stream:
		return "stream"
	case Datagram:
		return "datagram"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Receiver accumulates bytes read from a Source.
type Receiver struct {
	source Source
	kind   Kind

	buffer []byte
	valid  int

	lastRead      int
	totalReceived uint64
	dropped       uint64

	// pending holds an error returned together with data by the
	// source. It is reported by the next ReadAvailable so the data is
	// scanned first.
	pending error
}

// New allocates a Receiver with a buffer of capacity bytes.
func New(source Source, kind Kind, capacity int) (*Receiver, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidArgument)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d must be positive", ErrInvalidArgument, capacity)
	}
	if capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d exceeds maximum %d", ErrAllocation, capacity, MaxCapacity)
	}
	buffer, err := allocate(capacity)
	if err != nil {
		return nil, err
	}
	return &Receiver{source: source, kind: kind, buffer: buffer}, nil
}

func allocate(capacity int) (buffer []byte, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			buffer = nil
			err = fmt.Errorf("%w: %v", ErrAllocation, recovered)
		}
	}()
	return make([]byte, capacity), nil
}

// ReadAvailable performs one read from the source into the free space
// after the valid region and returns the number of bytes appended.
//
// It returns ErrBufferExhausted without reading when there is no free
// space, ErrTransportClosed when the source reports an orderly close,
// and the wrapped source error otherwise. When the source returns data
// together with an error, the data is kept and the error is reported on
// the following call.
//
// A zero-length datagram is not a close: ReadAvailable returns (0, nil)
// and the caller reads again.
func (r *Receiver) ReadAvailable() (int, error) {
	if r.buffer == nil {
		return 0, fmt.Errorf("%w: receiver has been freed", ErrInvalidArgument)
	}
	if r.pending != nil {
		err := r.pending
		r.pending = nil
		r.lastRead = 0
		return 0, err
	}
	if r.kind == Datagram && r.valid > 0 {
		r.dropped += uint64(r.valid)
		r.valid = 0
	}
	if r.valid == len(r.buffer) {
		return 0, fmt.Errorf("%w: %d bytes buffered with no complete frame", ErrBufferExhausted, r.valid)
	}

	count, err := r.source.Read(r.buffer[r.valid:])
	if count < 0 || count > len(r.buffer)-r.valid {
		return 0, fmt.Errorf("source returned invalid count %d for %d free bytes", count, len(r.buffer)-r.valid)
	}
	r.valid += count
	r.lastRead = count
	r.totalReceived += uint64(count)

	if err != nil {
		err = classify(err)
		if count > 0 {
			r.pending = err
			return count, nil
		}
		return 0, err
	}
	if count == 0 && r.kind == Stream {
		return 0, ErrTransportClosed
	}
	return count, nil
}

func classify(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrTransportClosed
	}
	return fmt.Errorf("reading from source: %w", err)
}

// Append copies p after the valid region, as if it had been read from
// the source. It fails with ErrBufferExhausted, appending nothing, when
// p does not fit.
func (r *Receiver) Append(p []byte) error {
	if r.buffer == nil {
		return fmt.Errorf("%w: receiver has been freed", ErrInvalidArgument)
	}
	if len(p) > len(r.buffer)-r.valid {
		return fmt.Errorf("%w: %d bytes do not fit in %d free bytes", ErrBufferExhausted, len(p), len(r.buffer)-r.valid)
	}
	copy(r.buffer[r.valid:], p)
	r.valid += len(p)
	r.lastRead = len(p)
	r.totalReceived += uint64(len(p))
	return nil
}

// Discard removes the first n valid bytes and moves the rest to the
// front of the buffer.
func (r *Receiver) Discard(n int) error {
	if n < 0 || n > r.valid {
		return fmt.Errorf("%w: cannot discard %d of %d valid bytes", ErrInvalidArgument, n, r.valid)
	}
	if n == 0 {
		return nil
	}
	remaining := copy(r.buffer, r.buffer[n:r.valid])
	r.valid = remaining
	r.lastRead = min(r.lastRead, remaining)
	return nil
}

// Reset empties the valid region without releasing the buffer. A
// pending source error is kept.
func (r *Receiver) Reset() {
	r.valid = 0
	r.lastRead = 0
}

// Free releases the buffer. Further reads fail with ErrInvalidArgument.
func (r *Receiver) Free() {
	r.buffer = nil
	r.valid = 0
	r.lastRead = 0
	r.pending = nil
}

// Bytes returns the valid region. The slice aliases the buffer and is
// invalidated by the next ReadAvailable, Append, Discard or Reset.
func (r *Receiver) Bytes() []byte { return r.buffer[:r.valid] }

// Len is the number of valid bytes.
func (r *Receiver) Len() int { return r.valid }

// Cap is the buffer capacity. Zero after Free.
func (r *Receiver) Cap() int { return len(r.buffer) }

// Available is the number of bytes the next read may append.
func (r *Receiver) Available() int { return len(r.buffer) - r.valid }

// Full reports whether no free space remains.
func (r *Receiver) Full() bool { return r.buffer != nil && r.valid == len(r.buffer) }

// LastReadLength is the number of bytes appended by the most recent
// read that are still buffered.
func (r *Receiver) LastReadLength() int { return r.lastRead }

// TotalReceived is the number of bytes ever read into this Receiver.
func (r *Receiver) TotalReceived() uint64 { return r.totalReceived }

// Dropped is the number of datagram bytes discarded because they did
// not form a complete frame.
func (r *Receiver) Dropped() uint64 { return r.dropped }

// Kind returns the source kind.
func (r *Receiver) Kind() Kind { return r.kind }
