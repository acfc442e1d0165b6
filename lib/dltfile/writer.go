// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dltfile

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/dltlink/lib/clock"
	"github.com/bureau-foundation/dltlink/lib/frame"
)

// DigestSuffix is appended to a capture path to name its digest
// sidecar.
const DigestSuffix = ".b3"

// WriterConfig configures a Writer.
type WriterConfig struct {
	Compression Compression

	// ECUID is stored for frames that carry no ECU id of their own.
	ECUID frame.ID

	// Clock stamps storage headers. Nil means the wall clock.
	Clock clock.Clock
}

// Writer appends frames to a capture. It is a client.Handler.
type Writer struct {
	mutex sync.Mutex

	config     WriterConfig
	clock      clock.Clock
	compressor io.WriteCloser
	output     io.Writer
	hasher     *blake3.Hasher
	scratch    []byte

	// Set by Create.
	path     string
	file     *os.File
	buffered *bufio.Writer

	frames uint64
	bytes  uint64
	closed bool
}

// NewWriter writes a capture to w. Close flushes compression but does
// not close w, and no digest sidecar is written; Sum returns the
// digest.
func NewWriter(w io.Writer, config WriterConfig) (*Writer, error) {
	writer := &Writer{
		config: config,
		clock:  config.Clock,
		hasher: blake3.New(),
		output: w,
	}
	if writer.clock == nil {
		writer.clock = clock.Real()
	}
	compressing, err := compressor(w, config.Compression)
	if err != nil {
		return nil, err
	}
	if compressing != nil {
		writer.compressor = compressing
		writer.output = compressing
	}
	return writer, nil
}

// Create creates or truncates the capture file at path. Close writes
// the digest sidecar next to it.
func Create(path string, config WriterConfig) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating capture: %w", err)
	}
	buffered := bufio.NewWriterSize(file, 64*1024)
	writer, err := NewWriter(buffered, config)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.path = path
	writer.file = file
	writer.buffered = buffered
	return writer, nil
}

// WriteFrame stores received behind a storage header stamped with the
// current time.
func (w *Writer) WriteFrame(received frame.Frame) error {
	ecu, ok := received.ECUID()
	if !ok {
		ecu = w.config.ECUID
	}
	header := StorageHeader{Time: w.clock.Now(), ECUID: ecu}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	w.scratch = header.AppendTo(w.scratch[:0])
	w.scratch = append(w.scratch, received.Bytes()...)
	if _, err := w.output.Write(w.scratch); err != nil {
		return fmt.Errorf("writing capture: %w", err)
	}
	w.hasher.Write(w.scratch)
	w.frames++
	w.bytes += uint64(len(w.scratch))
	return nil
}

// HandleFrame implements client.Handler.
func (w *Writer) HandleFrame(_ context.Context, received frame.Frame) error {
	return w.WriteFrame(received)
}

// Frames returns the number of frames written.
func (w *Writer) Frames() uint64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.frames
}

// Bytes returns the uncompressed size written so far.
func (w *Writer) Bytes() uint64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.bytes
}

// Sum returns the BLAKE3 digest of the uncompressed stream so far.
func (w *Writer) Sum() []byte {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.hasher.Sum(nil)
}

// Close flushes the capture. For files made by Create it also closes
// the file and writes the digest sidecar.
func (w *Writer) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.compressor != nil {
		if err := w.compressor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("finishing %v stream: %w", w.config.Compression, err))
		}
	}
	if w.file == nil {
		return errors.Join(errs...)
	}
	if err := w.buffered.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flushing capture: %w", err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing capture: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	sidecar := fmt.Sprintf("%s  %s\n", hex.EncodeToString(w.hasher.Sum(nil)), filepath.Base(w.path))
	if err := os.WriteFile(w.path+DigestSuffix, []byte(sidecar), 0o644); err != nil {
		return fmt.Errorf("writing digest: %w", err)
	}
	return nil
}
