// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dltfile

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/dltlink/lib/frame"
	"github.com/bureau-foundation/dltlink/lib/receiver"
)

// ErrDigestMismatch is returned by Verify when a capture does not
// match its sidecar.
var ErrDigestMismatch = errors.New("capture digest mismatch")

// Record is one stored frame. Frame aliases the Reader's buffer and
// is valid until the next call to Next; Clone it to keep it.
type Record struct {
	Header StorageHeader
	Frame  frame.Frame
}

// Reader iterates over the records of a capture.
type Reader struct {
	compression Compression
	release     func()
	file        *os.File

	buffer  *receiver.Receiver
	scanner *frame.Scanner
	consume int
	atEnd   bool
}

// NewReader reads a capture from r, detecting compression.
func NewReader(r io.Reader) (*Reader, error) {
	uncompressed, compression, release, err := decompressor(r)
	if err != nil {
		return nil, err
	}
	buffer, err := receiver.New(uncompressed, receiver.Stream, StorageHeaderSize+frame.MaxLength)
	if err != nil {
		release()
		return nil, err
	}
	return &Reader{
		compression: compression,
		release:     release,
		buffer:      buffer,
		scanner:     frame.NewScanner(frame.ScannerConfig{MaxFrameSize: frame.MaxLength}),
	}, nil
}

// Open opens the capture at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture: %w", err)
	}
	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	reader.file = file
	return reader, nil
}

// Compression reports the detected compression.
func (r *Reader) Compression() Compression { return r.compression }

// Next returns the next record, or io.EOF after the last one. A
// capture that ends inside a record yields io.ErrUnexpectedEOF.
func (r *Reader) Next() (Record, error) {
	if r.consume > 0 {
		if err := r.buffer.Discard(r.consume); err != nil {
			return Record{}, err
		}
		r.consume = 0
	}

	for {
		data := r.buffer.Bytes()
		if len(data) >= StorageHeaderSize {
			header, err := ParseStorageHeader(data)
			if err != nil {
				return Record{}, err
			}
			stored, count, err := r.scanner.Scan(data[StorageHeaderSize:])
			switch {
			case err == nil:
				r.consume = StorageHeaderSize + count
				return Record{Header: header, Frame: stored}, nil
			case !errors.Is(err, frame.ErrIncomplete):
				return Record{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
		}

		if r.atEnd {
			if len(data) == 0 {
				return Record{}, io.EOF
			}
			return Record{}, fmt.Errorf("%w: %d trailing bytes", io.ErrUnexpectedEOF, len(data))
		}
		if _, err := r.buffer.ReadAvailable(); err != nil {
			if !errors.Is(err, receiver.ErrTransportClosed) {
				return Record{}, fmt.Errorf("reading capture: %w", err)
			}
			r.atEnd = true
		}
	}
}

// Close releases the decompressor and the file opened by Open.
func (r *Reader) Close() error {
	r.release()
	r.buffer.Free()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Verify recomputes the digest of the capture at path and compares it
// with the sidecar.
func Verify(path string) error {
	sidecar, err := os.ReadFile(path + DigestSuffix)
	if err != nil {
		return fmt.Errorf("reading digest: %w", err)
	}
	fields := strings.Fields(string(sidecar))
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty digest file", ErrDigestMismatch)
	}
	want, err := hex.DecodeString(fields[0])
	if err != nil {
		return fmt.Errorf("parsing digest: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer file.Close()
	uncompressed, _, release, err := decompressor(file)
	if err != nil {
		return err
	}
	defer release()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, uncompressed); err != nil {
		return fmt.Errorf("hashing capture: %w", err)
	}
	if got := hasher.Sum(nil); !bytes.Equal(got, want) {
		return fmt.Errorf("%w: %s has %x, sidecar says %x", ErrDigestMismatch, path, got, want)
	}
	return nil
}
