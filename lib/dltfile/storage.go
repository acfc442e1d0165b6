// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dltfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/dltlink/lib/frame"
)

// StorageHeaderSize is the size of the header preceding every stored
// frame.
const StorageHeaderSize = 16

// StoragePattern starts every storage header.
var StoragePattern = [4]byte{'D', 'L', 'T', 0x01}

// ErrCorrupt means a capture file does not contain the expected
// storage header or frame structure.
var ErrCorrupt = errors.New("corrupt capture file")

// StorageHeader records when and from which ECU a frame was received.
// Time has microsecond resolution on disk.
type StorageHeader struct {
	Time  time.Time
	ECUID frame.ID
}

// AppendTo appends the encoded header to dst. Seconds and
// microseconds are little-endian.
func (h StorageHeader) AppendTo(dst []byte) []byte {
	dst = append(dst, StoragePattern[:]...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.Time.Unix()))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.Time.Nanosecond()/1000))
	return append(dst, h.ECUID[:]...)
}

// ParseStorageHeader decodes the header at the start of data.
func ParseStorageHeader(data []byte) (StorageHeader, error) {
	if len(data) < StorageHeaderSize {
		return StorageHeader{}, fmt.Errorf("%w: %d bytes is shorter than a storage header", ErrCorrupt, len(data))
	}
	if [4]byte(data[:4]) != StoragePattern {
		return StorageHeader{}, fmt.Errorf("%w: storage pattern % x, want % x", ErrCorrupt, data[:4], StoragePattern)
	}
	seconds := binary.LittleEndian.Uint32(data[4:8])
	microseconds := binary.LittleEndian.Uint32(data[8:12])
	if microseconds >= 1_000_000 {
		return StorageHeader{}, fmt.Errorf("%w: microsecond field %d out of range", ErrCorrupt, microseconds)
	}
	header := StorageHeader{Time: time.Unix(int64(seconds), int64(microseconds)*1000).UTC()}
	copy(header.ECUID[:], data[12:16])
	return header, nil
}
