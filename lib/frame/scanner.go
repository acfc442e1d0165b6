// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrIncomplete means the scanned bytes are a valid prefix of a
	// frame (or contain no frame start yet). More bytes are needed; it
	// is not a failure.
	ErrIncomplete = errors.New("incomplete frame")

	// ErrFraming means the header at the scan position is structurally
	// invalid. The stream can be resynchronized by dropping the byte
	// count returned alongside it.
	ErrFraming = errors.New("framing error")

	// ErrFrameTooLarge means a header announced a frame larger than the
	// scanner's MaxFrameSize. Waiting for more bytes cannot help; the
	// connection must be reset.
	ErrFrameTooLarge = errors.New("frame too large")
)

// SyncMode selects how the Scanner treats the serial sync marker.
type SyncMode int

const (
	// SyncNone expects frames to start directly with a primary header.
	SyncNone SyncMode = iota

	// SyncMarker expects every frame to be preceded by Marker.
	SyncMarker

	// SyncAuto starts like SyncNone and switches to SyncMarker the
	// first time a frame is found behind a marker. The switch is
	// permanent until Reset.
	SyncAuto
)

func (m SyncMode) String() string {
	switch m {
	case SyncNone:
		return "none"
	case SyncMarker:
		return "marker"
	case SyncAuto:
		return "auto"
	default:
		return fmt.Sprintf("sync(%d)", int(m))
	}
}

// ParseSyncMode accepts the names produced by SyncMode.String.
func ParseSyncMode(name string) (SyncMode, error) {
	switch name {
	case "none", "":
		return SyncNone, nil
	case "marker":
		return SyncMarker, nil
	case "auto":
		return SyncAuto, nil
	default:
		return 0, fmt.Errorf("unknown sync mode %q (want none, marker or auto)", name)
	}
}

// DefaultMaxMarkerSearch bounds how many bytes the scanner examines
// for a sync marker before declaring the region garbage.
const DefaultMaxMarkerSearch = 4096

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	// MaxFrameSize is the largest frame, including sync marker, the
	// caller can hold. Headers announcing more yield ErrFrameTooLarge.
	// Zero means MarkerSize + MaxLength.
	MaxFrameSize int

	// Sync selects marker handling.
	Sync SyncMode

	// Resync, in marker mode, searches the whole buffered region for
	// the marker instead of requiring it at offset zero. The dispatch
	// loop also uses it to decide whether framing errors are
	// recoverable.
	Resync bool

	// MaxMarkerSearch bounds the marker search. Zero means
	// DefaultMaxMarkerSearch.
	MaxMarkerSearch int
}

// Scanner decodes frames from the front of a byte region. It keeps
// two pieces of per-connection state: whether marker framing has been
// observed (SyncAuto), and how far the marker search has already
// progressed so that repeated scans of a growing buffer do not
// re-examine bytes known to contain no marker.
//
// Because of that search position, the caller must report every
// discard from the front of the region through Advance. A Scanner is
// not safe for concurrent use.
type Scanner struct {
	config       ScannerConfig
	markerLocked bool
	searched     int
}

// NewScanner returns a Scanner with defaults applied to config.
func NewScanner(config ScannerConfig) *Scanner {
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = MarkerSize + MaxLength
	}
	if config.MaxMarkerSearch <= 0 {
		config.MaxMarkerSearch = DefaultMaxMarkerSearch
	}
	return &Scanner{config: config}
}

// Config returns the effective configuration.
func (s *Scanner) Config() ScannerConfig { return s.config }

// UsingMarker reports whether frames are currently expected behind a
// sync marker.
func (s *Scanner) UsingMarker() bool {
	return s.config.Sync == SyncMarker || s.markerLocked
}

// Advance tells the scanner that n bytes were removed from the front
// of the scanned region.
func (s *Scanner) Advance(n int) {
	s.searched -= n
	if s.searched < 0 {
		s.searched = 0
	}
}

// Reset forgets marker detection and search progress, for use after
// the caller resets its buffer.
func (s *Scanner) Reset() {
	s.markerLocked = false
	s.searched = 0
}

// Scan attempts to decode exactly one frame from the front of data.
//
// On success it returns the frame and the number of bytes the caller
// must discard: any garbage before the marker, the marker, and the
// frame itself.
//
// On ErrIncomplete the count is the number of leading bytes that
// provably cannot begin a frame (garbage before a marker). Callers may
// drop them early when their buffer is full; otherwise they can leave
// them and they are included in the next successful count.
//
// On an ErrFraming error the count is the number of bytes to drop
// before scanning again (at least one). On ErrFrameTooLarge the count
// is zero and the stream cannot be recovered.
//
// Scan never reads beyond len(data) and never reports a frame unless
// every byte of it is present.
func (s *Scanner) Scan(data []byte) (Frame, int, error) {
	offset := 0
	markerSize := 0

	useMarker := s.UsingMarker()
	if s.config.Sync == SyncAuto && !s.markerLocked {
		switch {
		case len(data) >= MarkerSize && bytes.Equal(data[:MarkerSize], Marker[:]):
			useMarker = true
		case len(data) < MarkerSize && bytes.HasPrefix(Marker[:], data):
			// Could still become a marker.
			return Frame{}, 0, ErrIncomplete
		}
	}

	if useMarker {
		found, droppable, err := s.findMarker(data)
		if err != nil {
			return Frame{}, droppable, err
		}
		offset = found
		markerSize = MarkerSize
	}

	start := offset + markerSize
	rest := data[start:]
	if len(rest) < PrimaryHeaderSize {
		return Frame{}, offset, ErrIncomplete
	}

	length, err := checkPrimaryHeader(rest)
	if err != nil {
		return Frame{}, s.framingDrop(offset), err
	}
	if total := markerSize + length; total > s.config.MaxFrameSize {
		return Frame{}, 0, fmt.Errorf("%w: header announces %d bytes, limit is %d",
			ErrFrameTooLarge, total, s.config.MaxFrameSize)
	}
	if len(rest) < length {
		return Frame{}, offset, ErrIncomplete
	}

	if markerSize > 0 && s.config.Sync == SyncAuto {
		s.markerLocked = true
	}
	s.searched = 0
	return Frame{data: rest[:length:length], marker: markerSize > 0}, start + length, nil
}

// findMarker locates the sync marker. Without Resync the marker must
// be at offset zero. With Resync the region is searched, starting
// where the previous search gave up.
func (s *Scanner) findMarker(data []byte) (int, int, error) {
	if !s.config.Resync {
		if len(data) < MarkerSize {
			if bytes.HasPrefix(Marker[:], data) {
				return 0, 0, ErrIncomplete
			}
			return 0, 1, fmt.Errorf("%w: expected sync marker at frame start", ErrFraming)
		}
		if !bytes.Equal(data[:MarkerSize], Marker[:]) {
			return 0, 1, fmt.Errorf("%w: expected sync marker at frame start, found % x",
				ErrFraming, data[:MarkerSize])
		}
		return 0, 0, nil
	}

	if s.searched > len(data) {
		s.searched = 0
	}
	index := bytes.Index(data[s.searched:], Marker[:])
	if index >= 0 {
		s.searched += index
		return s.searched, 0, nil
	}

	// Keep the tail that could be the start of a split marker.
	s.searched = max(0, len(data)-(MarkerSize-1))
	if len(data) > s.config.MaxMarkerSearch {
		drop := s.searched
		s.searched = 0
		return 0, drop, fmt.Errorf("%w: no sync marker in %d bytes", ErrFraming, len(data))
	}
	return 0, s.searched, ErrIncomplete
}

// framingDrop returns how many bytes to drop after a header at offset
// failed validation: the garbage before it plus one byte, so that the
// next scan starts searching past the rejected position.
func (s *Scanner) framingDrop(offset int) int {
	s.searched = 0
	return offset + 1
}
