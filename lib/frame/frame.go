// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import "fmt"

// Frame is a read-only view over one complete frame. The view covers
// the primary header through the end of the payload; a sync marker,
// if one preceded the frame, is not part of the view.
//
// A Frame returned by [Scanner.Scan] aliases the scanned buffer and is
// invalidated when the caller discards or overwrites those bytes.
// Accessors never copy; use Clone or Message to retain data.
type Frame struct {
	data   []byte
	marker bool
}

// Decode interprets data as exactly one frame (no sync marker, no
// trailing bytes). It applies the same structural validation as the
// Scanner.
func Decode(data []byte) (Frame, error) {
	if len(data) < PrimaryHeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes is shorter than the primary header", ErrFraming, len(data))
	}
	length, err := checkPrimaryHeader(data)
	if err != nil {
		return Frame{}, err
	}
	if length != len(data) {
		return Frame{}, fmt.Errorf("%w: length field %d does not match %d frame bytes", ErrFraming, length, len(data))
	}
	return Frame{data: data[:length:length]}, nil
}

// checkPrimaryHeader validates the flags and length of the primary
// header at the start of data (at least PrimaryHeaderSize bytes) and
// returns the frame length.
func checkPrimaryHeader(data []byte) (int, error) {
	flags := Flags(data[0])
	if err := flags.validate(); err != nil {
		return 0, err
	}
	length := int(flags.ByteOrder().Uint16(data[2:4]))
	if headerSize := flags.HeaderSize(); length < headerSize {
		return 0, fmt.Errorf("%w: length %d shorter than the %d header bytes implied by flags %s",
			ErrFraming, length, headerSize, flags)
	}
	return length, nil
}

// IsZero reports whether f is the zero Frame (no data).
func (f Frame) IsZero() bool { return f.data == nil }

// HasMarker reports whether a sync marker preceded the frame.
func (f Frame) HasMarker() bool { return f.marker }

// Bytes returns the whole frame: primary header through payload.
func (f Frame) Bytes() []byte { return f.data }

// Flags returns the primary header flags byte.
func (f Frame) Flags() Flags { return Flags(f.data[0]) }

// Counter returns the per-connection message counter.
func (f Frame) Counter() uint8 { return f.data[1] }

// Length returns the decoded length field, equal to len(f.Bytes()).
func (f Frame) Length() int {
	return int(f.Flags().ByteOrder().Uint16(f.data[2:4]))
}

// PrimaryHeader returns the flags, counter and length bytes.
func (f Frame) PrimaryHeader() []byte { return f.data[:PrimaryHeaderSize] }

// ExtraFields returns the ECU id, session id and timestamp bytes that
// are present, in wire order. Empty when none are flagged.
func (f Frame) ExtraFields() []byte {
	return f.data[PrimaryHeaderSize : PrimaryHeaderSize+f.Flags().ExtraFieldsSize()]
}

// ExtendedHeaderBytes returns the raw extended header, or nil when the
// frame has none.
func (f Frame) ExtendedHeaderBytes() []byte {
	flags := f.Flags()
	if !flags.Has(FlagExtendedHeader) {
		return nil
	}
	start := PrimaryHeaderSize + flags.ExtraFieldsSize()
	return f.data[start : start+ExtendedHeaderSize]
}

// Payload returns the bytes after all headers. May be empty.
func (f Frame) Payload() []byte { return f.data[f.Flags().HeaderSize():] }

// ECUID returns the ECU identifier when present.
func (f Frame) ECUID() (ID, bool) {
	var id ID
	if !f.Flags().Has(FlagECUID) {
		return id, false
	}
	copy(id[:], f.data[PrimaryHeaderSize:PrimaryHeaderSize+idSize])
	return id, true
}

// SessionID returns the session id when present.
func (f Frame) SessionID() (uint32, bool) {
	flags := f.Flags()
	if !flags.Has(FlagSessionID) {
		return 0, false
	}
	offset := PrimaryHeaderSize
	if flags.Has(FlagECUID) {
		offset += idSize
	}
	return flags.ByteOrder().Uint32(f.data[offset : offset+4]), true
}

// Timestamp returns the timestamp (0.1 ms units) when present.
func (f Frame) Timestamp() (uint32, bool) {
	flags := f.Flags()
	if !flags.Has(FlagTimestamp) {
		return 0, false
	}
	offset := PrimaryHeaderSize + flags.ExtraFieldsSize() - 4
	return flags.ByteOrder().Uint32(f.data[offset : offset+4]), true
}

// Extended returns the decoded extended header when present.
func (f Frame) Extended() (ExtendedHeader, bool) {
	raw := f.ExtendedHeaderBytes()
	if raw == nil {
		return ExtendedHeader{}, false
	}
	return decodeExtendedHeader(raw), true
}

// Message returns an owned copy of every field. Absent optional fields
// are left zero; Flags records which were present.
func (f Frame) Message() Message {
	message := Message{
		Flags:   f.Flags(),
		Counter: f.Counter(),
	}
	message.ECUID, _ = f.ECUID()
	message.SessionID, _ = f.SessionID()
	message.Timestamp, _ = f.Timestamp()
	message.Extended, _ = f.Extended()
	if payload := f.Payload(); len(payload) > 0 {
		message.Payload = append([]byte(nil), payload...)
	}
	return message
}

// Clone returns a Frame backed by its own copy of the bytes.
func (f Frame) Clone() Frame {
	if f.data == nil {
		return f
	}
	return Frame{data: append([]byte(nil), f.data...), marker: f.marker}
}
