// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// PrimaryHeaderSize is the fixed size of the flags, counter and
	// length fields that start every frame.
	PrimaryHeaderSize = 4

	// ExtendedHeaderSize is the size of the optional extended header:
	// message info, argument count, application id, context id.
	ExtendedHeaderSize = 2 + 2*idSize

	// MaxLength is the largest value the 16-bit length field can carry,
	// and therefore the largest frame (excluding the sync marker).
	MaxLength = 0xFFFF

	// MarkerSize is the size of the serial sync marker.
	MarkerSize = 4
)

// Marker precedes every frame on marker-framed (serial) links.
var Marker = [MarkerSize]byte{'D', 'L', 'S', 0x01}

// Flags is the first byte of the primary header. The bits select the
// optional header fields and the byte order of multi-byte fields.
type Flags uint8

const (
	// FlagExtendedHeader marks the presence of the extended header.
	FlagExtendedHeader Flags = 1 << 0

	// FlagTimestamp marks the presence of the 4-byte timestamp
	// (0.1 ms units since ECU start).
	FlagTimestamp Flags = 1 << 1

	// FlagECUID marks the presence of the 4-byte ECU identifier.
	FlagECUID Flags = 1 << 2

	// FlagVersion identifies protocol version 1. Frames without it are
	// rejected as framing errors. It does not add any header bytes.
	FlagVersion Flags = 1 << 3

	// FlagSessionID marks the presence of the 4-byte session id.
	FlagSessionID Flags = 1 << 4

	// FlagBigEndian selects big-endian encoding for the length,
	// session id and timestamp fields. Clear means little-endian.
	FlagBigEndian Flags = 1 << 5

	// flagsReserved must be zero on the wire.
	flagsReserved Flags = 0xC0
)

// Has reports whether every bit of flag is set.
func (f Flags) Has(flag Flags) bool { return f&flag == flag }

// ByteOrder decodes and appends multi-byte header fields.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// ByteOrder returns the byte order selected by FlagBigEndian.
func (f Flags) ByteOrder() ByteOrder {
	if f.Has(FlagBigEndian) {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ExtraFieldsSize is the combined size of the ECU id, session id and
// timestamp fields selected by f.
func (f Flags) ExtraFieldsSize() int {
	size := 0
	if f.Has(FlagECUID) {
		size += idSize
	}
	if f.Has(FlagSessionID) {
		size += 4
	}
	if f.Has(FlagTimestamp) {
		size += 4
	}
	return size
}

// HeaderSize is the number of bytes from the start of the primary
// header to the start of the payload for a frame carrying flags f.
func (f Flags) HeaderSize() int {
	size := PrimaryHeaderSize + f.ExtraFieldsSize()
	if f.Has(FlagExtendedHeader) {
		size += ExtendedHeaderSize
	}
	return size
}

// validate checks the bits that make a header structurally
// interpretable. Length consistency is checked separately.
func (f Flags) validate() error {
	if f&flagsReserved != 0 {
		return fmt.Errorf("%w: reserved flag bits set (flags 0x%02x)", ErrFraming, uint8(f))
	}
	if !f.Has(FlagVersion) {
		return fmt.Errorf("%w: protocol version bit not set (flags 0x%02x)", ErrFraming, uint8(f))
	}
	return nil
}

func (f Flags) String() string {
	var names []string
	for _, bit := range []struct {
		flag Flags
		name string
	}{
		{FlagExtendedHeader, "ext"},
		{FlagTimestamp, "tms"},
		{FlagECUID, "ecu"},
		{FlagVersion, "v1"},
		{FlagSessionID, "sid"},
		{FlagBigEndian, "be"},
	} {
		if f.Has(bit.flag) {
			names = append(names, bit.name)
		}
	}
	if f&flagsReserved != 0 {
		names = append(names, fmt.Sprintf("reserved(0x%02x)", uint8(f&flagsReserved)))
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// MessageType is the 3-bit message type carried in MessageInfo.
type MessageType uint8

const (
	TypeLog          MessageType = 0
	TypeAppTrace     MessageType = 1
	TypeNetworkTrace MessageType = 2
	TypeControl      MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case TypeLog:
		return "log"
	case TypeAppTrace:
		return "app_trace"
	case TypeNetworkTrace:
		return "nw_trace"
	case TypeControl:
		return "control"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// LogLevel is the subtype of TypeLog messages.
type LogLevel uint8

const (
	LevelFatal   LogLevel = 1
	LevelError   LogLevel = 2
	LevelWarn    LogLevel = 3
	LevelInfo    LogLevel = 4
	LevelDebug   LogLevel = 5
	LevelVerbose LogLevel = 6
)

var logLevelNames = map[LogLevel]string{
	LevelFatal:   "fatal",
	LevelError:   "error",
	LevelWarn:    "warn",
	LevelInfo:    "info",
	LevelDebug:   "debug",
	LevelVerbose: "verbose",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// ParseLogLevel accepts the names produced by LogLevel.String.
func ParseLogLevel(name string) (LogLevel, error) {
	for level, levelName := range logLevelNames {
		if strings.EqualFold(name, levelName) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// Control message subtypes.
const (
	ControlRequest  uint8 = 1
	ControlResponse uint8 = 2
)

// MessageInfo is the first extended header byte: bit 0 verbose,
// bits 1-3 message type, bits 4-7 subtype.
type MessageInfo uint8

// NewMessageInfo packs a message type, subtype and verbose bit.
func NewMessageInfo(messageType MessageType, subtype uint8, verbose bool) MessageInfo {
	info := MessageInfo(messageType&0x07)<<1 | MessageInfo(subtype&0x0f)<<4
	if verbose {
		info |= 0x01
	}
	return info
}

// Verbose reports whether the payload carries type-tagged arguments.
func (m MessageInfo) Verbose() bool { return m&0x01 != 0 }

// Type returns the message type.
func (m MessageInfo) Type() MessageType { return MessageType(m>>1) & 0x07 }

// Subtype returns the raw subtype nibble.
func (m MessageInfo) Subtype() uint8 { return uint8(m >> 4) }

// Level returns the log level for TypeLog messages.
func (m MessageInfo) Level() (LogLevel, bool) {
	if m.Type() != TypeLog {
		return 0, false
	}
	return LogLevel(m.Subtype()), true
}

// ExtendedHeader is the decoded optional extended header.
type ExtendedHeader struct {
	Info          MessageInfo
	ArgumentCount uint8
	ApplicationID ID
	ContextID     ID
}

func (h ExtendedHeader) appendTo(dst []byte) []byte {
	dst = append(dst, byte(h.Info), h.ArgumentCount)
	dst = append(dst, h.ApplicationID[:]...)
	return append(dst, h.ContextID[:]...)
}

func decodeExtendedHeader(data []byte) ExtendedHeader {
	var header ExtendedHeader
	header.Info = MessageInfo(data[0])
	header.ArgumentCount = data[1]
	copy(header.ApplicationID[:], data[2:2+idSize])
	copy(header.ContextID[:], data[2+idSize:2+2*idSize])
	return header
}
