// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import "fmt"

// Message is an owned, fully decoded frame. It is the input to the
// encoder and the output of [Frame.Message].
//
// Flags selects which optional fields are encoded: ECUID, SessionID
// and Timestamp are written only when the corresponding flag bit is
// set, and Extended only when FlagExtendedHeader is set. FlagVersion
// is always set on the wire regardless of its value in Flags.
type Message struct {
	Flags     Flags
	Counter   uint8
	ECUID     ID
	SessionID uint32
	Timestamp uint32
	Extended  ExtendedHeader
	Payload   []byte
}

func (m *Message) wireFlags() Flags {
	return m.Flags | FlagVersion
}

// HeaderSize is the number of header bytes preceding the payload.
func (m *Message) HeaderSize() int {
	return m.wireFlags().HeaderSize()
}

// Size is the value of the length field: header plus payload.
func (m *Message) Size() int {
	return m.HeaderSize() + len(m.Payload)
}

// AppendTo appends the encoded frame (without sync marker) to dst.
func (m *Message) AppendTo(dst []byte) ([]byte, error) {
	flags := m.wireFlags()
	if flags&flagsReserved != 0 {
		return dst, fmt.Errorf("encoding frame: reserved flag bits set (flags 0x%02x)", uint8(flags))
	}
	size := m.Size()
	if size > MaxLength {
		return dst, fmt.Errorf("%w: encoded length %d exceeds %d", ErrFrameTooLarge, size, MaxLength)
	}

	order := flags.ByteOrder()
	dst = append(dst, byte(flags), m.Counter)
	dst = order.AppendUint16(dst, uint16(size))
	if flags.Has(FlagECUID) {
		dst = append(dst, m.ECUID[:]...)
	}
	if flags.Has(FlagSessionID) {
		dst = order.AppendUint32(dst, m.SessionID)
	}
	if flags.Has(FlagTimestamp) {
		dst = order.AppendUint32(dst, m.Timestamp)
	}
	if flags.Has(FlagExtendedHeader) {
		dst = m.Extended.appendTo(dst)
	}
	return append(dst, m.Payload...), nil
}

// Marshal returns the encoded frame without sync marker.
func (m *Message) Marshal() ([]byte, error) {
	return m.AppendTo(make([]byte, 0, m.Size()))
}

// MarshalWithMarker returns the encoded frame preceded by Marker,
// as sent on serial links.
func (m *Message) MarshalWithMarker() ([]byte, error) {
	buffer := make([]byte, 0, MarkerSize+m.Size())
	buffer = append(buffer, Marker[:]...)
	return m.AppendTo(buffer)
}
