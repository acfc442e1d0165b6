// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame implements the diagnostic log wire format: the frame
// layout, zero-copy views over received frames, an encoder for building
// frames, and the [Scanner] that locates frame boundaries in a stream
// of arbitrarily fragmented bytes.
//
// A frame on the wire is:
//
//	[sync marker "DLS\x01"]           serial transports only
//	flags(1) counter(1) length(2)      primary header
//	[ECU id(4)] [session id(4)] [timestamp(4)]   per flag bits
//	[message info(1) args(1) app id(4) context id(4)]   extended header
//	payload
//
// The length field is encoded in the byte order selected by
// [FlagBigEndian] and counts every byte from the first primary header
// byte through the end of the payload. The sync marker is never
// counted. Session id and timestamp use the same byte order as the
// length field.
//
// [Frame] values returned by [Scanner.Scan] alias the caller's buffer.
// They are valid until the caller discards the bytes they cover; use
// [Frame.Clone] or [Frame.Message] to retain anything past that point.
//
// [Message] is the owned counterpart used to build frames:
// [Message.Marshal] and [Scanner.Scan] are exact inverses for every
// combination of optional fields.
package frame
