// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the byte sources a log client reads from.
//
// Every driver returns a [Conn]: an io.Reader/io.Writer pair tagged with
// a [receiver.Kind] that tells the receive buffer whether reads deliver
// an ordered byte stream or whole datagrams. [Dial] selects the driver
// from [Config.Mode]:
//
//   - tcp: a stream connection to the daemon (default port 3490).
//   - unix: a stream connection to the daemon's local socket
//     (default /tmp/dlt).
//   - udp: a bound datagram socket, optionally joined to a multicast
//     group. SO_REUSEADDR lets several receivers share the port. One
//     Read returns one datagram; datagrams larger than the read buffer
//     fail with [ErrDatagramTruncated] instead of being cut silently.
//   - serial: a raw 8N1 tty at the configured baud rate (Linux only).
//     Frames on serial links are normally preceded by a sync marker;
//     the scanner, not the driver, deals with it.
//
// [Conn.Shutdown] wakes a goroutine blocked in Read from another
// goroutine. After Shutdown, Read returns [ErrShutdown] and read
// deadlines can no longer be extended, so a cancelled dispatch loop
// cannot be left blocked by a racing deadline update.
package transport
