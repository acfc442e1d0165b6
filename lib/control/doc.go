// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control builds control requests for a log daemon and matches
// the responses that come back on the same connection.
//
// Control messages are ordinary frames whose extended header carries
// message type control. The payload starts with a 32-bit service id in
// the frame's byte order; requests follow it with service arguments,
// responses with a one-byte [Status] and service data.
//
// The protocol has no request identifier, so a [Requester] keeps at
// most one request outstanding and takes the first response with the
// same service id. It is a [client.Handler]: chain it in front of the
// handler passed to [client.Client.Run] so responses reach it while
// log frames keep flowing.
package control
