// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client connects to a log daemon and delivers the frames it
// sends to a [Handler].
//
// A [Client] owns one transport connection and the receive buffer for
// it. Its lifecycle is New, Connect, Run, Close:
//
//	c, err := client.New(client.Config{Transport: transport.Config{Host: "ecu.local"}})
//	...
//	if err := c.Connect(ctx); err != nil { ... }
//	defer c.Close()
//	termination, err := c.Run(ctx, handler)
//
// Run is the dispatch loop. It reads from the transport into the
// buffer, scans as many complete frames as the buffer holds, hands each
// one to the handler, and discards it before scanning again. Frames are
// delivered in stream order, one at a time, on the goroutine that
// called Run. A [frame.Frame] passed to the handler aliases the receive
// buffer and must not be retained after HandleFrame returns.
//
// Run ends with a [Termination] that separates the clean outcomes (the
// peer closed, a handler or the Continue predicate asked to stop, the
// context was cancelled) from failures. Only failures carry an error.
// Cancelling the context wakes a Run blocked in a read by shutting the
// transport down out of band.
//
// [Client.Send] writes to the same connection from any goroutine, which
// is how control requests travel while Run drains the responses (see
// package control).
package client
