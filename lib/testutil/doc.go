// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. They are
// the only place tests wait on the wall clock; timeouts under test use
// a fake clock from lib/clock.
//
// [SocketDir] creates a short directory in /tmp for Unix domain
// sockets, whose paths are limited to 108 bytes.
//
// [ListenLoopback] and [AcceptOne] stand up a loopback TCP peer for
// tests that play the daemon side of a connection.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
