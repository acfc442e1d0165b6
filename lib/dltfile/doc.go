// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dltfile writes and reads capture files: each frame is
// stored behind a 16-byte storage header carrying the receive time and
// ECU id.
//
// A capture can be compressed as a whole with zstd or lz4. Files made
// by [Create] get a BLAKE3 digest of the uncompressed stream in a
// "<path>.b3" sidecar, in the format printed by b3sum, which [Verify]
// checks. [Open] detects the compression from the file's first bytes.
package dltfile
