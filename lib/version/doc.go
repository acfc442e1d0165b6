// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the dlt
// commands.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/dltlink/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without injection the commit falls back to the VCS stamp in the
// binary's build info, and then to "unknown".
//
// [Info] produces "0.1.0-dev (abc1234, 2026-02-10T...)"; [Full] adds
// the Go version and GOOS/GOARCH; [Print] writes the --version output.
package version
