// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds what dlt-receive and dlt-control share around
// their command bodies: the stderr logger, categorized errors and the
// mapping from errors to process exit codes.
//
// Commands return errors; main passes them to [Exit]:
//
//	func main() {
//	    cli.Exit("dlt-receive", run(os.Args[1:]))
//	}
//
// Usage mistakes are built with [Validation] and exit with
// [ExitUsage]. An [ExitError] carries a code without printing
// anything, for commands that already reported their outcome.
package cli
