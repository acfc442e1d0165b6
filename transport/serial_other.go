// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package transport

import "fmt"

func openSerial(device string, _ int) (Conn, error) {
	return nil, fmt.Errorf("%w: serial transport for %s is only implemented on linux", ErrUnsupported, device)
}
