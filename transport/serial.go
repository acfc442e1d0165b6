// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

// baudRates lists the serial speeds the driver accepts.
var baudRates = map[int]struct{}{
	9600:   {},
	19200:  {},
	38400:  {},
	57600:  {},
	115200: {},
	230400: {},
	460800: {},
	921600: {},
}
