// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"fmt"
	"strings"
)

// idSize is the wire size of ECU, application and context identifiers.
const idSize = 4

// ID is a 4-byte ASCII identifier (ECU id, application id, context
// id). Shorter identifiers are padded with spaces on the wire.
type ID [idSize]byte

// ParseID converts a string of at most four printable ASCII characters
// into an ID, padding with spaces.
func ParseID(value string) (ID, error) {
	var id ID
	if len(value) > idSize {
		return id, fmt.Errorf("identifier %q longer than %d characters", value, idSize)
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return id, fmt.Errorf("identifier %q contains non-printable byte 0x%02x", value, value[i])
		}
	}
	copy(id[:], value)
	for i := len(value); i < idSize; i++ {
		id[i] = ' '
	}
	return id, nil
}

// MustParseID is ParseID for constants. Panics on invalid input.
func MustParseID(value string) ID {
	id, err := ParseID(value)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identifier without trailing space or NUL padding.
// Peers that pad with NUL bytes decode to the same string as peers
// that pad with spaces.
func (id ID) String() string {
	return strings.TrimRight(string(id[:]), " \x00")
}

// IsZero reports whether the identifier is empty (all padding).
func (id ID) IsZero() bool {
	return id.String() == ""
}
