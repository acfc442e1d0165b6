// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by everything that
// ships decoded frames off the host: NATS messages, CBOR record
// streams on stdout, and tests that decode them again.
//
// Encoding is Core Deterministic (RFC 8949 §4.2), so the same record
// always produces the same bytes. Records carry `json` struct tags;
// fxamacker/cbor falls back to them when no `cbor` tag is present, so
// one tag names a field in both encodings.
//
//	data, err := codec.Marshal(record)
//	encoder := codec.NewEncoder(os.Stdout)
package codec
