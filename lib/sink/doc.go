// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sink forwards decoded frames to other systems. Each sink is
// a client.Handler:
//
//   - [Publisher] publishes a CBOR [Record] per frame to NATS on
//     subject <prefix>.<ecu>.<apid>.<ctid>.
//   - [Shadow] keeps a per-ECU hash in Redis (last counter, last
//     application and context, last seen, frame count) that expires
//     when the ECU goes quiet.
//   - [StreamWriter] writes records as a CBOR sequence to any writer.
package sink
