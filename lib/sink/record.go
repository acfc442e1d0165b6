// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bureau-foundation/dltlink/lib/clock"
	"github.com/bureau-foundation/dltlink/lib/codec"
	"github.com/bureau-foundation/dltlink/lib/frame"
)

// Record is the serialized form of one frame. Optional header fields
// are omitted when the frame does not carry them.
type Record struct {
	Received    time.Time `json:"received"`
	ECU         string    `json:"ecu,omitempty"`
	Counter     uint8     `json:"counter"`
	SessionID   *uint32   `json:"session_id,omitempty"`
	Timestamp   *uint32   `json:"timestamp,omitempty"`
	Application string    `json:"apid,omitempty"`
	Context     string    `json:"ctid,omitempty"`
	Type        string    `json:"type,omitempty"`
	Level       string    `json:"level,omitempty"`
	Verbose     bool      `json:"verbose,omitempty"`
	Arguments   uint8     `json:"arguments,omitempty"`
	Payload     []byte    `json:"payload,omitempty"`
}

// NewRecord copies the fields of received.
func NewRecord(received frame.Frame, at time.Time) Record {
	record := Record{Received: at.UTC(), Counter: received.Counter()}
	if ecu, ok := received.ECUID(); ok {
		record.ECU = ecu.String()
	}
	if session, ok := received.SessionID(); ok {
		record.SessionID = &session
	}
	if timestamp, ok := received.Timestamp(); ok {
		record.Timestamp = &timestamp
	}
	if extended, ok := received.Extended(); ok {
		record.Application = extended.ApplicationID.String()
		record.Context = extended.ContextID.String()
		record.Type = extended.Info.Type().String()
		if level, ok := extended.Info.Level(); ok {
			record.Level = level.String()
		}
		record.Verbose = extended.Info.Verbose()
		record.Arguments = extended.ArgumentCount
	}
	if payload := received.Payload(); len(payload) > 0 {
		record.Payload = append([]byte(nil), payload...)
	}
	return record
}

// StreamWriter encodes one Record per frame to a writer.
type StreamWriter struct {
	mutex   sync.Mutex
	encoder *codec.Encoder
	clock   clock.Clock
}

// NewStreamWriter returns a StreamWriter stamping records with
// clock.Now. A nil clock means the wall clock.
func NewStreamWriter(w io.Writer, now clock.Clock) *StreamWriter {
	if now == nil {
		now = clock.Real()
	}
	return &StreamWriter{encoder: codec.NewEncoder(w), clock: now}
}

// HandleFrame implements client.Handler.
func (s *StreamWriter) HandleFrame(_ context.Context, received frame.Frame) error {
	record := NewRecord(received, s.clock.Now())
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.encoder.Encode(record); err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	return nil
}
