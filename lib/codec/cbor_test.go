// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type sample struct {
	ECU      string    `json:"ecu"`
	Counter  uint8     `json:"counter"`
	Received time.Time `json:"received"`
	Payload  []byte    `json:"payload,omitempty"`
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	original := sample{
		ECU:      "NAV1",
		Counter:  200,
		Received: time.Date(2026, 5, 6, 7, 8, 9, 123456789, time.UTC),
		Payload:  []byte{0xde, 0xad},
	}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sample
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ECU != original.ECU || decoded.Counter != original.Counter ||
		!decoded.Received.Equal(original.Received) || !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("round trip = %+v, want %+v", decoded, original)
	}
}

func TestDeterministicKeyOrder(t *testing.T) {
	t.Parallel()
	first, err := Marshal(map[string]int{"zeta": 1, "alpha": 2, "mid": 3})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(map[string]int{"mid": 3, "alpha": 2, "zeta": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("map encoding depends on insertion order: %x vs %x", first, second)
	}
}

func TestTimeAsText(t *testing.T) {
	t.Parallel()
	data, err := Marshal(sample{Received: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"received": "2026-01-02T03:04:05Z"`) {
		t.Errorf("diagnostic = %s, want RFC 3339 text time", diagnostic)
	}
	if strings.Contains(diagnostic, `"payload"`) {
		t.Errorf("empty payload was not omitted: %s", diagnostic)
	}
}

func TestUntypedMapsUseStringKeys(t *testing.T) {
	t.Parallel()
	data, err := Marshal(map[string]any{"nested": map[string]any{"key": "value"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if _, ok := outer["nested"].(map[string]any); !ok {
		t.Errorf("nested value is %T, want map[string]any", outer["nested"])
	}
}

func TestStream(t *testing.T) {
	t.Parallel()
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for counter := range uint8(3) {
		if err := encoder.Encode(sample{ECU: "ECU", Counter: counter}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for counter := range uint8(3) {
		var decoded sample
		if err := decoder.Decode(&decoded); err != nil {
			t.Fatalf("Decode %d: %v", counter, err)
		}
		if decoded.Counter != counter {
			t.Errorf("item %d has counter %d", counter, decoded.Counter)
		}
	}
	var extra sample
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode past end = %v, want io.EOF", err)
	}
}
