// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type readStep struct {
	data []byte
	err  error
}

// scriptedSource returns its steps in order. A step whose data does not
// fit in the read buffer is split across calls, like a stream socket.
type scriptedSource struct {
	steps []readStep
	calls int
}

func (s *scriptedSource) Read(p []byte) (int, error) {
	s.calls++
	if len(s.steps) == 0 {
		return 0, io.EOF
	}
	step := s.steps[0]
	count := copy(p, step.data)
	if count < len(step.data) {
		s.steps[0].data = step.data[count:]
		return count, nil
	}
	s.steps = s.steps[1:]
	return count, step.err
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{}
	tests := []struct {
		name     string
		source   Source
		capacity int
		want     error
	}{
		{name: "nil source", source: nil, capacity: 16, want: ErrInvalidArgument},
		{name: "zero capacity", source: source, capacity: 0, want: ErrInvalidArgument},
		{name: "negative capacity", source: source, capacity: -1, want: ErrInvalidArgument},
		{name: "over maximum", source: source, capacity: MaxCapacity + 1, want: ErrAllocation},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(test.source, Stream, test.capacity)
			if !errors.Is(err, test.want) {
				t.Errorf("New error = %v, want %v", err, test.want)
			}
		})
	}
}

func TestReadAvailableAccumulates(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{steps: []readStep{
		{data: []byte("abc")},
		{data: []byte("defg")},
	}}
	receiver, err := New(source, Stream, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, want := range []string{"abc", "abcdefg"} {
		if _, err := receiver.ReadAvailable(); err != nil {
			t.Fatalf("ReadAvailable: %v", err)
		}
		if got := string(receiver.Bytes()); got != want {
			t.Errorf("Bytes() = %q, want %q", got, want)
		}
	}
	if receiver.LastReadLength() != 4 {
		t.Errorf("LastReadLength() = %d, want 4", receiver.LastReadLength())
	}
	if receiver.TotalReceived() != 7 || receiver.Len() != 7 || receiver.Available() != 9 {
		t.Errorf("total = %d, len = %d, available = %d", receiver.TotalReceived(), receiver.Len(), receiver.Available())
	}

	_, err = receiver.ReadAvailable()
	if !errors.Is(err, ErrTransportClosed) || !errors.Is(err, io.EOF) {
		t.Errorf("ReadAvailable at end = %v, want ErrTransportClosed wrapping io.EOF", err)
	}
}

func TestReadAvailableDataWithError(t *testing.T) {
	t.Parallel()
	failure := errors.New("connection reset")
	source := &scriptedSource{steps: []readStep{{data: []byte("tail"), err: failure}}}
	receiver, err := New(source, Stream, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	count, err := receiver.ReadAvailable()
	if err != nil || count != 4 {
		t.Fatalf("first ReadAvailable = %d, %v; want 4, nil", count, err)
	}
	_, err = receiver.ReadAvailable()
	if !errors.Is(err, failure) {
		t.Errorf("second ReadAvailable = %v, want wrapped %v", err, failure)
	}
	if errors.Is(err, ErrTransportClosed) {
		t.Error("transport failure reported as orderly close")
	}
	if string(receiver.Bytes()) != "tail" {
		t.Errorf("data lost: Bytes() = %q", receiver.Bytes())
	}
}

func TestReadAvailableZeroReadClosesStream(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{steps: []readStep{{data: nil}}}
	receiver, err := New(source, Stream, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := receiver.ReadAvailable(); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("zero-length stream read = %v, want ErrTransportClosed", err)
	}
}

func TestReadAvailableFullBuffer(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{steps: []readStep{{data: []byte("12345678")}, {data: []byte("more")}}}
	receiver, err := New(source, Stream, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := receiver.ReadAvailable(); err != nil {
		t.Fatalf("ReadAvailable: %v", err)
	}
	if !receiver.Full() {
		t.Fatal("Full() = false with 8 of 8 bytes")
	}
	calls := source.calls
	if _, err := receiver.ReadAvailable(); !errors.Is(err, ErrBufferExhausted) {
		t.Errorf("ReadAvailable on full buffer = %v, want ErrBufferExhausted", err)
	}
	if source.calls != calls {
		t.Error("source was read although the buffer was full")
	}
}

func TestDiscardCompacts(t *testing.T) {
	t.Parallel()
	receiver, err := New(&scriptedSource{}, Stream, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := receiver.Append([]byte("frame1frame2par")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := receiver.Discard(6); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if got := string(receiver.Bytes()); got != "frame2par" {
		t.Errorf("after first discard Bytes() = %q", got)
	}
	if err := receiver.Discard(6); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if got := string(receiver.Bytes()); got != "par" {
		t.Errorf("after second discard Bytes() = %q", got)
	}
	if receiver.LastReadLength() != 3 {
		t.Errorf("LastReadLength() = %d, want clamp to 3", receiver.LastReadLength())
	}

	for _, n := range []int{-1, 4} {
		if err := receiver.Discard(n); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Discard(%d) = %v, want ErrInvalidArgument", n, err)
		}
	}
	if receiver.Len() != 3 {
		t.Errorf("failed discard changed length to %d", receiver.Len())
	}
}

func TestAppendOverflow(t *testing.T) {
	t.Parallel()
	receiver, err := New(&scriptedSource{}, Stream, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := receiver.Append([]byte("abc")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := receiver.Append([]byte("de")); !errors.Is(err, ErrBufferExhausted) {
		t.Errorf("Append overflow = %v, want ErrBufferExhausted", err)
	}
	if string(receiver.Bytes()) != "abc" {
		t.Errorf("partial append happened: %q", receiver.Bytes())
	}
}

func TestDatagramDropsLeftovers(t *testing.T) {
	t.Parallel()
	source := &scriptedSource{steps: []readStep{
		{data: []byte("first")},
		{data: nil},
		{data: []byte("second")},
	}}
	receiver, err := New(source, Datagram, 32)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := receiver.ReadAvailable(); err != nil {
		t.Fatalf("ReadAvailable: %v", err)
	}
	if err := receiver.Discard(2); err != nil {
		t.Fatalf("Discard: %v", err)
	}

	count, err := receiver.ReadAvailable()
	if err != nil || count != 0 {
		t.Fatalf("empty datagram = %d, %v; want 0, nil", count, err)
	}
	if receiver.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", receiver.Dropped())
	}

	if _, err := receiver.ReadAvailable(); err != nil {
		t.Fatalf("ReadAvailable: %v", err)
	}
	if got := string(receiver.Bytes()); got != "second" {
		t.Errorf("Bytes() = %q, want %q", got, "second")
	}
	if receiver.Kind() != Datagram || receiver.Kind().String() != "datagram" {
		t.Errorf("Kind() = %v", receiver.Kind())
	}
}

func TestResetAndFree(t *testing.T) {
	t.Parallel()
	receiver, err := New(&scriptedSource{steps: []readStep{{data: []byte("xyz")}}}, Stream, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := receiver.ReadAvailable(); err != nil {
		t.Fatalf("ReadAvailable: %v", err)
	}
	receiver.Reset()
	if receiver.Len() != 0 || receiver.LastReadLength() != 0 || receiver.Cap() != 8 {
		t.Errorf("after Reset: len %d last %d cap %d", receiver.Len(), receiver.LastReadLength(), receiver.Cap())
	}
	if receiver.TotalReceived() != 3 {
		t.Errorf("Reset cleared TotalReceived: %d", receiver.TotalReceived())
	}

	receiver.Free()
	if receiver.Cap() != 0 || len(receiver.Bytes()) != 0 {
		t.Error("Free did not release the buffer")
	}
	if _, err := receiver.ReadAvailable(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ReadAvailable after Free = %v, want ErrInvalidArgument", err)
	}
	if err := receiver.Append([]byte("a")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Append after Free = %v, want ErrInvalidArgument", err)
	}
}

func TestDiscardPreservesBytesAcrossReads(t *testing.T) {
	t.Parallel()
	stream := bytes.Repeat([]byte("0123456789"), 10)
	var steps []readStep
	for offset := 0; offset < len(stream); offset += 7 {
		steps = append(steps, readStep{data: stream[offset:min(offset+7, len(stream))]})
	}
	receiver, err := New(&scriptedSource{steps: steps}, Stream, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var collected []byte
	for {
		_, err := receiver.ReadAvailable()
		if errors.Is(err, ErrTransportClosed) {
			break
		}
		if err != nil {
			t.Fatalf("ReadAvailable: %v", err)
		}
		// Consume in fixed units of 5, leaving partial remainders.
		for receiver.Len() >= 5 {
			collected = append(collected, receiver.Bytes()[:5]...)
			if err := receiver.Discard(5); err != nil {
				t.Fatalf("Discard: %v", err)
			}
		}
	}
	if !bytes.Equal(collected, stream) {
		t.Errorf("collected %d bytes, stream had %d; contents differ", len(collected), len(stream))
	}
}
