// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package format

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/dltlink/lib/frame"
)

func decode(t *testing.T, message frame.Message) frame.Frame {
	t.Helper()
	encoded, err := message.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := frame.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return decoded
}

func logFrame(t *testing.T, level frame.LogLevel, payload string) frame.Frame {
	t.Helper()
	return decode(t, frame.Message{
		Flags:     frame.FlagVersion | frame.FlagECUID | frame.FlagTimestamp | frame.FlagExtendedHeader,
		Counter:   7,
		ECUID:     frame.MustParseID("ECU"),
		Timestamp: 123456,
		Extended: frame.ExtendedHeader{
			Info:          frame.NewMessageInfo(frame.TypeLog, uint8(level), true),
			ArgumentCount: 1,
			ApplicationID: frame.MustParseID("APP1"),
			ContextID:     frame.MustParseID("CTX"),
		},
		Payload: []byte(payload),
	})
}

func TestHeader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		received frame.Frame
		want     string
	}{
		{
			name:     "log message",
			received: logFrame(t, frame.LevelWarn, "hi"),
			want:     "12.3456 007 ECU  APP1 CTX  log warn V 1",
		},
		{
			name: "control response with session",
			received: decode(t, frame.Message{
				Flags:     frame.FlagVersion | frame.FlagSessionID | frame.FlagExtendedHeader,
				Counter:   200,
				SessionID: 42,
				Extended: frame.ExtendedHeader{
					Info: frame.NewMessageInfo(frame.TypeControl, frame.ControlResponse, false),
				},
			}),
			want: "- 200 ---- 42 ---- ---- control response N 0",
		},
		{
			name:     "no extended header",
			received: decode(t, frame.Message{Flags: frame.FlagVersion, Counter: 1}),
			want:     "- 001 ---- ---- ---- - - - -",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := Header(test.received); got != test.want {
				t.Errorf("Header() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestPayloadRenderings(t *testing.T) {
	t.Parallel()
	data := []byte("ab\x00\xffcd")
	if got := Hex(data); got != "61 62 00 ff 63 64" {
		t.Errorf("Hex = %q", got)
	}
	if got := ASCII(data); got != "ab..cd" {
		t.Errorf("ASCII = %q", got)
	}

	mixed := Mixed(bytes.Repeat([]byte{'A'}, 20))
	lines := strings.Split(mixed, "\n")
	if len(lines) != 2 {
		t.Fatalf("Mixed produced %d lines, want 2:\n%s", len(lines), mixed)
	}
	if !strings.HasPrefix(lines[0], "000000: 41 41") || !strings.HasSuffix(lines[0], "|AAAAAAAAAAAAAAAA|") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "000010: 41 41 41 41 ") || !strings.HasSuffix(lines[1], "|AAAA|") {
		t.Errorf("second line = %q", lines[1])
	}
	if len(lines[0]) != len(lines[1])+12 {
		t.Errorf("ASCII column misaligned: %q vs %q", lines[0], lines[1])
	}
	if Mixed(nil) != "" {
		t.Error("Mixed(nil) should be empty")
	}
}

func TestLine(t *testing.T) {
	t.Parallel()
	received := logFrame(t, frame.LevelInfo, "up")
	header := Header(received)
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeHeader, header},
		{ModeASCII, header + " up"},
		{ModeHex, header + " [75 70]"},
		{ModeMixed, header + "\n000000: 75 70" + strings.Repeat(" ", 43) + "|up|"},
	}
	for _, test := range tests {
		if got := Line(received, test.mode); got != test.want {
			t.Errorf("Line(%v) = %q, want %q", test.mode, got, test.want)
		}
	}
}

func TestParseModeAndColor(t *testing.T) {
	t.Parallel()
	for mode := ModeHeader; mode <= ModeMixed; mode++ {
		if parsed, err := ParseMode(strings.ToUpper(mode.String())); err != nil || parsed != mode {
			t.Errorf("ParseMode(%q) = %v, %v", mode, parsed, err)
		}
	}
	if _, err := ParseMode("json"); err == nil {
		t.Error("ParseMode accepted json")
	}
	if color, err := ParseColor("never"); err != nil || color != ColorNever {
		t.Errorf("ParseColor(never) = %v, %v", color, err)
	}
	if _, err := ParseColor("sometimes"); err == nil {
		t.Error("ParseColor accepted sometimes")
	}
}

func TestPrinter(t *testing.T) {
	t.Parallel()
	var plain bytes.Buffer
	printer := NewPrinter(&plain, ModeASCII, ColorNever)
	for _, level := range []frame.LogLevel{frame.LevelError, frame.LevelInfo} {
		if err := printer.HandleFrame(context.Background(), logFrame(t, level, "msg")); err != nil {
			t.Fatalf("HandleFrame: %v", err)
		}
	}
	lines := strings.Split(strings.TrimSuffix(plain.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("printed %d lines, want 2: %q", len(lines), plain.String())
	}
	if strings.Contains(plain.String(), "\x1b[") {
		t.Errorf("ColorNever output contains escape sequences: %q", plain.String())
	}
	if !strings.HasSuffix(lines[0], "log error V 1 msg") {
		t.Errorf("line 0 = %q", lines[0])
	}

	var colored bytes.Buffer
	printer = NewPrinter(&colored, ModeASCII, ColorAlways)
	errorFrame := logFrame(t, frame.LevelError, "msg")
	if err := printer.HandleFrame(context.Background(), errorFrame); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if !strings.Contains(colored.String(), "\x1b[") || !strings.HasSuffix(colored.String(), " msg\n") {
		t.Errorf("ColorAlways output = %q, want styled header and plain payload", colored.String())
	}
	// Styling must not change the visible text.
	if visible, want := ansi.Strip(colored.String()), Line(errorFrame, ModeASCII)+"\n"; visible != want {
		t.Errorf("visible text = %q, want %q", visible, want)
	}
}
