// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/dltlink/client"
	"github.com/bureau-foundation/dltlink/lib/frame"
)

func makeFrame(t *testing.T, ecu, app, ctx string, messageType frame.MessageType, subtype uint8) frame.Frame {
	t.Helper()
	message := frame.Message{Flags: frame.FlagVersion, Payload: []byte("x")}
	if ecu != "" {
		message.Flags |= frame.FlagECUID
		message.ECUID = frame.MustParseID(ecu)
	}
	if app != "" || ctx != "" {
		message.Flags |= frame.FlagExtendedHeader
		message.Extended = frame.ExtendedHeader{
			Info:          frame.NewMessageInfo(messageType, subtype, false),
			ApplicationID: frame.MustParseID(app),
			ContextID:     frame.MustParseID(ctx),
		}
	}
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

func TestRuleMatch(t *testing.T) {
	t.Parallel()
	warnFromNav := makeFrame(t, "NAV1", "APP1", "CTX1", frame.TypeLog, uint8(frame.LevelWarn))
	debugFromNav := makeFrame(t, "NAV1", "APP1", "CTX1", frame.TypeLog, uint8(frame.LevelDebug))
	control := makeFrame(t, "NAV1", "DA1", "DC1", frame.TypeControl, frame.ControlResponse)
	bare := makeFrame(t, "NAV1", "", "", frame.TypeLog, 0)
	anonymous := makeFrame(t, "", "APP1", "CTX1", frame.TypeLog, uint8(frame.LevelError))

	tests := []struct {
		name     string
		rule     Rule
		received frame.Frame
		want     bool
	}{
		{"empty rule", Rule{}, bare, true},
		{"ecu match", Rule{ECUID: frame.MustParseID("NAV1")}, warnFromNav, true},
		{"ecu mismatch", Rule{ECUID: frame.MustParseID("ENG")}, warnFromNav, false},
		{"ecu absent", Rule{ECUID: frame.MustParseID("NAV1")}, anonymous, false},
		{"app and context", Rule{ApplicationID: frame.MustParseID("APP1"), ContextID: frame.MustParseID("CTX1")}, warnFromNav, true},
		{"context mismatch", Rule{ApplicationID: frame.MustParseID("APP1"), ContextID: frame.MustParseID("CTX2")}, warnFromNav, false},
		{"app without extended header", Rule{ApplicationID: frame.MustParseID("APP1")}, bare, false},
		{"ecu only without extended header", Rule{ECUID: frame.MustParseID("NAV1")}, bare, true},
		{"level at threshold", Rule{MaxLevel: frame.LevelWarn}, warnFromNav, true},
		{"level less severe", Rule{MaxLevel: frame.LevelWarn}, debugFromNav, false},
		{"level on control message", Rule{MaxLevel: frame.LevelVerbose}, control, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := test.rule.Match(test.received); got != test.want {
				t.Errorf("Match() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestFilterAnyRule(t *testing.T) {
	t.Parallel()
	var empty *Filter
	received := makeFrame(t, "ENG", "APP1", "CTX1", frame.TypeLog, uint8(frame.LevelInfo))
	if !empty.Match(received) {
		t.Error("nil filter rejected a frame")
	}

	f, err := New(Rule{ECUID: frame.MustParseID("NAV1")}, Rule{ApplicationID: frame.MustParseID("APP1")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !f.Match(received) {
		t.Error("second rule should match")
	}
	if f.Match(makeFrame(t, "ENG", "APP2", "CTX1", frame.TypeLog, uint8(frame.LevelInfo))) {
		t.Error("no rule should match")
	}
}

func TestNewTooManyRules(t *testing.T) {
	t.Parallel()
	if _, err := New(make([]Rule, MaxRules)...); err != nil {
		t.Fatalf("New with %d rules: %v", MaxRules, err)
	}
	if _, err := New(make([]Rule, MaxRules+1)...); !errors.Is(err, ErrTooManyRules) {
		t.Errorf("New with %d rules = %v, want ErrTooManyRules", MaxRules+1, err)
	}
}

func TestParseJSONC(t *testing.T) {
	t.Parallel()
	f, err := Parse([]byte(`{
		// navigation warnings
		"rules": [
			{"ecu": "NAV1", "level": "warn"},
			/* diagnostics */
			{"apid": "DIAG", "ctid": "UDS"},
		],
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rules := f.Rules()
	if len(rules) != 2 {
		t.Fatalf("parsed %d rules, want 2", len(rules))
	}
	if rules[0].ECUID.String() != "NAV1" || rules[0].MaxLevel != frame.LevelWarn {
		t.Errorf("rule 0 = %+v", rules[0])
	}
	if rules[1].ApplicationID.String() != "DIAG" || rules[1].ContextID.String() != "UDS" || rules[1].MaxLevel != 0 {
		t.Errorf("rule 1 = %+v", rules[1])
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		document string
		contains string
	}{
		{"not json", `rules = []`, "parsing filter"},
		{"long id", `{"rules": [{"apid": "TOOLONG"}]}`, "rule 0: apid"},
		{"bad level", `{"rules": [{}, {"level": "loud"}]}`, "rule 1"},
		{"too many", `{"rules": [` + strings.Repeat(`{},`, MaxRules+1) + `]}`, "too many"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(test.document))
			if err == nil || !strings.Contains(err.Error(), test.contains) {
				t.Errorf("Parse error = %v, want it to mention %q", err, test.contains)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	original, err := New(
		Rule{ECUID: frame.MustParseID("NAV1"), MaxLevel: frame.LevelError},
		Rule{ApplicationID: frame.MustParseID("APP"), ContextID: frame.MustParseID("CTX")},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path := filepath.Join(t.TempDir(), "filter.json")
	if err := original.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, want := loaded.Rules(), original.Rules()
	if len(got) != len(want) {
		t.Fatalf("loaded %d rules, want %d", len(got), len(want))
	}
	for index := range want {
		if got[index].ECUID.String() != want[index].ECUID.String() ||
			got[index].ApplicationID.String() != want[index].ApplicationID.String() ||
			got[index].ContextID.String() != want[index].ContextID.String() ||
			got[index].MaxLevel != want[index].MaxLevel {
			t.Errorf("rule %d = %+v, want %+v", index, got[index], want[index])
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load of missing file = %v, want os.ErrNotExist", err)
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	f, err := New(Rule{ECUID: frame.MustParseID("NAV1")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var passed []string
	next := client.HandlerFunc(func(_ context.Context, received frame.Frame) error {
		ecu, _ := received.ECUID()
		passed = append(passed, ecu.String())
		return nil
	})
	handler := Handler(f, next)
	for _, ecu := range []string{"NAV1", "ENG", "NAV1"} {
		if err := handler.HandleFrame(context.Background(), makeFrame(t, ecu, "", "", frame.TypeLog, 0)); err != nil {
			t.Fatalf("HandleFrame: %v", err)
		}
	}
	if len(passed) != 2 {
		t.Errorf("passed %v, want two NAV1 frames", passed)
	}
}
