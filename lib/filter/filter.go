// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filter selects frames by ECU, application, context and log
// level. Filters are usually read from a JSONC file:
//
//	{
//	  // warnings and worse from the navigation ECU
//	  "rules": [
//	    {"ecu": "NAV1", "level": "warn"},
//	    {"apid": "DIAG", "ctid": "UDS"},
//	  ],
//	}
//
// A frame passes when any rule matches it. A rule matches when every
// field it names matches; an empty filter passes everything.
package filter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/dltlink/client"
	"github.com/bureau-foundation/dltlink/lib/frame"
)

// MaxRules is the largest number of rules one filter holds.
const MaxRules = 30

// ErrTooManyRules is returned when a filter exceeds MaxRules.
var ErrTooManyRules = errors.New("too many filter rules")

// Rule matches frames on the fields that are set. Zero IDs and a zero
// MaxLevel match anything.
type Rule struct {
	ECUID         frame.ID
	ApplicationID frame.ID
	ContextID     frame.ID

	// MaxLevel passes log messages at this level or more severe.
	// Non-log messages never match a rule with a level.
	MaxLevel frame.LogLevel
}

// Match reports whether received satisfies every field of the rule.
func (r Rule) Match(received frame.Frame) bool {
	if !r.ECUID.IsZero() {
		ecu, ok := received.ECUID()
		if !ok || ecu.String() != r.ECUID.String() {
			return false
		}
	}

	needsExtended := !r.ApplicationID.IsZero() || !r.ContextID.IsZero() || r.MaxLevel != 0
	if !needsExtended {
		return true
	}
	extended, ok := received.Extended()
	if !ok {
		return false
	}
	if !r.ApplicationID.IsZero() && extended.ApplicationID.String() != r.ApplicationID.String() {
		return false
	}
	if !r.ContextID.IsZero() && extended.ContextID.String() != r.ContextID.String() {
		return false
	}
	if r.MaxLevel != 0 {
		level, ok := extended.Info.Level()
		if !ok || level == 0 || level > r.MaxLevel {
			return false
		}
	}
	return true
}

// Filter is an immutable set of rules. The zero value passes
// everything.
type Filter struct {
	rules []Rule
}

// New returns a filter over rules.
func New(rules ...Rule) (*Filter, error) {
	if len(rules) > MaxRules {
		return nil, fmt.Errorf("%w: %d rules, limit is %d", ErrTooManyRules, len(rules), MaxRules)
	}
	return &Filter{rules: append([]Rule(nil), rules...)}, nil
}

// Rules returns a copy of the rules.
func (f *Filter) Rules() []Rule {
	return append([]Rule(nil), f.rules...)
}

// Match reports whether any rule matches received.
func (f *Filter) Match(received frame.Frame) bool {
	if f == nil || len(f.rules) == 0 {
		return true
	}
	for _, rule := range f.rules {
		if rule.Match(received) {
			return true
		}
	}
	return false
}

// Handler passes matching frames to next and drops the rest.
func Handler(f *Filter, next client.Handler) client.Handler {
	return client.HandlerFunc(func(ctx context.Context, received frame.Frame) error {
		if !f.Match(received) {
			return nil
		}
		return next.HandleFrame(ctx, received)
	})
}

type fileRule struct {
	ECU         string `json:"ecu,omitempty"`
	Application string `json:"apid,omitempty"`
	Context     string `json:"ctid,omitempty"`
	Level       string `json:"level,omitempty"`
}

type file struct {
	Rules []fileRule `json:"rules"`
}

// Parse reads a JSONC filter document. Comments and trailing commas
// are allowed.
func Parse(data []byte) (*Filter, error) {
	var document file
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return nil, fmt.Errorf("parsing filter: %w", err)
	}

	rules := make([]Rule, 0, len(document.Rules))
	var errs []error
	for index, entry := range document.Rules {
		rule, err := entry.rule()
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", index, err))
			continue
		}
		rules = append(rules, rule)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return New(rules...)
}

func (entry fileRule) rule() (Rule, error) {
	var rule Rule
	var err error
	if rule.ECUID, err = frame.ParseID(entry.ECU); err != nil {
		return rule, fmt.Errorf("ecu: %w", err)
	}
	if rule.ApplicationID, err = frame.ParseID(entry.Application); err != nil {
		return rule, fmt.Errorf("apid: %w", err)
	}
	if rule.ContextID, err = frame.ParseID(entry.Context); err != nil {
		return rule, fmt.Errorf("ctid: %w", err)
	}
	if entry.Level != "" {
		if rule.MaxLevel, err = frame.ParseLogLevel(entry.Level); err != nil {
			return rule, err
		}
	}
	return rule, nil
}

// Load reads a filter file.
func Load(path string) (*Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading filter %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// MarshalJSON encodes the filter in the file format read by Parse.
func (f *Filter) MarshalJSON() ([]byte, error) {
	document := file{Rules: make([]fileRule, 0, len(f.rules))}
	for _, rule := range f.rules {
		entry := fileRule{
			ECU:         rule.ECUID.String(),
			Application: rule.ApplicationID.String(),
			Context:     rule.ContextID.String(),
		}
		if rule.MaxLevel != 0 {
			entry.Level = rule.MaxLevel.String()
		}
		document.Rules = append(document.Rules, entry)
	}
	return json.Marshal(document)
}

// Save writes the filter to path.
func (f *Filter) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing filter %s: %w", path, err)
	}
	return nil
}
