// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/bureau-foundation/dltlink/lib/clock"
	"github.com/bureau-foundation/dltlink/lib/codec"
	"github.com/bureau-foundation/dltlink/lib/frame"
)

// DefaultSubjectPrefix is the first token of published subjects.
const DefaultSubjectPrefix = "dlt"

// MessagePublisher is the subset of *nats.Conn the Publisher uses.
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	SubjectPrefix string
	Clock         clock.Clock
	Logger        *slog.Logger
}

// Publisher publishes every frame as a CBOR Record.
type Publisher struct {
	conn      MessagePublisher
	prefix    string
	clock     clock.Clock
	logger    *slog.Logger
	published atomic.Uint64
}

// NewPublisher returns a Publisher sending through conn.
func NewPublisher(conn MessagePublisher, config PublisherConfig) *Publisher {
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = DefaultSubjectPrefix
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{
		conn:   conn,
		prefix: config.SubjectPrefix,
		clock:  config.Clock,
		logger: config.Logger,
	}
}

// Subject returns the subject a record is published on. Missing
// identifiers become "_".
func (p *Publisher) Subject(record Record) string {
	return strings.Join([]string{
		p.prefix,
		subjectToken(record.ECU),
		subjectToken(record.Application),
		subjectToken(record.Context),
	}, ".")
}

// subjectToken replaces characters NATS reserves in subjects.
func subjectToken(value string) string {
	if value == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, value)
}

// HandleFrame implements client.Handler.
func (p *Publisher) HandleFrame(_ context.Context, received frame.Frame) error {
	record := NewRecord(received, p.clock.Now())
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	subject := p.Subject(record)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	if p.published.Add(1) == 1 {
		p.logger.Info("first frame published", "subject", subject)
	}
	return nil
}

// Published returns the number of frames published.
func (p *Publisher) Published() uint64 { return p.published.Load() }
