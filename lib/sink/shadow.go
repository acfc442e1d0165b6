// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bureau-foundation/dltlink/lib/clock"
	"github.com/bureau-foundation/dltlink/lib/frame"
)

const (
	// DefaultShadowTTL expires the hash of an ECU that stopped
	// sending.
	DefaultShadowTTL = 24 * time.Hour

	// DefaultFlushInterval bounds how stale the hashes get between
	// writes.
	DefaultFlushInterval = time.Second

	// unknownECU keys frames without an ECU id.
	unknownECU = "_"
)

// HashStore is the subset of *redis.Client the Shadow uses.
type HashStore interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// ShadowConfig configures a Shadow.
type ShadowConfig struct {
	// KeyPrefix precedes the ECU id in hash keys. Default "dlt:ecu:".
	KeyPrefix     string
	TTL           time.Duration
	FlushInterval time.Duration
	Clock         clock.Clock
	Logger        *slog.Logger
}

// Shadow keeps a Redis hash per ECU describing its latest frame.
// Updates are accumulated in memory and written at most once per
// FlushInterval; call Flush before exiting.
type Shadow struct {
	store  HashStore
	config ShadowConfig

	mutex     sync.Mutex
	pending   map[string]*ecuState
	lastFlush time.Time
}

type ecuState struct {
	counter     uint8
	application string
	context     string
	seen        time.Time
	frames      int64
}

// NewShadow returns a Shadow writing to store.
func NewShadow(store HashStore, config ShadowConfig) *Shadow {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "dlt:ecu:"
	}
	if config.TTL <= 0 {
		config.TTL = DefaultShadowTTL
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultFlushInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Shadow{
		store:     store,
		config:    config,
		pending:   make(map[string]*ecuState),
		lastFlush: config.Clock.Now(),
	}
}

// Key returns the hash key for an ECU id.
func (s *Shadow) Key(ecu string) string {
	return s.config.KeyPrefix + ecu
}

// HandleFrame implements client.Handler.
func (s *Shadow) HandleFrame(ctx context.Context, received frame.Frame) error {
	now := s.config.Clock.Now()
	ecu := unknownECU
	if id, ok := received.ECUID(); ok && !id.IsZero() {
		ecu = id.String()
	}

	s.mutex.Lock()
	state, ok := s.pending[ecu]
	if !ok {
		state = &ecuState{}
		s.pending[ecu] = state
	}
	state.counter = received.Counter()
	if extended, ok := received.Extended(); ok {
		state.application = extended.ApplicationID.String()
		state.context = extended.ContextID.String()
	}
	state.seen = now
	state.frames++
	due := now.Sub(s.lastFlush) >= s.config.FlushInterval
	s.mutex.Unlock()

	if !due {
		return nil
	}
	return s.Flush(ctx)
}

// Flush writes every accumulated update.
func (s *Shadow) Flush(ctx context.Context) error {
	s.mutex.Lock()
	pending := s.pending
	s.pending = make(map[string]*ecuState)
	s.lastFlush = s.config.Clock.Now()
	s.mutex.Unlock()

	var errs []error
	for ecu, state := range pending {
		if err := s.write(ctx, ecu, state); err != nil {
			errs = append(errs, err)
		}
	}
	if len(pending) > 0 {
		s.config.Logger.Debug("shadow flushed", "ecus", len(pending), "errors", len(errs))
	}
	return errors.Join(errs...)
}

func (s *Shadow) write(ctx context.Context, ecu string, state *ecuState) error {
	key := s.Key(ecu)
	fields := []any{
		"last_counter", int64(state.counter),
		"last_seen", state.seen.Unix(),
	}
	if state.application != "" {
		fields = append(fields, "last_apid", state.application, "last_ctid", state.context)
	}
	if err := s.store.HSet(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("updating %s: %w", key, err)
	}
	if err := s.store.HIncrBy(ctx, key, "frames", state.frames).Err(); err != nil {
		return fmt.Errorf("counting frames in %s: %w", key, err)
	}
	if err := s.store.Expire(ctx, key, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("setting expiry of %s: %w", key, err)
	}
	return nil
}
