// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/bureau-foundation/dltlink/client"
	"github.com/bureau-foundation/dltlink/lib/cli"
	"github.com/bureau-foundation/dltlink/lib/clock"
	"github.com/bureau-foundation/dltlink/lib/config"
	"github.com/bureau-foundation/dltlink/lib/dltfile"
	"github.com/bureau-foundation/dltlink/lib/filter"
	"github.com/bureau-foundation/dltlink/lib/format"
	"github.com/bureau-foundation/dltlink/lib/frame"
	"github.com/bureau-foundation/dltlink/lib/sink"
)

type options struct {
	count         uint64
	printStdout   bool
	statsInterval time.Duration
}

// pipeline is the handler chain and the resources behind it.
type pipeline struct {
	handlers []client.Handler
	closers  []func() error
}

func (p *pipeline) add(handler client.Handler, closer func() error) {
	p.handlers = append(p.handlers, handler)
	if closer != nil {
		p.closers = append(p.closers, closer)
	}
}

// close releases resources in reverse order of creation.
func (p *pipeline) close() error {
	var errs []error
	for index := len(p.closers) - 1; index >= 0; index-- {
		if err := p.closers[index](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildPipeline(ctx context.Context, cfg *config.Config, opts options, env environment) (*pipeline, error) {
	p := &pipeline{}
	ok := false
	defer func() {
		if !ok {
			_ = p.close()
		}
	}()

	if opts.printStdout {
		if cfg.Output.Format == config.FormatCBOR {
			p.add(sink.NewStreamWriter(env.stdout, nil), nil)
		} else {
			mode, _ := format.ParseMode(cfg.Output.Format)
			color, _ := format.ParseColor(cfg.Output.Color)
			p.add(format.NewPrinter(env.stdout, mode, color), nil)
		}
	}

	if cfg.Output.Path != "" {
		compression, _ := dltfile.ParseCompression(cfg.Output.Compress)
		ecu, _ := frame.ParseID(cfg.Output.ECUID)
		writer, err := dltfile.Create(cfg.Output.Path, dltfile.WriterConfig{Compression: compression, ECUID: ecu})
		if err != nil {
			return nil, err
		}
		p.add(writer, func() error {
			if err := writer.Close(); err != nil {
				return err
			}
			env.logger.Info("capture written",
				"path", cfg.Output.Path,
				"frames", writer.Frames(),
				"bytes", writer.Bytes(),
				"blake3", hex.EncodeToString(writer.Sum()),
			)
			return nil
		})
	}

	if cfg.NATS.URL != "" {
		natsOptions := []nats.Option{nats.Name(program)}
		if cfg.Transport.DialTimeout > 0 {
			natsOptions = append(natsOptions, nats.Timeout(cfg.Transport.DialTimeout))
		}
		conn, err := nats.Connect(cfg.NATS.URL, natsOptions...)
		if err != nil {
			return nil, cli.Transient("connecting to NATS at %s: %w", cfg.NATS.URL, err)
		}
		publisher := sink.NewPublisher(conn, sink.PublisherConfig{
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Logger:        env.logger,
		})
		p.add(publisher, func() error {
			defer conn.Close()
			if err := conn.Flush(); err != nil {
				return fmt.Errorf("flushing NATS: %w", err)
			}
			env.logger.Debug("nats closed", "published", publisher.Published())
			return nil
		})
	}

	if cfg.Redis.URL != "" {
		redisOptions, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, cli.Validation("redis url: %w", err)
		}
		redisClient := redis.NewClient(redisOptions)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, cli.Transient("connecting to Redis at %s: %w", redisOptions.Addr, err)
		}
		shadow := sink.NewShadow(redisClient, sink.ShadowConfig{
			KeyPrefix:     cfg.Redis.KeyPrefix,
			TTL:           cfg.Redis.TTL,
			FlushInterval: cfg.Redis.FlushInterval,
			Logger:        env.logger,
		})
		p.add(shadow, func() error {
			defer redisClient.Close()
			// The receive context is usually cancelled by now.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shadow.Flush(flushCtx)
		})
	}

	ok = true
	return p, nil
}

// countingHandler stops the session after limit frames.
func countingHandler(limit uint64, next client.Handler) client.Handler {
	var delivered uint64
	return client.HandlerFunc(func(ctx context.Context, received frame.Frame) error {
		if err := next.HandleFrame(ctx, received); err != nil {
			return err
		}
		delivered++
		if delivered >= limit {
			return client.ErrStop
		}
		return nil
	})
}

// receiveHandler filters frames before they reach the outputs and the
// --count limit, so only frames that pass the filter are counted.
func receiveHandler(rules *filter.Filter, count uint64, outputs []client.Handler) client.Handler {
	var next client.Handler = client.Chain(outputs...)
	if count > 0 {
		next = countingHandler(count, next)
	}
	return filter.Handler(rules, next)
}

func receive(ctx context.Context, cfg *config.Config, opts options, env environment) error {
	var rules *filter.Filter
	if cfg.Output.Filter != "" {
		loaded, err := filter.Load(cfg.Output.Filter)
		if err != nil {
			return cli.Validation("%w", err)
		}
		rules = loaded
		env.logger.Debug("filter loaded", "path", cfg.Output.Filter, "rules", len(rules.Rules()))
	}

	syncMode, _ := frame.ParseSyncMode(cfg.Client.Sync)
	receiver, err := client.New(client.Config{
		Transport:      cfg.Transport,
		BufferCapacity: cfg.Client.BufferSize,
		Sync:           syncMode,
		Resync:         cfg.Client.Resync,
		ReadTimeout:    cfg.Client.ReadTimeout,
		Logger:         env.logger,
	})
	if err != nil {
		return cli.Validation("%w", err)
	}
	defer receiver.Close()

	p, err := buildPipeline(ctx, cfg, opts, env)
	if err != nil {
		return err
	}

	if err := receiver.Connect(ctx); err != nil {
		return errors.Join(
			cli.Transient("connecting to %s: %w", cfg.Transport.Address(), err),
			p.close(),
		)
	}

	handler := receiveHandler(rules, opts.count, p.handlers)

	statsCtx, stopStats := context.WithCancel(ctx)
	if opts.statsInterval > 0 {
		go logStats(statsCtx, receiver, clock.Real(), opts.statsInterval, env.logger)
	}
	termination, runErr := receiver.Run(ctx, handler)
	stopStats()

	env.logger.Info("receive finished",
		"termination", termination.String(),
		"stats", receiver.Stats(),
	)
	closeErr := p.close()
	if runErr != nil {
		return errors.Join(fmt.Errorf("receiving from %s: %w", cfg.Transport.Address(), runErr), closeErr)
	}
	return closeErr
}

func logStats(ctx context.Context, receiver *client.Client, source clock.Clock, interval time.Duration, logger *slog.Logger) {
	ticker := source.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("receive statistics", "state", receiver.State().String(), "stats", receiver.Stats())
		}
	}
}
