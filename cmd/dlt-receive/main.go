// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// dlt-receive connects to a diagnostic log daemon and writes every
// frame it receives to stdout, a capture file, NATS and a Redis ECU
// shadow, in any combination.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dltlink/lib/cli"
	"github.com/bureau-foundation/dltlink/lib/config"
	"github.com/bureau-foundation/dltlink/lib/version"
)

const program = "dlt-receive"

func main() {
	var level slog.LevelVar
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], environment{
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: cli.NewCommandLogger(&level),
		level:  &level,
	})
	stop()
	cli.Exit(program, err)
}

// environment is what run needs from the process, so tests can
// supply buffers.
type environment struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	level  *slog.LevelVar
}

// receiveFlags are the flags beyond the shared connection flags.
type receiveFlags struct {
	connection    cli.ConnectionFlags
	output        string
	compress      string
	filter        string
	ecu           string
	format        string
	color         string
	count         uint64
	resync        bool
	sync          string
	readTimeout   time.Duration
	bufferSize    int
	natsURL       string
	natsPrefix    string
	redisURL      string
	statsInterval time.Duration
	showVersion   bool
	help          bool
}

func (f *receiveFlags) register(flagSet *pflag.FlagSet) {
	f.connection.AddFlags(flagSet)
	flagSet.StringVarP(&f.output, "output", "o", "", "write a capture file")
	flagSet.StringVar(&f.compress, "compress", "none", "capture compression: none, zstd or lz4")
	flagSet.StringVarP(&f.filter, "filter", "f", "", "JSONC filter file")
	flagSet.StringVarP(&f.ecu, "ecu", "e", "", "ECU id for storage headers of frames without one")
	flagSet.StringVar(&f.format, "format", "header", "stdout format: header, ascii, hex, mixed or cbor")
	flagSet.StringVar(&f.color, "color", "auto", "level colouring: auto, always or never")
	flagSet.Uint64VarP(&f.count, "count", "c", 0, "exit after this many frames pass the filter (0: unlimited)")
	flagSet.BoolVarP(&f.resync, "resync", "r", false, "skip garbage after framing errors instead of exiting")
	flagSet.StringVar(&f.sync, "sync", "none", "sync marker policy: none, marker or auto")
	flagSet.DurationVar(&f.readTimeout, "read-timeout", 0, "exit when the daemon is silent this long (0: wait forever)")
	flagSet.IntVar(&f.bufferSize, "buffer-size", 64*1024, "receive buffer size in bytes")
	flagSet.StringVar(&f.natsURL, "nats-url", "", "publish frames to this NATS server")
	flagSet.StringVar(&f.natsPrefix, "nats-subject-prefix", "dlt", "first subject token for published frames")
	flagSet.StringVar(&f.redisURL, "redis-url", "", "maintain per-ECU hashes in this Redis")
	flagSet.DurationVar(&f.statsInterval, "stats-interval", 0, "log receive statistics at this interval (0: only at exit)")
	flagSet.BoolVar(&f.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&f.help, "help", "h", false, "show help")
}

// apply copies the flags given on the command line over cfg.
func (f *receiveFlags) apply(flagSet *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, apply func()) {
		if flagSet.Changed(name) {
			apply()
		}
	}
	set("output", func() { cfg.Output.Path = f.output })
	set("compress", func() { cfg.Output.Compress = f.compress })
	set("filter", func() { cfg.Output.Filter = f.filter })
	set("ecu", func() { cfg.Output.ECUID = f.ecu })
	set("format", func() { cfg.Output.Format = f.format })
	set("color", func() { cfg.Output.Color = f.color })
	set("resync", func() { cfg.Client.Resync = f.resync })
	set("sync", func() { cfg.Client.Sync = f.sync })
	set("read-timeout", func() { cfg.Client.ReadTimeout = f.readTimeout })
	set("buffer-size", func() { cfg.Client.BufferSize = f.bufferSize })
	set("nats-url", func() { cfg.NATS.URL = f.natsURL })
	set("nats-subject-prefix", func() { cfg.NATS.SubjectPrefix = f.natsPrefix })
	set("redis-url", func() { cfg.Redis.URL = f.redisURL })
}

func run(ctx context.Context, args []string, env environment) error {
	var flags receiveFlags
	flagSet := pflag.NewFlagSet(program, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flags.register(flagSet)

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(env.stderr, flagSet)
			return nil
		}
		return cli.Validation("%w", err).WithHint("Run dlt-receive --help for usage.")
	}
	if flags.help {
		printHelp(env.stderr, flagSet)
		return nil
	}
	if flags.showVersion {
		version.Print(env.stdout, program)
		return nil
	}
	env.level.Set(cli.LogLevel(flags.connection.Verbose))

	positional := flagSet.Args()
	if len(positional) > 1 {
		return cli.Validation("unexpected argument: %s", positional[1])
	}
	endpoint := ""
	if len(positional) == 1 {
		endpoint = positional[0]
	}

	cfg, err := flags.connection.LoadConfig(endpoint)
	if err != nil {
		return err
	}
	flags.apply(flagSet, cfg)
	if err := cfg.Validate(); err != nil {
		return cli.Validation("%w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	// A capture file replaces stdout output unless a format was asked
	// for explicitly.
	printStdout := cfg.Output.Path == "" || flagSet.Changed("format")

	return receive(ctx, cfg, options{
		count:         flags.count,
		printStdout:   printStdout,
		statsInterval: flags.statsInterval,
	}, env)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `dlt-receive: receive diagnostic log frames from a daemon.

Usage:
  dlt-receive [flags] <host | socket path | serial device>

The positional argument is the daemon host in tcp mode, the local bind
address in udp mode (optional), the socket path in unix mode and the
tty in serial mode.

Examples:
  # Print every frame from a target over TCP
  dlt-receive 192.168.7.2

  # Capture a serial link with zstd compression, resynchronizing on noise
  dlt-receive --mode serial -b 921600 --sync auto -r -o run.dlt --compress zstd /dev/ttyUSB0

  # Listen for multicast and publish to NATS
  dlt-receive --mode udp --multicast-group 239.255.42.99 --nats-url nats://localhost:4222

Exit status is 0 when the daemon closes the connection, --count is
reached or the process is interrupted; 2 for usage errors; 1 otherwise.

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
