// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// dlt-control sends one control request to a diagnostic log daemon and
// prints the response.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dltlink/client"
	"github.com/bureau-foundation/dltlink/lib/cli"
	"github.com/bureau-foundation/dltlink/lib/config"
	"github.com/bureau-foundation/dltlink/lib/control"
	"github.com/bureau-foundation/dltlink/lib/frame"
	"github.com/bureau-foundation/dltlink/lib/version"
)

const program = "dlt-control"

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

type environment struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	level  *slog.LevelVar
}

type controlFlags struct {
	connection  cli.ConnectionFlags
	service     string
	application string
	context     string
	logLevel    string
	trace       bool
	ecu         string
	timeout     time.Duration
	showVersion bool
	help        bool
}

func (f *controlFlags) register(flagSet *pflag.FlagSet) {
	f.connection.AddFlags(flagSet)
	flagSet.StringVarP(&f.service, "service", "s", "", "service name or id (default: inferred from --level and --app)")
	flagSet.StringVarP(&f.application, "app", "a", "", "application id")
	flagSet.StringVarP(&f.context, "context", "c", "", "context id")
	flagSet.StringVarP(&f.logLevel, "level", "l", "", "log level: fatal, error, warn, info, debug or verbose")
	flagSet.BoolVar(&f.trace, "trace", false, "trace status for set_trace_status")
	flagSet.StringVar(&f.ecu, "ecu", control.DefaultOrigin.ECUID.String(), "ECU id stamped on the request")
	flagSet.DurationVarP(&f.timeout, "timeout", "t", control.DefaultTimeout, "response wait")
	flagSet.BoolVar(&f.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&f.help, "help", "h", false, "show help")
}

// request builds the control request the flags describe.
func (f *controlFlags) request(flagSet *pflag.FlagSet) (control.Request, error) {
	var application, contextID frame.ID
	var err error
	if f.application != "" {
		if application, err = frame.ParseID(f.application); err != nil {
			return control.Request{}, cli.Validation("--app: %w", err)
		}
	}
	if f.context != "" {
		if contextID, err = frame.ParseID(f.context); err != nil {
			return control.Request{}, cli.Validation("--context: %w", err)
		}
	}
	var level frame.LogLevel
	if f.logLevel != "" {
		if level, err = frame.ParseLogLevel(f.logLevel); err != nil {
			return control.Request{}, cli.Validation("--level: %w", err)
		}
	}

	service, err := f.resolveService()
	if err != nil {
		return control.Request{}, err
	}

	switch service {
	case control.ServiceSetLogLevel:
		if f.application == "" || f.logLevel == "" {
			return control.Request{}, cli.Validation("set_log_level requires --app and --level")
		}
		return control.SetLogLevel(application, contextID, level), nil
	case control.ServiceSetTraceStatus:
		if f.application == "" || !flagSet.Changed("trace") {
			return control.Request{}, cli.Validation("set_trace_status requires --app and --trace")
		}
		return control.SetTraceStatus(application, contextID, f.trace), nil
	case control.ServiceGetLogInfo:
		return control.GetLogInfo(application, contextID, control.LogInfoAll), nil
	case control.ServiceGetDefaultLogLevel:
		return control.GetDefaultLogLevel(), nil
	case control.ServiceSetDefaultLogLevel:
		if f.logLevel == "" {
			return control.Request{}, cli.Validation("set_default_log_level requires --level")
		}
		return control.SetDefaultLogLevel(level), nil
	case control.ServiceGetSoftwareVersion:
		return control.GetSoftwareVersion(), nil
	default:
		return control.Request{}, cli.Validation("service %s has no request builder", service)
	}
}

func (f *controlFlags) resolveService() (control.Service, error) {
	switch {
	case f.service != "":
		service, err := control.ParseService(f.service)
		if err != nil {
			return 0, cli.Validation("--service: %w", err)
		}
		return service, nil
	case f.logLevel != "" && f.application != "":
		return control.ServiceSetLogLevel, nil
	case f.logLevel != "":
		return control.ServiceSetDefaultLogLevel, nil
	default:
		return control.ServiceGetSoftwareVersion, nil
	}
}

func run(ctx context.Context, args []string, env environment) error {
	var flags controlFlags
	flagSet := pflag.NewFlagSet(program, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flags.register(flagSet)

	if err := flagSet.Parse(args); err != nil {
		return cli.Validation("%w", err).WithHint("Run dlt-control --help for usage.")
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

	request, err := flags.request(flagSet)
	if err != nil {
		return err
	}
	origin := control.DefaultOrigin
	if origin.ECUID, err = frame.ParseID(flags.ecu); err != nil {
		return cli.Validation("--ecu: %w", err)
	}
	if flags.timeout <= 0 {
		return cli.Validation("--timeout must be positive")
	}

	cfg, err := flags.connection.LoadConfig(endpoint)
	if err != nil {
		return err
	}
	return send(ctx, cfg, request, control.RequesterConfig{
		Origin:  origin,
		Timeout: flags.timeout,
		Logger:  env.logger,
	}, env)
}

func send(ctx context.Context, cfg *config.Config, request control.Request, requesterConfig control.RequesterConfig, env environment) error {
	syncMode, err := frame.ParseSyncMode(cfg.Client.Sync)
	if err != nil {
		return cli.Validation("client.sync: %w", err)
	}
	connection, err := client.New(client.Config{
		Transport:      cfg.Transport,
		BufferCapacity: cfg.Client.BufferSize,
		Sync:           syncMode,
		Resync:         cfg.Client.Resync,
		Logger:         env.logger,
	})
	if err != nil {
		return cli.Validation("%w", err)
	}
	defer connection.Close()

	if err := connection.Connect(ctx); err != nil {
		return cli.Transient("connecting to %s: %w", cfg.Transport.Address(), err)
	}

	requester := control.NewRequester(connection, requesterConfig)
	requestCtx, cancelRequest := context.WithCancel(ctx)
	defer cancelRequest()
	runDone := make(chan runResult, 1)
	go func() {
		termination, err := connection.Run(requestCtx, requester)
		runDone <- runResult{termination, err}
		// Nothing can answer once the loop is gone.
		cancelRequest()
	}()

	response, requestErr := requester.Request(requestCtx, request)
	cancelRequest()
	result := <-runDone
	if requestErr != nil {
		switch {
		case errors.Is(requestErr, control.ErrTimeout):
			return cli.Transient("%s: %w", request.Service, requestErr).
				WithHint("The daemon may not implement control messages on this transport.")
		case result.err != nil:
			return fmt.Errorf("%s: receiving from %s: %w", request.Service, cfg.Transport.Address(), result.err)
		case result.termination == client.TerminationPeerClosed:
			return cli.Transient("%s: daemon closed the connection before responding", request.Service)
		default:
			return fmt.Errorf("%s: %w", request.Service, requestErr)
		}
	}

	printResponse(env.stdout, response)
	if response.Status != control.StatusOK {
		return &cli.ExitError{Code: cli.ExitFailure}
	}
	return nil
}

type runResult struct {
	termination client.Termination
	err         error
}

func printResponse(w io.Writer, response control.Response) {
	fmt.Fprintf(w, "%s %s\n", response.Service, response.Status)
	if response.Status != control.StatusOK {
		return
	}
	switch response.Service {
	case control.ServiceGetDefaultLogLevel:
		if level, err := response.DefaultLogLevel(); err == nil {
			fmt.Fprintf(w, "level: %s\n", level)
		}
	case control.ServiceGetSoftwareVersion:
		if text, err := response.SoftwareVersion(); err == nil {
			fmt.Fprintf(w, "version: %s\n", text)
		}
	default:
		if len(response.Data) > 0 {
			fmt.Fprintf(w, "data: %s\n", hex.EncodeToString(response.Data))
		}
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `dlt-control: send one control request to a diagnostic log daemon.

Usage:
  dlt-control [flags] <host | socket path | serial device>

Services: set_log_level, set_trace_status, get_log_info,
get_default_log_level, set_default_log_level, get_software_version.
Without --service, --level with --app sets a context's level, --level
alone sets the default level, and otherwise the software version is
queried.

Examples:
  # Raise one context to debug
  dlt-control --app NAVI --context MAIN --level debug 192.168.7.2

  # Ask for the daemon's default level
  dlt-control --service get_default_log_level 192.168.7.2

Exit status is 0 when the daemon answers ok, 1 for any other status
or failure, 2 for usage errors.

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
