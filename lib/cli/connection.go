// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dltlink/lib/config"
	"github.com/bureau-foundation/dltlink/transport"
)

// ConnectionFlags are the flags every command uses to find the daemon
// and its configuration file. Flags given on the command line win over
// file values.
type ConnectionFlags struct {
	ConfigPath         string
	Profile            string
	Mode               string
	Port               int
	BaudRate           int
	MulticastGroup     string
	MulticastInterface string
	DialTimeout        time.Duration
	Verbose            bool

	flagSet *pflag.FlagSet
}

// AddFlags registers the connection flags on flagSet.
func (c *ConnectionFlags) AddFlags(flagSet *pflag.FlagSet) {
	c.flagSet = flagSet
	flagSet.StringVar(&c.ConfigPath, "config", "", "configuration file (default: $"+config.EnvironmentVariable+" if set)")
	flagSet.StringVar(&c.Profile, "profile", "", "configuration profile to apply")
	flagSet.StringVar(&c.Mode, "mode", string(transport.ModeTCP), "transport: tcp, udp, unix or serial")
	flagSet.IntVarP(&c.Port, "port", "p", transport.DefaultPort, "tcp or udp port")
	flagSet.IntVarP(&c.BaudRate, "baudrate", "b", transport.DefaultBaudRate, "serial baud rate")
	flagSet.StringVar(&c.MulticastGroup, "multicast-group", "", "IPv4 multicast group to join in udp mode")
	flagSet.StringVar(&c.MulticastInterface, "multicast-interface", "", "interface name or address for the multicast join")
	flagSet.DurationVar(&c.DialTimeout, "dial-timeout", 10*time.Second, "bound on connection establishment")
	flagSet.BoolVarP(&c.Verbose, "verbose", "v", false, "log debug events")
}

func (c *ConnectionFlags) changed(name string) bool {
	return c.flagSet != nil && c.flagSet.Changed(name)
}

// LoadConfig reads the configuration file named by --config or
// DLT_CONFIG, falling back to defaults when neither is set, and
// applies the connection flags and the endpoint argument over it.
//
// The endpoint is the daemon host for tcp, the bind address for udp,
// the socket path for unix and the device for serial. Empty keeps the
// configured value.
func (c *ConnectionFlags) LoadConfig(endpoint string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case c.ConfigPath != "":
		cfg, err = config.LoadFile(c.ConfigPath, c.Profile)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load(c.Profile)
	case c.Profile != "":
		return nil, Validation("--profile requires a configuration file").
			WithHint("Pass --config or set " + config.EnvironmentVariable + ".")
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, Validation("loading configuration: %w", err)
	}

	if c.changed("mode") {
		mode, err := transport.ParseMode(c.Mode)
		if err != nil {
			return nil, Validation("--mode: %w", err)
		}
		cfg.Transport.Mode = mode
	}
	if c.changed("port") {
		cfg.Transport.Port = c.Port
	}
	if c.changed("baudrate") {
		cfg.Transport.BaudRate = c.BaudRate
	}
	if c.changed("multicast-group") {
		cfg.Transport.MulticastGroup = c.MulticastGroup
	}
	if c.changed("multicast-interface") {
		cfg.Transport.MulticastInterface = c.MulticastInterface
	}
	if c.changed("dial-timeout") || cfg.Transport.DialTimeout == 0 {
		cfg.Transport.DialTimeout = c.DialTimeout
	}

	if endpoint != "" {
		switch cfg.Transport.WithDefaults().Mode {
		case transport.ModeUnix:
			cfg.Transport.SocketPath = endpoint
		case transport.ModeSerial:
			cfg.Transport.SerialDevice = endpoint
		default:
			cfg.Transport.Host = endpoint
		}
	}
	if err := cfg.Transport.Validate(); err != nil {
		return nil, Validation("%w", err)
	}
	return cfg, nil
}
