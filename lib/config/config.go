// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/dltlink/lib/dltfile"
	"github.com/bureau-foundation/dltlink/lib/format"
	"github.com/bureau-foundation/dltlink/lib/frame"
	"github.com/bureau-foundation/dltlink/lib/receiver"
	"github.com/bureau-foundation/dltlink/lib/sink"
	"github.com/bureau-foundation/dltlink/transport"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "DLT_CONFIG"

// FormatCBOR selects CBOR records on stdout instead of text lines.
const FormatCBOR = "cbor"

// Config is the configuration of the receive and control tools.
type Config struct {
	// Profile selects an entry of Profiles to apply over the base
	// values. Empty applies none.
	Profile string `yaml:"profile"`

	// Transport addresses the daemon.
	Transport transport.Config `yaml:"transport"`

	// Client tunes the dispatch loop.
	Client ClientConfig `yaml:"client"`

	// Output configures what dlt-receive does with frames.
	Output OutputConfig `yaml:"output"`

	// NATS enables publishing when URL is set.
	NATS NATSConfig `yaml:"nats"`

	// Redis enables the ECU shadow when URL is set.
	Redis RedisConfig `yaml:"redis"`

	// Profiles contains named overrides, typically one per vehicle or
	// bench setup.
	Profiles map[string]*Overrides `yaml:"profiles,omitempty"`
}

// Overrides contains the sections a profile can override. Non-empty
// string and non-zero numeric fields replace base values.
type Overrides struct {
	Transport *transport.Config `yaml:"transport,omitempty"`
	Client    *ClientOverrides  `yaml:"client,omitempty"`
	Output    *OutputConfig     `yaml:"output,omitempty"`
	NATS      *NATSConfig       `yaml:"nats,omitempty"`
	Redis     *RedisConfig      `yaml:"redis,omitempty"`
}

// ClientConfig configures the receive buffer and framing.
type ClientConfig struct {
	// BufferSize is the receive buffer capacity in bytes.
	// Default: 65536
	BufferSize int `yaml:"buffer_size"`

	// Sync is the marker policy: none, marker or auto.
	// Default: none
	Sync string `yaml:"sync"`

	// Resync recovers from framing errors by skipping bytes.
	// Default: false
	Resync bool `yaml:"resync"`

	// ReadTimeout ends the session when the daemon is silent this
	// long. Zero waits forever.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ClientOverrides is the client section of a profile. Resync is a
// pointer so a profile that omits it keeps the base value.
type ClientOverrides struct {
	BufferSize  int           `yaml:"buffer_size,omitempty"`
	Sync        string        `yaml:"sync,omitempty"`
	Resync      *bool         `yaml:"resync,omitempty"`
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
}

// OutputConfig configures local output.
type OutputConfig struct {
	// Format is header, ascii, hex, mixed or cbor.
	// Default: header
	Format string `yaml:"format"`

	// Color is auto, always or never.
	Color string `yaml:"color"`

	// Path, when set, receives a capture file.
	Path string `yaml:"path"`

	// Compress is none, zstd or lz4.
	Compress string `yaml:"compress"`

	// ECUID is written into storage headers of frames that carry no
	// ECU id.
	ECUID string `yaml:"ecu_id"`

	// Filter is the path of a JSONC filter file.
	Filter string `yaml:"filter"`
}

// NATSConfig configures frame publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RedisConfig configures the ECU shadow.
type RedisConfig struct {
	URL           string        `yaml:"url"`
	KeyPrefix     string        `yaml:"key_prefix"`
	TTL           time.Duration `yaml:"ttl"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Default returns the configuration used before any file is applied.
func Default() *Config {
	return &Config{
		Transport: transport.Config{
			Mode: transport.ModeTCP,
			Port: transport.DefaultPort,
		},
		Client: ClientConfig{
			BufferSize: 64 * 1024,
			Sync:       frame.SyncNone.String(),
		},
		Output: OutputConfig{
			Format:   format.ModeHeader.String(),
			Color:    format.ColorAuto.String(),
			Compress: dltfile.CompressionNone.String(),
		},
		NATS: NATSConfig{
			SubjectPrefix: sink.DefaultSubjectPrefix,
		},
		Redis: RedisConfig{
			KeyPrefix:     "dlt:ecu:",
			TTL:           sink.DefaultShadowTTL,
			FlushInterval: sink.DefaultFlushInterval,
		},
	}
}

// Load loads the file named by DLT_CONFIG. It fails when the variable
// is not set; there is no search path.
func Load(profile string) (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(configPath, profile)
}

// LoadFile loads configuration from path over Default. A non-empty
// profile replaces the file's own profile key.
func LoadFile(path, profile string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if profile != "" {
		cfg.Profile = profile
	}
	if err := cfg.applyProfile(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ProfileNames returns the defined profiles in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) applyProfile() error {
	if c.Profile == "" {
		return nil
	}
	overrides, ok := c.Profiles[c.Profile]
	if !ok {
		return fmt.Errorf("unknown profile %q (defined: %s)", c.Profile, strings.Join(c.ProfileNames(), ", "))
	}
	if overrides == nil {
		return nil
	}

	if o := overrides.Transport; o != nil {
		setString((*string)(&c.Transport.Mode), string(o.Mode))
		setString(&c.Transport.Host, o.Host)
		setInt(&c.Transport.Port, o.Port)
		setString(&c.Transport.SocketPath, o.SocketPath)
		setString(&c.Transport.MulticastGroup, o.MulticastGroup)
		setString(&c.Transport.MulticastInterface, o.MulticastInterface)
		setString(&c.Transport.SerialDevice, o.SerialDevice)
		setInt(&c.Transport.BaudRate, o.BaudRate)
		setDuration(&c.Transport.DialTimeout, o.DialTimeout)
	}

	if o := overrides.Client; o != nil {
		setInt(&c.Client.BufferSize, o.BufferSize)
		setString(&c.Client.Sync, o.Sync)
		if o.Resync != nil {
			c.Client.Resync = *o.Resync
		}
		setDuration(&c.Client.ReadTimeout, o.ReadTimeout)
	}

	if o := overrides.Output; o != nil {
		setString(&c.Output.Format, o.Format)
		setString(&c.Output.Color, o.Color)
		setString(&c.Output.Path, o.Path)
		setString(&c.Output.Compress, o.Compress)
		setString(&c.Output.ECUID, o.ECUID)
		setString(&c.Output.Filter, o.Filter)
	}

	if o := overrides.NATS; o != nil {
		setString(&c.NATS.URL, o.URL)
		setString(&c.NATS.SubjectPrefix, o.SubjectPrefix)
	}

	if o := overrides.Redis; o != nil {
		setString(&c.Redis.URL, o.URL)
		setString(&c.Redis.KeyPrefix, o.KeyPrefix)
		setDuration(&c.Redis.TTL, o.TTL)
		setDuration(&c.Redis.FlushInterval, o.FlushInterval)
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
}

func setDuration(dst *time.Duration, value time.Duration) {
	if value != 0 {
		*dst = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path and URL
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	for _, field := range []*string{
		&c.Transport.SocketPath,
		&c.Transport.SerialDevice,
		&c.Output.Path,
		&c.Output.Filter,
		&c.NATS.URL,
		&c.Redis.URL,
	} {
		*field = expandVars(*field, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. The transport section
// is checked when dialing, after command-line flags are merged.
func (c *Config) Validate() error {
	var errs []error

	if c.Client.BufferSize <= 0 || c.Client.BufferSize > receiver.MaxCapacity {
		errs = append(errs, fmt.Errorf("client.buffer_size must be in 1..%d", receiver.MaxCapacity))
	}
	if _, err := frame.ParseSyncMode(c.Client.Sync); err != nil {
		errs = append(errs, fmt.Errorf("client.sync: %w", err))
	}
	if c.Client.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("client.read_timeout is negative"))
	}

	if c.Output.Format != FormatCBOR {
		if _, err := format.ParseMode(c.Output.Format); err != nil {
			errs = append(errs, fmt.Errorf("output.format: %w", err))
		}
	}
	if _, err := format.ParseColor(c.Output.Color); err != nil {
		errs = append(errs, fmt.Errorf("output.color: %w", err))
	}
	if _, err := dltfile.ParseCompression(c.Output.Compress); err != nil {
		errs = append(errs, fmt.Errorf("output.compress: %w", err))
	}
	if c.Output.ECUID != "" {
		if _, err := frame.ParseID(c.Output.ECUID); err != nil {
			errs = append(errs, fmt.Errorf("output.ecu_id: %w", err))
		}
	}

	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		errs = append(errs, fmt.Errorf("nats.subject_prefix is required when nats.url is set"))
	}
	if strings.ContainsAny(c.NATS.SubjectPrefix, "*> ") {
		errs = append(errs, fmt.Errorf("nats.subject_prefix %q contains wildcard or space", c.NATS.SubjectPrefix))
	}

	if c.Redis.URL != "" {
		if c.Redis.TTL <= 0 {
			errs = append(errs, fmt.Errorf("redis.ttl must be positive"))
		}
		if c.Redis.FlushInterval <= 0 {
			errs = append(errs, fmt.Errorf("redis.flush_interval must be positive"))
		}
	}

	if c.Profile != "" && !slices.Contains(c.ProfileNames(), c.Profile) {
		errs = append(errs, fmt.Errorf("profile %q is not defined", c.Profile))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the directory the capture file is written to.
func (c *Config) EnsurePaths() error {
	if c.Output.Path == "" {
		return nil
	}
	directory := filepath.Dir(c.Output.Path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}
