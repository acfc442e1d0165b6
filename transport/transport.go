// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/bureau-foundation/dltlink/lib/receiver"
)

const (
	// DefaultPort is the daemon's TCP and UDP port.
	DefaultPort = 3490

	// DefaultSocketPath is the daemon's Unix socket.
	DefaultSocketPath = "/tmp/dlt"

	// DefaultBaudRate applies to serial links when none is configured.
	DefaultBaudRate = 115200
)

var (
	// ErrShutdown is returned by Read after Shutdown.
	ErrShutdown = errors.New("transport shut down")

	// ErrDatagramTruncated means a datagram did not fit in the read
	// buffer. The datagram is lost.
	ErrDatagramTruncated = errors.New("datagram truncated")

	// ErrUnsupported reports a mode or operation the platform or
	// driver cannot provide.
	ErrUnsupported = errors.New("unsupported")
)

// Conn is a connected byte source.
type Conn interface {
	// Read reads the next bytes (stream) or the next datagram.
	Read(p []byte) (int, error)

	// Write sends bytes to the daemon. Datagram receivers do not
	// support writing.
	Write(p []byte) (int, error)

	// Kind reports stream or datagram semantics.
	Kind() receiver.Kind

	// SetReadDeadline bounds the next Read. Ignored after Shutdown.
	SetReadDeadline(deadline time.Time) error

	// Shutdown wakes a blocked Read and makes all further reads fail
	// with ErrShutdown. Safe to call from any goroutine, any number of
	// times. The connection must still be closed.
	Shutdown() error

	// Close releases the underlying descriptor.
	Close() error

	// String describes the endpoint for logs.
	String() string
}

// Mode selects a transport driver.
type Mode string

const (
	ModeTCP    Mode = "tcp"
	ModeUDP    Mode = "udp"
	ModeUnix   Mode = "unix"
	ModeSerial Mode = "serial"
)

// ParseMode accepts the mode names, case-insensitively.
func ParseMode(name string) (Mode, error) {
	switch mode := Mode(strings.ToLower(name)); mode {
	case ModeTCP, ModeUDP, ModeUnix, ModeSerial:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown transport mode %q (want tcp, udp, unix or serial)", name)
	}
}

// Config describes how to reach the daemon.
type Config struct {
	// Mode selects the driver. Empty means tcp.
	Mode Mode `yaml:"mode"`

	// Host is the daemon host for tcp, and the local bind address for
	// udp (empty binds all interfaces).
	Host string `yaml:"host"`

	// Port for tcp and udp. Zero means DefaultPort.
	Port int `yaml:"port"`

	// SocketPath for unix. Empty means DefaultSocketPath.
	SocketPath string `yaml:"socket_path"`

	// MulticastGroup, when set in udp mode, is an IPv4 group to join.
	MulticastGroup string `yaml:"multicast_group"`

	// MulticastInterface selects the interface for the group join,
	// by name ("eth0") or by IPv4 address. Empty lets the kernel pick.
	MulticastInterface string `yaml:"multicast_interface"`

	// SerialDevice is the tty path for serial mode.
	SerialDevice string `yaml:"serial_device"`

	// BaudRate for serial mode. Zero means DefaultBaudRate.
	BaudRate int `yaml:"baud_rate"`

	// DialTimeout bounds connection establishment for tcp and unix.
	// Zero means only the context deadline applies.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeTCP
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	return c
}

// Validate checks the fields required by the selected mode. Defaults
// are applied before checking.
func (c Config) Validate() error {
	c = c.WithDefaults()
	var errs []error
	if _, err := ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, err)
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DialTimeout < 0 {
		errs = append(errs, fmt.Errorf("dial_timeout %v is negative", c.DialTimeout))
	}
	switch c.Mode {
	case ModeTCP:
		if c.Host == "" {
			errs = append(errs, errors.New("tcp mode requires a host"))
		}
	case ModeUDP:
		if c.MulticastGroup != "" {
			group := net.ParseIP(c.MulticastGroup)
			if group == nil || group.To4() == nil || !group.IsMulticast() {
				errs = append(errs, fmt.Errorf("multicast_group %q is not an IPv4 multicast address", c.MulticastGroup))
			}
		}
	case ModeSerial:
		if c.SerialDevice == "" {
			errs = append(errs, errors.New("serial mode requires a device"))
		}
		if _, ok := baudRates[c.BaudRate]; !ok {
			errs = append(errs, fmt.Errorf("unsupported baud rate %d", c.BaudRate))
		}
	}
	return errors.Join(errs...)
}

// Address returns the endpoint description used in logs and errors.
func (c Config) Address() string {
	c = c.WithDefaults()
	switch c.Mode {
	case ModeUnix:
		return c.SocketPath
	case ModeSerial:
		return c.SerialDevice
	default:
		return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
	}
}

// Dial opens the transport selected by config.Mode.
func Dial(ctx context.Context, config Config) (Conn, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport configuration: %w", err)
	}
	config = config.WithDefaults()
	switch config.Mode {
	case ModeTCP:
		return dialTCP(ctx, config)
	case ModeUnix:
		return dialUnix(ctx, config)
	case ModeUDP:
		conn, err := listenUDP(ctx, config.Address(), config.MulticastGroup, config.MulticastInterface)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case ModeSerial:
		return openSerial(config.SerialDevice, config.BaudRate)
	default:
		return nil, fmt.Errorf("%w: transport mode %q", ErrUnsupported, config.Mode)
	}
}
