// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/dltlink/lib/frame"
)

// Service identifies a control operation.
type Service uint32

const (
	ServiceSetLogLevel        Service = 0x01
	ServiceSetTraceStatus     Service = 0x02
	ServiceGetLogInfo         Service = 0x03
	ServiceGetDefaultLogLevel Service = 0x04
	ServiceSetDefaultLogLevel Service = 0x11
	ServiceGetSoftwareVersion Service = 0x13
)

var serviceNames = map[Service]string{
	ServiceSetLogLevel:        "set_log_level",
	ServiceSetTraceStatus:     "set_trace_status",
	ServiceGetLogInfo:         "get_log_info",
	ServiceGetDefaultLogLevel: "get_default_log_level",
	ServiceSetDefaultLogLevel: "set_default_log_level",
	ServiceGetSoftwareVersion: "get_software_version",
}

func (s Service) String() string {
	if name, ok := serviceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("service(0x%02x)", uint32(s))
}

// ParseService accepts the names produced by Service.String, with
// dashes or underscores.
func ParseService(name string) (Service, error) {
	normalized := strings.ReplaceAll(strings.ToLower(name), "-", "_")
	for service, serviceName := range serviceNames {
		if serviceName == normalized {
			return service, nil
		}
	}
	return 0, fmt.Errorf("unknown control service %q", name)
}

// Status is the result code carried in a response.
type Status uint8

const (
	StatusOK           Status = 0
	StatusNotSupported Status = 1
	StatusError        Status = 2
)

var (
	// ErrNotSupported is returned by Status.Err when the daemon does
	// not implement the requested service.
	ErrNotSupported = errors.New("service not supported by daemon")

	// ErrServiceFailed is returned by Status.Err when the daemon
	// rejected the request.
	ErrServiceFailed = errors.New("service failed")
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotSupported:
		return "not_supported"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Err maps the status to nil, ErrNotSupported or ErrServiceFailed.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusNotSupported:
		return ErrNotSupported
	case StatusError:
		return ErrServiceFailed
	default:
		return fmt.Errorf("%w: unknown status %d", ErrServiceFailed, uint8(s))
	}
}

// remoteTag is the communication interface name appended to set
// requests.
var remoteTag = [4]byte{'r', 'e', 'm', 'o'}

// Request is a control service id and its argument bytes.
type Request struct {
	Service Service
	Payload []byte
}

// SetLogLevel changes the log level of one application context.
func SetLogLevel(applicationID, contextID frame.ID, level frame.LogLevel) Request {
	payload := make([]byte, 0, 13)
	payload = append(payload, applicationID[:]...)
	payload = append(payload, contextID[:]...)
	payload = append(payload, byte(level))
	payload = append(payload, remoteTag[:]...)
	return Request{Service: ServiceSetLogLevel, Payload: payload}
}

// SetTraceStatus enables or disables trace messages of one context.
func SetTraceStatus(applicationID, contextID frame.ID, enabled bool) Request {
	payload := make([]byte, 0, 13)
	payload = append(payload, applicationID[:]...)
	payload = append(payload, contextID[:]...)
	if enabled {
		payload = append(payload, 1)
	} else {
		payload = append(payload, 0)
	}
	payload = append(payload, remoteTag[:]...)
	return Request{Service: ServiceSetTraceStatus, Payload: payload}
}

// LogInfoAll asks GetLogInfo for levels, trace status and
// descriptions.
const LogInfoAll uint8 = 7

// GetLogInfo queries registered applications and contexts. Zero IDs
// select all.
func GetLogInfo(applicationID, contextID frame.ID, options uint8) Request {
	payload := make([]byte, 0, 13)
	payload = append(payload, options)
	payload = append(payload, applicationID[:]...)
	payload = append(payload, contextID[:]...)
	payload = append(payload, remoteTag[:]...)
	return Request{Service: ServiceGetLogInfo, Payload: payload}
}

func GetDefaultLogLevel() Request {
	return Request{Service: ServiceGetDefaultLogLevel}
}

func SetDefaultLogLevel(level frame.LogLevel) Request {
	payload := append([]byte{byte(level)}, remoteTag[:]...)
	return Request{Service: ServiceSetDefaultLogLevel, Payload: payload}
}

func GetSoftwareVersion() Request {
	return Request{Service: ServiceGetSoftwareVersion}
}
