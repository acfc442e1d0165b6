// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/dltlink/lib/cli"
	"github.com/bureau-foundation/dltlink/lib/config"
	"github.com/bureau-foundation/dltlink/lib/control"
	"github.com/bureau-foundation/dltlink/lib/frame"
	"github.com/bureau-foundation/dltlink/lib/testutil"
)

const testTimeout = 10 * time.Second

func newEnvironment(t *testing.T) (environment, *bytes.Buffer) {
	t.Helper()
	t.Setenv(config.EnvironmentVariable, "")
	stdout := &bytes.Buffer{}
	return environment{
		stdout: stdout,
		stderr: io.Discard,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  new(slog.LevelVar),
	}, stdout
}

// readRequest reads one unmarked frame from conn.
func readRequest(conn net.Conn) (frame.Frame, error) {
	header := make([]byte, frame.PrimaryHeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return frame.Frame{}, err
	}
	length := int(frame.Flags(header[0]).ByteOrder().Uint16(header[2:4]))
	data := make([]byte, length)
	copy(data, header)
	if _, err := io.ReadFull(conn, data[frame.PrimaryHeaderSize:]); err != nil {
		return frame.Frame{}, err
	}
	return frame.Decode(data)
}

func response(service control.Service, status control.Status, data []byte) []byte {
	payload := binary.LittleEndian.AppendUint32(nil, uint32(service))
	payload = append(payload, byte(status))
	payload = append(payload, data...)
	message := frame.Message{
		Flags: frame.FlagVersion | frame.FlagExtendedHeader,
		Extended: frame.ExtendedHeader{
			Info:          frame.NewMessageInfo(frame.TypeControl, frame.ControlResponse, false),
			ApplicationID: frame.MustParseID("DA1"),
			ContextID:     frame.MustParseID("DC1"),
		},
		Payload: payload,
	}
	encoded, err := message.Marshal()
	if err != nil {
		panic(err)
	}
	return encoded
}

// daemon accepts one connection, reports the first request, and
// answers it with reply (nil: no answer). It holds the connection
// until the client closes it.
func daemon(t *testing.T, reply func(request frame.Frame) []byte) ([]string, <-chan frame.Frame) {
	t.Helper()
	listener := testutil.ListenLoopback(t)
	accepted := testutil.AcceptOne(t, listener)
	requests := make(chan frame.Frame, 1)
	go func() {
		conn, ok := <-accepted
		if !ok {
			return
		}
		defer conn.Close()
		request, err := readRequest(conn)
		if err != nil {
			close(requests)
			return
		}
		requests <- request.Clone()
		if reply != nil {
			if answer := reply(request); answer != nil {
				if _, err := conn.Write(answer); err != nil {
					return
				}
			}
		}
		_, _ = io.Copy(io.Discard, conn)
	}()
	host, port, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	return []string{host, "--port", port}, requests
}

func requestService(request frame.Frame) control.Service {
	return control.Service(binary.LittleEndian.Uint32(request.Payload()[:4]))
}

func TestSetLogLevel(t *testing.T) {
	env, stdout := newEnvironment(t)
	args, requests := daemon(t, func(request frame.Frame) []byte {
		return response(requestService(request), control.StatusOK, nil)
	})
	args = append(args, "--app", "NAVI", "--context", "MAIN", "--level", "debug", "--ecu", "TOOL")

	if err := run(context.Background(), args, env); err != nil {
		t.Fatalf("run: %v", err)
	}
	request := testutil.RequireReceive(t, requests, testTimeout, "waiting for request")
	if ecu, _ := request.ECUID(); ecu.String() != "TOOL" {
		t.Errorf("request ECU = %q, want TOOL", ecu.String())
	}
	want := []byte{0x01, 0, 0, 0, 'N', 'A', 'V', 'I', 'M', 'A', 'I', 'N', byte(frame.LevelDebug), 'r', 'e', 'm', 'o'}
	if !bytes.Equal(request.Payload(), want) {
		t.Errorf("payload = % x, want % x", request.Payload(), want)
	}
	if stdout.String() != "set_log_level ok\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestGetSoftwareVersionByDefault(t *testing.T) {
	env, stdout := newEnvironment(t)
	text := "DLT daemon 2.18.10"
	data := binary.LittleEndian.AppendUint32(nil, uint32(len(text)))
	data = append(data, text...)
	args, requests := daemon(t, func(request frame.Frame) []byte {
		return response(requestService(request), control.StatusOK, data)
	})

	if err := run(context.Background(), args, env); err != nil {
		t.Fatalf("run: %v", err)
	}
	request := testutil.RequireReceive(t, requests, testTimeout, "waiting for request")
	if service := requestService(request); service != control.ServiceGetSoftwareVersion {
		t.Errorf("service = %v, want get_software_version", service)
	}
	want := "get_software_version ok\nversion: DLT daemon 2.18.10\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestGetDefaultLogLevel(t *testing.T) {
	env, stdout := newEnvironment(t)
	args, _ := daemon(t, func(request frame.Frame) []byte {
		return response(requestService(request), control.StatusOK, []byte{byte(frame.LevelWarn)})
	})
	args = append(args, "--service", "get-default-log-level")

	if err := run(context.Background(), args, env); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != "get_default_log_level ok\nlevel: warn\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestNotSupportedStatus(t *testing.T) {
	env, stdout := newEnvironment(t)
	args, _ := daemon(t, func(request frame.Frame) []byte {
		return response(requestService(request), control.StatusNotSupported, nil)
	})
	args = append(args, "--level", "info")

	err := run(context.Background(), args, env)
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != cli.ExitFailure {
		t.Fatalf("run error = %v, want ExitError(1)", err)
	}
	if stdout.String() != "set_default_log_level not_supported\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestResponseTimeout(t *testing.T) {
	env, _ := newEnvironment(t)
	args, requests := daemon(t, nil)
	args = append(args, "--timeout", "50ms")

	err := run(context.Background(), args, env)
	if !errors.Is(err, control.ErrTimeout) {
		t.Fatalf("run error = %v, want ErrTimeout", err)
	}
	if code := cli.ExitCode(err); code != cli.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, cli.ExitFailure)
	}
	testutil.RequireReceive(t, requests, testTimeout, "waiting for request")
}

func TestPeerClosesBeforeResponse(t *testing.T) {
	env, _ := newEnvironment(t)
	listener := testutil.ListenLoopback(t)
	accepted := testutil.AcceptOne(t, listener)
	go func() {
		if conn, ok := <-accepted; ok {
			_, _ = readRequest(conn)
			conn.Close()
		}
	}()
	host, port, _ := net.SplitHostPort(listener.Addr().String())

	start := time.Now()
	err := run(context.Background(), []string{host, "--port", port, "--timeout", "5s"}, env)
	if err == nil {
		t.Fatal("run succeeded without a response")
	}
	if errors.Is(err, control.ErrTimeout) || time.Since(start) >= 5*time.Second {
		t.Errorf("run waited for the timeout instead of noticing the close: %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown service", args: []string{"--service", "reboot", "host"}},
		{name: "set_log_level without app", args: []string{"--service", "set_log_level", "--level", "info", "host"}},
		{name: "trace without --trace", args: []string{"--service", "set_trace_status", "--app", "NAVI", "host"}},
		{name: "bad level", args: []string{"--level", "loud", "host"}},
		{name: "long app id", args: []string{"--app", "NAVIGATION", "--level", "info", "host"}},
		{name: "no host", args: []string{"--level", "info"}},
		{name: "zero timeout", args: []string{"--timeout", "0s", "host"}},
		{name: "bad ecu", args: []string{"--ecu", "TOOLONG", "host"}},
		{name: "unknown flag", args: []string{"--bogus", "host"}},
		{name: "two endpoints", args: []string{"host", "other"}},
	}
	for _, test := range tests {
		env, _ := newEnvironment(t)
		err := run(context.Background(), test.args, env)
		if code := cli.ExitCode(err); code != cli.ExitUsage {
			t.Errorf("%s: exit code = %d, want %d (%v)", test.name, code, cli.ExitUsage, err)
		}
	}
}

func TestHelpAndVersion(t *testing.T) {
	env, stdout := newEnvironment(t)
	help := &bytes.Buffer{}
	env.stderr = help
	if err := run(context.Background(), []string{"--help"}, env); err != nil {
		t.Fatalf("--help: %v", err)
	}
	if !bytes.Contains(help.Bytes(), []byte("--service")) {
		t.Errorf("help output does not list --service:\n%s", help.String())
	}

	if err := run(context.Background(), []string{"--version"}, env); err != nil {
		t.Fatalf("--version: %v", err)
	}
	if !bytes.HasPrefix(stdout.Bytes(), []byte("dlt-control ")) {
		t.Errorf("version output = %q", stdout.String())
	}
}
