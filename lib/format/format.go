// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package format renders frames as text lines for terminals and log
// files.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/dltlink/lib/frame"
)

// Mode selects how a payload is rendered after the header fields.
type Mode int

const (
	// ModeHeader prints header fields only.
	ModeHeader Mode = iota
	ModeASCII
	ModeHex
	// ModeMixed prints a hex dump with an ASCII column, 16 bytes per
	// line.
	ModeMixed
)

func (m Mode) String() string {
	switch m {
	case ModeHeader:
		return "header"
	case ModeASCII:
		return "ascii"
	case ModeHex:
		return "hex"
	case ModeMixed:
		return "mixed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(name string) (Mode, error) {
	for mode := ModeHeader; mode <= ModeMixed; mode++ {
		if strings.EqualFold(name, mode.String()) {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown output format %q (want header, ascii, hex or mixed)", name)
}

// Header renders the header fields of received on one line:
// timestamp in seconds, counter, ECU, session, application, context,
// message type, subtype, verbose mode and argument count. Absent
// fields print as dashes.
func Header(received frame.Frame) string {
	var builder strings.Builder

	if timestamp, ok := received.Timestamp(); ok {
		fmt.Fprintf(&builder, "%d.%04d", timestamp/10000, timestamp%10000)
	} else {
		builder.WriteString("-")
	}
	fmt.Fprintf(&builder, " %03d", received.Counter())

	if ecu, ok := received.ECUID(); ok {
		builder.WriteString(" " + padID(ecu))
	} else {
		builder.WriteString(" ----")
	}
	if session, ok := received.SessionID(); ok {
		builder.WriteString(" " + strconv.FormatUint(uint64(session), 10))
	}

	extended, ok := received.Extended()
	if !ok {
		builder.WriteString(" ---- ---- - - - -")
		return builder.String()
	}
	builder.WriteString(" " + padID(extended.ApplicationID))
	builder.WriteString(" " + padID(extended.ContextID))
	builder.WriteString(" " + extended.Info.Type().String())
	builder.WriteString(" " + subtypeName(extended.Info))
	if extended.Info.Verbose() {
		builder.WriteString(" V")
	} else {
		builder.WriteString(" N")
	}
	builder.WriteString(" " + strconv.Itoa(int(extended.ArgumentCount)))
	return builder.String()
}

func padID(id frame.ID) string {
	text := id.String()
	if text == "" {
		return "----"
	}
	return fmt.Sprintf("%-4s", text)
}

func subtypeName(info frame.MessageInfo) string {
	switch info.Type() {
	case frame.TypeLog:
		level, _ := info.Level()
		return level.String()
	case frame.TypeControl:
		switch info.Subtype() {
		case frame.ControlRequest:
			return "request"
		case frame.ControlResponse:
			return "response"
		}
	}
	return strconv.Itoa(int(info.Subtype()))
}

// Hex renders data as space separated hex bytes.
func Hex(data []byte) string {
	return fmt.Sprintf("% x", data)
}

// ASCII renders printable bytes as themselves and everything else as
// a dot.
func ASCII(data []byte) string {
	printable := make([]byte, len(data))
	for index, value := range data {
		if value >= 0x20 && value < 0x7f {
			printable[index] = value
		} else {
			printable[index] = '.'
		}
	}
	return string(printable)
}

// Mixed renders data as a hex dump with offsets and an ASCII column.
func Mixed(data []byte) string {
	const width = 16
	var builder strings.Builder
	for offset := 0; offset < len(data); offset += width {
		row := data[offset:min(offset+width, len(data))]
		if offset > 0 {
			builder.WriteByte('\n')
		}
		fmt.Fprintf(&builder, "%06x: %-*s |%s|", offset, width*3-1, Hex(row), ASCII(row))
	}
	return builder.String()
}

// Line renders received in mode without styling.
func Line(received frame.Frame, mode Mode) string {
	header := Header(received)
	payload := received.Payload()
	switch mode {
	case ModeASCII:
		return header + " " + ASCII(payload)
	case ModeHex:
		return header + " [" + Hex(payload) + "]"
	case ModeMixed:
		if len(payload) == 0 {
			return header
		}
		return header + "\n" + Mixed(payload)
	default:
		return header
	}
}
