// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package format

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/dltlink/lib/frame"
)

// Color controls level colouring.
type Color int

const (
	// ColorAuto colours only when the writer is a terminal that
	// supports it.
	ColorAuto Color = iota
	ColorAlways
	ColorNever
)

func (c Color) String() string {
	switch c {
	case ColorAuto:
		return "auto"
	case ColorAlways:
		return "always"
	case ColorNever:
		return "never"
	default:
		return fmt.Sprintf("color(%d)", int(c))
	}
}

// ParseColor accepts auto, always and never.
func ParseColor(name string) (Color, error) {
	switch name {
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return 0, fmt.Errorf("unknown color setting %q (want auto, always or never)", name)
	}
}

// Printer writes one rendered line per frame. It is a client.Handler.
type Printer struct {
	mutex  sync.Mutex
	writer io.Writer
	mode   Mode
	styles map[frame.LogLevel]lipgloss.Style
}

// NewPrinter returns a Printer writing to writer.
func NewPrinter(writer io.Writer, mode Mode, color Color) *Printer {
	renderer := lipgloss.NewRenderer(writer)
	switch color {
	case ColorAlways:
		renderer.SetColorProfile(termenv.ANSI256)
	case ColorNever:
		renderer.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		writer: writer,
		mode:   mode,
		styles: map[frame.LogLevel]lipgloss.Style{
			frame.LevelFatal:   renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			frame.LevelError:   renderer.NewStyle().Foreground(lipgloss.Color("9")),
			frame.LevelWarn:    renderer.NewStyle().Foreground(lipgloss.Color("11")),
			frame.LevelDebug:   renderer.NewStyle().Faint(true),
			frame.LevelVerbose: renderer.NewStyle().Faint(true),
		},
	}
}

// HandleFrame writes received.
func (p *Printer) HandleFrame(_ context.Context, received frame.Frame) error {
	header := Header(received)
	line := Line(received, p.mode)
	// Only the header is styled; payload dumps keep their layout.
	if extended, ok := received.Extended(); ok {
		if level, ok := extended.Info.Level(); ok {
			if style, ok := p.styles[level]; ok {
				line = style.Render(header) + strings.TrimPrefix(line, header)
			}
		}
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if _, err := io.WriteString(p.writer, line+"\n"); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
