// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dltfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects whole-stream compression of a capture.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression accepts the names produced by Compression.String.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, zstd or lz4)", name)
	}
}

// Extension is the conventional file suffix, empty for none.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// compressor returns a writer compressing into w. Close flushes the
// compressed stream without closing w.
func compressor(w io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return encoder, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported compression %v", compression)
	}
}

// decompressor sniffs the stream's magic number and returns a reader
// of the uncompressed bytes plus a release function.
func decompressor(r io.Reader) (io.Reader, Compression, func(), error) {
	buffered := bufio.NewReader(r)
	magic, err := buffered.Peek(4)
	if err != nil && err != io.EOF {
		return nil, 0, nil, fmt.Errorf("reading capture header: %w", err)
	}
	switch {
	case bytes.Equal(magic, zstdMagic):
		decoder, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return decoder, CompressionZstd, decoder.Close, nil
	case bytes.Equal(magic, lz4Magic):
		return lz4.NewReader(buffered), CompressionLZ4, func() {}, nil
	default:
		return buffered, CompressionNone, func() {}, nil
	}
}
