// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"

	"github.com/bureau-foundation/dltlink/lib/frame"
)

// Handler receives each complete frame. The frame aliases the receive
// buffer and is only valid until HandleFrame returns.
//
// Returning ErrStop ends Run cleanly after the frame is discarded. Any
// other error ends Run as a failure.
type Handler interface {
	HandleFrame(ctx context.Context, received frame.Frame) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, received frame.Frame) error

func (f HandlerFunc) HandleFrame(ctx context.Context, received frame.Frame) error {
	return f(ctx, received)
}

// Chain returns a Handler that calls each handler in order and stops
// at the first error. Nil entries are skipped.
func Chain(handlers ...Handler) Handler {
	var chained []Handler
	for _, handler := range handlers {
		if handler != nil {
			chained = append(chained, handler)
		}
	}
	return HandlerFunc(func(ctx context.Context, received frame.Frame) error {
		for _, handler := range chained {
			if err := handler.HandleFrame(ctx, received); err != nil {
				return err
			}
		}
		return nil
	})
}
