// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/dltlink/lib/clock"
	"github.com/bureau-foundation/dltlink/lib/frame"
)

// ErrTimeout is returned by Requester.Request when no matching
// response arrives in time.
var ErrTimeout = errors.New("control request timed out")

// DefaultTimeout is the response wait when RequesterConfig.Timeout is
// zero.
const DefaultTimeout = 2 * time.Second

// Sender writes a frame to the daemon. *client.Client satisfies it.
type Sender interface {
	SendMessage(message *frame.Message) error
}

// RequesterConfig configures a Requester.
type RequesterConfig struct {
	// Origin stamps outgoing requests. Zero means DefaultOrigin.
	Origin Origin

	Timeout time.Duration

	Logger *slog.Logger
	Clock  clock.Clock
}

// Requester sends control requests and waits for their responses.
// Responses are delivered by calling HandleFrame from the dispatch
// loop; Request blocks the caller, never the loop.
type Requester struct {
	sender  Sender
	origin  Origin
	timeout time.Duration
	logger  *slog.Logger
	clock   clock.Clock

	// requestMutex keeps one request outstanding.
	requestMutex sync.Mutex
	counter      uint8

	pendingMutex sync.Mutex
	pending      *pendingRequest
}

type pendingRequest struct {
	service   Service
	responses chan Response
}

// NewRequester returns a Requester sending through sender.
func NewRequester(sender Sender, config RequesterConfig) *Requester {
	if config.Origin == (Origin{}) {
		config.Origin = DefaultOrigin
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Requester{
		sender:  sender,
		origin:  config.Origin,
		timeout: config.Timeout,
		logger:  config.Logger,
		clock:   config.Clock,
	}
}

// Request sends request and returns the first response for the same
// service. A non-OK Status is not an error here; check
// Response.Status.Err. After ErrTimeout the connection remains usable
// and a late response is discarded.
func (r *Requester) Request(ctx context.Context, request Request) (Response, error) {
	r.requestMutex.Lock()
	defer r.requestMutex.Unlock()

	waiting := &pendingRequest{service: request.Service, responses: make(chan Response, 1)}
	r.setPending(waiting)
	defer r.clearPending(waiting)

	message := BuildRequest(request, r.origin, r.counter)
	r.counter++
	timer := r.clock.NewTimer(r.timeout)
	defer timer.Stop()

	if err := r.sender.SendMessage(&message); err != nil {
		return Response{}, fmt.Errorf("sending %s request: %w", request.Service, err)
	}
	r.logger.Debug("control request sent", "service", request.Service.String(), "counter", message.Counter)

	select {
	case response := <-waiting.responses:
		return response, nil
	case <-timer.C:
		return Response{}, fmt.Errorf("%w: no %s response within %v", ErrTimeout, request.Service, r.timeout)
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (r *Requester) setPending(waiting *pendingRequest) {
	r.pendingMutex.Lock()
	defer r.pendingMutex.Unlock()
	r.pending = waiting
}

func (r *Requester) clearPending(waiting *pendingRequest) {
	r.pendingMutex.Lock()
	defer r.pendingMutex.Unlock()
	if r.pending == waiting {
		r.pending = nil
	}
}

// HandleFrame takes control responses out of the stream. It never
// fails, so it can sit at the front of a handler chain.
func (r *Requester) HandleFrame(_ context.Context, received frame.Frame) error {
	if !IsResponse(received) {
		return nil
	}
	response, err := ParseResponse(received)
	if err != nil {
		r.logger.Debug("ignoring malformed control response", "error", err)
		return nil
	}

	r.pendingMutex.Lock()
	defer r.pendingMutex.Unlock()
	if r.pending == nil || r.pending.service != response.Service {
		r.logger.Debug("ignoring unsolicited control response",
			"service", response.Service.String(), "status", response.Status.String())
		return nil
	}
	r.pending.responses <- response
	r.pending = nil
	return nil
}
