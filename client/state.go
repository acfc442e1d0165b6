// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import "fmt"

// State is the dispatch loop position, for observation only.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateScanning
	StateDelivering
	StateDiscarding
	StateClosed
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateReading:    "reading",
	StateScanning:   "scanning",
	StateDelivering: "delivering",
	StateDiscarding: "discarding",
	StateClosed:     "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Termination says why Run returned.
type Termination int

const (
	// TerminationNone is returned with errors that prevented the loop
	// from starting.
	TerminationNone Termination = iota

	// TerminationPeerClosed: the transport reported an orderly close.
	TerminationPeerClosed

	// TerminationStopped: a handler returned ErrStop or the Continue
	// predicate returned false. The connection stays open and Run may
	// be called again; frames already buffered are not lost.
	TerminationStopped

	// TerminationCancelled: the context was cancelled or the client was
	// closed.
	TerminationCancelled

	// TerminationFailed: a fatal transport, framing or handler error.
	TerminationFailed
)

func (t Termination) String() string {
	switch t {
	case TerminationNone:
		return "none"
	case TerminationPeerClosed:
		return "peer closed"
	case TerminationStopped:
		return "stopped"
	case TerminationCancelled:
		return "cancelled"
	case TerminationFailed:
		return "failed"
	default:
		return fmt.Sprintf("termination(%d)", int(t))
	}
}

// Clean reports whether t is an outcome that carries no error.
func (t Termination) Clean() bool {
	return t == TerminationPeerClosed || t == TerminationStopped || t == TerminationCancelled
}
