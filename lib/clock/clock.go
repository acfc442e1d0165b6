// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source injected into components.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. A
	// non-positive d is delivered immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a stoppable one-shot timer. Prefer it over
	// After when the wait may be abandoned early.
	NewTimer(d time.Duration) *Timer

	// NewTicker returns a periodic ticker. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a one-shot event. C has capacity 1.
type Timer struct {
	C <-chan time.Time

	stop  func() bool
	reset func(time.Duration) bool
}

// Stop cancels the timer. It reports whether the timer was pending.
func (t *Timer) Stop() bool { return t.stop() }

// Reset reschedules the timer to fire d from now. It reports whether
// the timer was pending.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }

// Ticker delivers the time at a fixed period. C has capacity 1; ticks
// are dropped when the reader falls behind.
type Ticker struct {
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Reset changes the period and restarts the cycle.
func (t *Ticker) Reset(d time.Duration) { t.reset(d) }
