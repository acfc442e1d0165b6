// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time-dependent code run against a controllable
// clock in tests.
//
// Code that waits or timestamps takes a [Clock] instead of calling the
// time package. Production wiring passes [Real]; tests pass a
// [FakeClock] from [Fake], whose time moves only when the test calls
// [FakeClock.Advance].
//
// A test that advances the clock while another goroutine is about to
// start waiting must first call [FakeClock.WaitForTimers], otherwise the
// advance can land before the timer exists:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go requester.Request(ctx, request) // waits up to 2s
//	fake.WaitForTimers(1)
//	fake.Advance(2 * time.Second)
//
// Socket read deadlines are enforced by the kernel against wall time
// and are outside the reach of a fake clock.
package clock
