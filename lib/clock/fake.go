// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"container/heap"
	"sync"
	"time"
)

// FakeClock is a Clock whose time advances only through Advance. It is
// safe for concurrent use.
type FakeClock struct {
	mutex    sync.Mutex
	now      time.Time
	pending  timerQueue
	sequence uint64

	// scheduled is signalled whenever a timer is scheduled, for
	// WaitForTimers.
	scheduled *sync.Cond
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.scheduled = sync.NewCond(&clock.mutex)
	return clock
}

// fakeTimer is one scheduled wakeup. period is non-zero for tickers.
type fakeTimer struct {
	deadline time.Time
	sequence uint64
	period   time.Duration
	channel  chan time.Time

	// index is the position in the queue, or -1 when not scheduled.
	index int
}

// timerQueue orders timers by deadline, then by creation order.
type timerQueue []*fakeTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].sequence < q[j].sequence
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	timer := x.(*fakeTimer)
	timer.index = len(*q)
	*q = append(*q, timer)
}

func (q *timerQueue) Pop() any {
	old := *q
	last := len(old) - 1
	timer := old[last]
	old[last] = nil
	timer.index = -1
	*q = old[:last]
	return timer
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

// After is NewTimer without the ability to stop.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C
}

// NewTimer schedules a one-shot timer d after the fake time. A
// non-positive d fires immediately.
func (c *FakeClock) NewTimer(d time.Duration) *Timer {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	timer := &fakeTimer{channel: make(chan time.Time, 1), index: -1}
	if d <= 0 {
		timer.channel <- c.now
	} else {
		c.scheduleLocked(timer, d)
	}
	return &Timer{
		C:     timer.channel,
		stop:  func() bool { return c.unschedule(timer) },
		reset: func(d time.Duration) bool { return c.reschedule(timer, d) },
	}
}

// NewTicker schedules a ticker with period d.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker period")
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	timer := &fakeTimer{channel: make(chan time.Time, 1), period: d, index: -1}
	c.scheduleLocked(timer, d)
	return &Ticker{
		C:    timer.channel,
		stop: func() { c.unschedule(timer) },
		reset: func(d time.Duration) {
			c.mutex.Lock()
			defer c.mutex.Unlock()
			if timer.index >= 0 {
				heap.Remove(&c.pending, timer.index)
			}
			timer.period = d
			c.scheduleLocked(timer, d)
		},
	}
}

func (c *FakeClock) scheduleLocked(timer *fakeTimer, d time.Duration) {
	c.sequence++
	timer.deadline = c.now.Add(d)
	timer.sequence = c.sequence
	heap.Push(&c.pending, timer)
	c.scheduled.Broadcast()
}

func (c *FakeClock) unschedule(timer *fakeTimer) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if timer.index < 0 {
		return false
	}
	heap.Remove(&c.pending, timer.index)
	return true
}

func (c *FakeClock) reschedule(timer *fakeTimer, d time.Duration) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	wasPending := timer.index >= 0
	if wasPending {
		heap.Remove(&c.pending, timer.index)
	}
	if d <= 0 {
		select {
		case timer.channel <- c.now:
		default:
		}
		return wasPending
	}
	c.scheduleLocked(timer, d)
	return wasPending
}

// Advance moves the fake time forward by d and fires every timer whose
// deadline is reached, in deadline order. Sends never block: a timer
// whose channel is still full loses the event, like a real ticker.
func (c *FakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
	for c.pending.Len() > 0 {
		next := c.pending[0]
		if next.deadline.After(c.now) {
			return
		}
		select {
		case next.channel <- next.deadline:
		default:
		}
		if next.period > 0 {
			next.deadline = next.deadline.Add(next.period)
			heap.Fix(&c.pending, next.index)
		} else {
			heap.Pop(&c.pending)
		}
	}
}

// WaitForTimers blocks until at least n timers or tickers are
// scheduled.
func (c *FakeClock) WaitForTimers(n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for c.pending.Len() < n {
		c.scheduled.Wait()
	}
}

// PendingCount returns the number of scheduled timers and tickers.
func (c *FakeClock) PendingCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.pending.Len()
}
