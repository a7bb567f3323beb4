// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time changes only through Advance. It is
// safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*alarm
	armed   *sync.Cond
}

// alarm is one scheduled After or AfterFunc.
type alarm struct {
	due      time.Time
	channel  chan time.Time // After
	callback func()         // AfterFunc
	done     bool           // fired or stopped
}

// Fake returns a FakeClock reading start.
func Fake(start time.Time) *FakeClock {
	clock := &FakeClock{now: start}
	clock.armed = sync.NewCond(&clock.mu)
	return clock
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives when Advance reaches d from now.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	channel := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.scheduleLocked(&alarm{due: c.now.Add(d), channel: channel})
	return channel
}

// AfterFunc arranges for f to run inside the Advance call that reaches
// d from now. A non-positive d runs f before AfterFunc returns. f must
// not call Advance.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}
	scheduled := &alarm{callback: f}
	c.mu.Lock()
	scheduled.due = c.now.Add(d)
	c.scheduleLocked(scheduled)
	c.mu.Unlock()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if scheduled.done {
			return false
		}
		scheduled.done = true
		return true
	}}
}

func (c *FakeClock) scheduleLocked(scheduled *alarm) {
	c.pending = append(c.pending, scheduled)
	c.armed.Broadcast()
}

// Advance moves time forward by d and fires, in due order, every alarm
// that comes due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []*alarm
	remaining := c.pending[:0]
	for _, scheduled := range c.pending {
		switch {
		case scheduled.done:
		case !scheduled.due.After(now):
			scheduled.done = true
			due = append(due, scheduled)
		default:
			remaining = append(remaining, scheduled)
		}
	}
	c.pending = remaining
	c.mu.Unlock()

	slices.SortStableFunc(due, func(a, b *alarm) int { return a.due.Compare(b.due) })
	for _, scheduled := range due {
		if scheduled.callback != nil {
			scheduled.callback()
			continue
		}
		scheduled.channel <- now
	}
}

// WaitForTimers blocks until at least n alarms are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.armed.Wait()
	}
}

// Pending returns the number of alarms armed and not yet fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, scheduled := range c.pending {
		if !scheduled.done {
			count++
		}
	}
	return count
}
