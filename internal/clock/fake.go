package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when Advance is called.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline order. A
// callback must not call Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeTimer
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	f        func()
	done     bool
}

// NewFake returns a Fake set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock has advanced by d. A non-positive
// d runs f before AfterFunc returns.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{clock: c, f: f}
	if d <= 0 {
		t.done = true
		f()
		return t
	}

	c.mu.Lock()
	t.deadline = c.now.Add(d)
	c.waiters = append(c.waiters, t)
	c.mu.Unlock()
	return t
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.waiters {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d and runs every callback that became due.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due, rest []*fakeTimer
	for _, t := range c.waiters {
		switch {
		case t.done:
		case !t.deadline.After(now):
			t.done = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.waiters = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}
