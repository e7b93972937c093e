// Package testutil holds fakes shared by engine, harness and CLI tests.
package testutil

import (
	"sync"
	"time"
)

// Clock is a wall clock that advances by a fixed step on every read.
//
// Safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock starts at start; each Now call moves it forward by step.
func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start, step: step}
}

// Now returns the current time and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
