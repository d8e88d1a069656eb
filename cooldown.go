package main

import (
	"sync"
	"time"
)

// ============================================================================
// Cooldowns
// ============================================================================

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Cooldowns is a per-key fixed-window limiter. Check and set happen under one
// lock acquisition so concurrent commands cannot both pass the same window.
type Cooldowns struct {
	mu   sync.Mutex
	next map[string]time.Time
	clk  Clock
}

func NewCooldowns(clk Clock) *Cooldowns {
	if clk == nil {
		clk = RealClock{}
	}
	return &Cooldowns{
		next: make(map[string]time.Time),
		clk:  clk,
	}
}

// Try consumes the cooldown for key if it is not active, starting a new window
// of d. Returns false and the remaining wait when the window is still open.
func (c *Cooldowns) Try(key string, d time.Duration) (bool, time.Duration) {
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if until, ok := c.next[key]; ok && now.Before(until) {
		return false, until.Sub(now)
	}

	c.next[key] = now.Add(d)
	return true, 0
}

func (c *Cooldowns) Reset(key string) {
	c.mu.Lock()
	delete(c.next, key)
	c.mu.Unlock()
}

func (c *Cooldowns) Peek(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.next[key]
	return t, ok
}

var (
	workCooldowns    = NewCooldowns(nil)
	fishingCooldowns = NewCooldowns(nil)
	messageCooldowns = NewCooldowns(nil)
)
