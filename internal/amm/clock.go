package amm

import (
	"fmt"
	"sync"
	"time"
)

// Clock supplies the logical time compared against deadlines.
type Clock interface {
	Now() uint64
}

// SystemClock reports wall-clock unix seconds.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock is a logical clock that only moves forward.
type ManualClock struct {
	mu  sync.RWMutex
	now uint64
}

func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to ts. Moving backwards is rejected.
func (c *ManualClock) Set(ts uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts < c.now {
		return fmt.Errorf("clock cannot move backwards: %d < %d", ts, c.now)
	}
	c.now = ts
	return nil
}

// Advance moves the clock forward by seconds.
func (c *ManualClock) Advance(seconds uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
	return c.now
}
