package tracking

import (
	"sync"
	"time"
)

// Clock returns the current time in unix milliseconds.
type Clock func() int64

func SystemClock() int64 {
	return time.Now().UnixMilli()
}

// IDGenerator hands out strictly increasing millisecond-based session IDs.
type IDGenerator struct {
	mu    sync.Mutex
	clock Clock
	last  int64
}

func NewIDGenerator(clock Clock) *IDGenerator {
	return &IDGenerator{clock: clock}
}

func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.clock()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe raises the floor so IDs loaded from storage are never reissued.
func (g *IDGenerator) Observe(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id > g.last {
		g.last = id
	}
}

func NewClock() Clock {
	return SystemClock
}
