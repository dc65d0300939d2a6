package ingest

import "sync"

// Counter tallies finished ingestions by terminal state. Its Observe method
// is meant to be used as an Options.Observer.
type Counter struct {
	mu     sync.Mutex
	counts map[State]int
}

// Observe records t when it ends an ingestion.
func (c *Counter) Observe(t Transition) {
	if t.To != StateDone && t.To != StateFailed {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[State]int)
	}
	c.counts[t.To]++
}

// Snapshot returns the current tallies. Both terminal states are always present.
func (c *Counter) Snapshot() map[State]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[State]int{
		StateDone:   c.counts[StateDone],
		StateFailed: c.counts[StateFailed],
	}
}
