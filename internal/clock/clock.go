// Package clock abstracts the wall clock so stores and pipelines can be tested.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the default Clock backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Stepping is a Clock that starts at T and advances by Step on every call.
type Stepping struct {
	mu   sync.Mutex
	T    time.Time
	Step time.Duration
}

func (s *Stepping) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.T
	s.T = s.T.Add(s.Step)
	return t
}
