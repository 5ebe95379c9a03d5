package core

// limiter.go bounds how many pipeline runs the HTTP trigger executes at once.
//
// Each run holds a slot of a buffered-channel semaphore. A caller that finds
// every slot taken waits up to maxWait and then gets ErrBusy. WaitForDrain
// lets shutdown block until in-flight runs finish.

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultMaxConcurrentLoads is the slot count when none is configured.
const DefaultMaxConcurrentLoads = 1

// DefaultMaxLoadWait is how long Acquire waits for a slot by default.
const DefaultMaxLoadWait = 30 * time.Second

// LoadLimiter is a counting semaphore over pipeline runs.
type LoadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewLoadLimiter allows at most maxConcurrent simultaneous runs.
func NewLoadLimiter(maxConcurrent int, maxWait time.Duration) *LoadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentLoads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxLoadWait
	}
	return &LoadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. It returns ErrBusy when none frees up within the
// wait time, or ctx's error if ctx ends first. Call Release after success.
func (l *LoadLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrBusy
	}
}

// Release frees a slot taken by Acquire.
func (l *LoadLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of runs holding a slot.
func (l *LoadLimiter) Active() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until no run holds a slot or ctx ends.
func (l *LoadLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a point-in-time view of a LoadLimiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports current slot usage.
func (l *LoadLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.Active(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
