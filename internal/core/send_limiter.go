package core

// send_limiter.go bounds how many campaign sends run at once across all
// sessions. When every slot is busy a new send waits up to maxWait and then
// fails with ErrTooManySends. WaitForDrain lets shutdown wait for in-flight
// sends.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManySends is returned when no send slot frees up within the wait time.
var ErrTooManySends = errors.New("too many sends in progress, please try again later")

// DefaultMaxConcurrentSends is used when the configured limit is not positive.
const DefaultMaxConcurrentSends = 4

// DefaultSendWaitTime is used when the configured wait is not positive.
const DefaultSendWaitTime = 10 * time.Second

// SendLimiter is a counting semaphore for transport round trips.
type SendLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewSendLimiter allows at most maxConcurrent simultaneous sends.
func NewSendLimiter(maxConcurrent int, maxWait time.Duration) *SendLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSends
	}
	if maxWait <= 0 {
		maxWait = DefaultSendWaitTime
	}
	return &SendLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's maxWait.
// The caller must call Release once the send finishes.
func (l *SendLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManySends
	}
}

// Release frees a slot taken by Acquire.
func (l *SendLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.slots
}

// ActiveCount returns the number of sends currently holding a slot.
func (l *SendLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *SendLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no send is active or ctx is done.
func (l *SendLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SendLimiterStatus is a snapshot for health output.
type SendLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the limiter's current state.
func (l *SendLimiter) Status() SendLimiterStatus {
	return SendLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
	}
}
