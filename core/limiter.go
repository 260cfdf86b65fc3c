package core

import "sync"

// StepLimiter counts executed workflow steps against a maximum.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a limiter allowing max steps. If max <= 0 the
// limiter never trips.
func NewStepLimiter(max int) *StepLimiter {
	return &StepLimiter{max: max}
}

// Allow reports whether another step may start without exceeding the limit.
func (l *StepLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.max <= 0 || l.count < l.max
}

// Increment records one executed step.
func (l *StepLimiter) Increment() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
}

// Count returns the number of recorded steps.
func (l *StepLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many steps are left, or -1 when unlimited.
func (l *StepLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max <= 0 {
		return -1
	}

	return l.max - l.count
}

// Max returns the configured maximum.
func (l *StepLimiter) Max() int { return l.max }
