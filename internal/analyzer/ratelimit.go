package analyzer

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter caps the number of successful analyses within a window.
// The window restarts on every recorded success, so it measures time since
// the most recent analysis rather than since the first one.
type RateLimiter struct {
	mu          sync.Mutex
	count       int
	inFlight    int
	windowStart time.Time
	limit       int
	window      time.Duration
}

// RateStatus is a point-in-time view of the limiter.
type RateStatus struct {
	Count       int           `json:"count"`
	InFlight    int           `json:"in_flight"`
	Limit       int           `json:"limit"`
	WindowStart time.Time     `json:"window_start"`
	Window      time.Duration `json:"window"`
}

func NewRateLimiter(limit int, window time.Duration, now time.Time) *RateLimiter {
	return &RateLimiter{
		limit:       limit,
		window:      window,
		windowStart: now,
	}
}

// Check reports whether another analysis may start at now. When it may not,
// retryAfter is the time left until the window resets.
func (r *RateLimiter) Check(now time.Time) (allowed bool, retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.check(now)
}

// Record counts one successful analysis and restarts the window at now.
func (r *RateLimiter) Record(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(now)
}

// Reserve checks the limit and holds a slot for an analysis in progress.
// Held slots count toward the limit until they are committed or released,
// so concurrent callers cannot overshoot it.
func (r *RateLimiter) Reserve(now time.Time) (*Reservation, time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	allowed, retryAfter := r.check(now)
	if !allowed {
		return nil, retryAfter, false
	}
	r.inFlight++
	return &Reservation{limiter: r}, 0, true
}

func (r *RateLimiter) Status() RateStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RateStatus{
		Count:       r.count,
		InFlight:    r.inFlight,
		Limit:       r.limit,
		WindowStart: r.windowStart,
		Window:      r.window,
	}
}

func (r *RateLimiter) check(now time.Time) (bool, time.Duration) {
	if now.Sub(r.windowStart) >= r.window {
		r.count = 0
		r.windowStart = now
	}
	if r.count+r.inFlight >= r.limit {
		return false, r.windowStart.Add(r.window).Sub(now)
	}
	return true, 0
}

func (r *RateLimiter) record(now time.Time) {
	r.count++
	r.windowStart = now
}

// Reservation is a slot held by an analysis in progress.
type Reservation struct {
	limiter *RateLimiter
	done    bool
}

// Commit turns the slot into a recorded analysis.
func (s *Reservation) Commit(now time.Time) {
	r := s.limiter
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	r.inFlight--
	r.record(now)
}

// Release gives the slot back without consuming quota. It is a no-op after Commit.
func (s *Reservation) Release() {
	r := s.limiter
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	r.inFlight--
}

// FormatResetMessage renders the quota denial shown to users.
func FormatResetMessage(retryAfter time.Duration) string {
	if retryAfter < 0 {
		retryAfter = 0
	}
	hours := int(retryAfter / time.Hour)
	minutes := int((retryAfter % time.Hour) / time.Minute)
	return fmt.Sprintf("Daily limit reached. Reset in %dh %dm", hours, minutes)
}
