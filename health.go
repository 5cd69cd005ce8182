// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package tinymq

import (
	"sync"
	"time"
)

// A HealthMonitor tracks the time of the last inbound activity on a
// connection and detects liveness breaches.
type HealthMonitor struct {
	timeout time.Duration
	now     func() time.Time

	μ    sync.Mutex
	last time.Time
}

// NewHealthMonitor constructs a monitor that reports a breach after timeout
// without activity. If now == nil, time.Now is used.
func NewHealthMonitor(timeout time.Duration, now func() time.Time) *HealthMonitor {
	if now == nil {
		now = time.Now
	}
	return &HealthMonitor{timeout: timeout, now: now, last: now()}
}

// Touch records activity at the current time.
func (h *HealthMonitor) Touch() {
	h.μ.Lock()
	defer h.μ.Unlock()
	h.last = h.now()
}

// LastActivity reports the time of the most recent activity.
func (h *HealthMonitor) LastActivity() time.Time {
	h.μ.Lock()
	defer h.μ.Unlock()
	return h.last
}

// Check reports whether a liveness breach has occurred. Without a connection
// the situation is healthy and the clock is reset. A breach also resets the
// clock, so a breach is reported once and not on every subsequent check.
func (h *HealthMonitor) Check(connected bool) bool {
	h.μ.Lock()
	defer h.μ.Unlock()
	now := h.now()
	if !connected {
		h.last = now
		return false
	}
	if now.Sub(h.last) >= h.timeout {
		h.last = now
		return true
	}
	return false
}
