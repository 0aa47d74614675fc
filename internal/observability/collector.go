package observability

import (
	"sync"
	"time"
)

// SessionStats summarizes the requests a session has made.
type SessionStats struct {
	Requests      int
	Failures      int
	AuthRefreshes int
	TotalDuration time.Duration
}

// SessionCollector accumulates request statistics for the lifetime of a
// process.
type SessionCollector struct {
	mu    sync.Mutex
	stats SessionStats
}

// NewSessionCollector creates an empty collector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{}
}

// RecordRequest records one completed request.
func (c *SessionCollector) RecordRequest(err error, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Requests++
	c.stats.TotalDuration += d
	if err != nil {
		c.stats.Failures++
	}
}

// RecordAuthRefresh records one session refresh triggered by an expired
// token.
func (c *SessionCollector) RecordAuthRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.AuthRefreshes++
}

// Stats returns a snapshot of the accumulated statistics.
func (c *SessionCollector) Stats() SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
