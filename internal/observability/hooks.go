package observability

import (
	"sync"
	"time"
)

// Verbosity levels for TraceHooks.
//   - 0: silent, stats only
//   - 1: request lines
const (
	LevelSilent   = 0
	LevelRequests = 1
)

// TraceHooks observes REST client requests. A nil collector disables stats;
// a nil writer disables trace output.
type TraceHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

// NewTraceHooks creates hooks at the given verbosity level.
func NewTraceHooks(level int, collector *SessionCollector, writer *TraceWriter) *TraceHooks {
	return &TraceHooks{level: level, collector: collector, writer: writer}
}

// SetLevel changes the verbosity level at runtime.
func (h *TraceHooks) SetLevel(level int) {
	h.mu.Lock()
	h.level = level
	h.mu.Unlock()
}

// Level returns the current verbosity level.
func (h *TraceHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *TraceHooks) snapshot() (int, *SessionCollector, *TraceWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, h.collector, h.writer
}

// OnRequestStart is called before a request is sent.
func (h *TraceHooks) OnRequestStart(method, url string) {
	level, _, writer := h.snapshot()
	if level >= LevelRequests && writer != nil {
		writer.WriteRequestStart(method, url)
	}
}

// OnRequestEnd is called after a request completes or fails in transport.
func (h *TraceHooks) OnRequestEnd(method, url string, status int, err error, d time.Duration) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordRequest(err, d)
	}
	if level >= LevelRequests && writer != nil {
		writer.WriteRequestEnd(method, url, status, err, d)
	}
}

// OnAuthRefresh is called when an expired session forces a refresh.
func (h *TraceHooks) OnAuthRefresh() {
	_, collector, _ := h.snapshot()
	if collector != nil {
		collector.RecordAuthRefresh()
	}
}
