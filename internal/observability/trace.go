// Package observability provides request tracing for the REST client.
//
// A TraceHooks instance attaches to the client and writes human-readable
// trace lines at configurable verbosity while a collector accumulates
// per-session request counts. Secrets in traced URLs are scrubbed.
package observability

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// sensitiveParams are query parameter names scrubbed from trace output. The
// list is intentionally specific so useful debug info stays visible.
var sensitiveParams = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"client_secret": true,
	"private_key":   true,
}

// ScrubURL redacts sensitive query parameter values in rawURL. Unparsable
// input is returned unchanged.
func ScrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for name := range q {
		if sensitiveParams[strings.ToLower(name)] {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// TraceWriter outputs trace lines with timestamps relative to session start.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter creates a TraceWriter that writes to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo creates a TraceWriter that writes to w.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{writer: w, startTime: time.Now()}
}

// WriteRequestStart writes a request start line.
// Format: [0.234s] > GET https://acme.stratus.io/services/data/records
func (t *TraceWriter) WriteRequestStart(method, rawURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[%.3fs] > %s %s\n",
		time.Since(t.startTime).Seconds(), method, ScrubURL(rawURL))
}

// WriteRequestEnd writes a request completion line with status and duration.
func (t *TraceWriter) WriteRequestEnd(method, rawURL string, status int, err error, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := time.Since(t.startTime).Seconds()
	if err != nil {
		fmt.Fprintf(t.writer, "[%.3fs] ! %s %s failed after %s: %v\n",
			elapsed, method, ScrubURL(rawURL), d.Round(time.Millisecond), err)
		return
	}
	fmt.Fprintf(t.writer, "[%.3fs] < %s %s %d (%s)\n",
		elapsed, method, ScrubURL(rawURL), status, d.Round(time.Millisecond))
}
