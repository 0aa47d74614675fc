package observability

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScrubURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no query", "https://acme.stratus.io/services/data", "https://acme.stratus.io/services/data"},
		{"benign params", "https://h/p?q=name&limit=10", "https://h/p?q=name&limit=10"},
		{"access token", "https://h/p?access_token=s3cret", "https://h/p?access_token=REDACTED"},
		{"mixed case", "https://h/p?Client_Secret=s3cret", "https://h/p?Client_Secret=REDACTED"},
		{"mixed params", "https://h/p?limit=5&token=abc", "https://h/p?limit=5&token=REDACTED"},
		{"unparsable", "://nope", "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScrubURL(tt.in))
		})
	}
}

func TestTraceWriterRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	w.WriteRequestStart("GET", "https://h/p?access_token=s3cret")
	w.WriteRequestEnd("GET", "https://h/p?access_token=s3cret", 200, nil, 12*time.Millisecond)

	out := buf.String()
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "REDACTED")
	assert.Contains(t, out, "> GET")
	assert.Contains(t, out, "200")
}

func TestTraceWriterFailureLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	w.WriteRequestEnd("POST", "https://h/p", 0, errors.New("connection refused"), time.Second)
	assert.Contains(t, buf.String(), "failed after")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestHooksLevels(t *testing.T) {
	var buf bytes.Buffer
	collector := NewSessionCollector()
	h := NewTraceHooks(LevelSilent, collector, NewTraceWriterTo(&buf))

	h.OnRequestStart("GET", "https://h/p")
	h.OnRequestEnd("GET", "https://h/p", 200, nil, time.Millisecond)
	assert.Empty(t, buf.String(), "silent level writes nothing")
	assert.Equal(t, 1, collector.Stats().Requests, "stats collect even when silent")

	h.SetLevel(LevelRequests)
	assert.Equal(t, LevelRequests, h.Level())
	h.OnRequestStart("GET", "https://h/p")
	assert.NotEmpty(t, buf.String())
}

func TestCollectorStats(t *testing.T) {
	c := NewSessionCollector()
	c.RecordRequest(nil, 10*time.Millisecond)
	c.RecordRequest(errors.New("boom"), 5*time.Millisecond)
	c.RecordAuthRefresh()

	stats := c.Stats()
	assert.Equal(t, 2, stats.Requests)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 1, stats.AuthRefreshes)
	assert.Equal(t, 15*time.Millisecond, stats.TotalDuration)
}

func TestNilCollectorAndWriter(t *testing.T) {
	h := NewTraceHooks(LevelRequests, nil, nil)
	h.OnRequestStart("GET", "https://h/p")
	h.OnRequestEnd("GET", "https://h/p", 200, nil, time.Millisecond)
	h.OnAuthRefresh()
}
