package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogEntry is one captured log call. Attributes inside groups are keyed by
// their dotted path, e.g. "session.id".
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]slog.Value
}

// Attr returns the value of key as a Go value.
func (e LogEntry) Attr(key string) (any, bool) {
	v, ok := e.Attrs[key]
	if !ok {
		return nil, false
	}
	return v.Any(), true
}

type logSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogCapture is a slog.Handler that keeps every record in memory. Loggers
// derived with With or WithGroup write to the same capture.
type LogCapture struct {
	sink   *logSink
	prefix string
	attrs  []slog.Attr
	t      *testing.T
}

// NewLogCapture returns an empty capture. Records are echoed to t.Log when t
// is not nil so failing tests show what was logged.
func NewLogCapture(t *testing.T) *LogCapture {
	return &LogCapture{sink: &logSink{}, t: t}
}

// NewTestLogger returns a logger writing into a fresh capture.
func NewTestLogger(t *testing.T) (*slog.Logger, *LogCapture) {
	capture := NewLogCapture(t)
	return slog.New(capture), capture
}

func (c *LogCapture) Enabled(context.Context, slog.Level) bool {
	return true
}

func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]slog.Value, len(c.attrs)+r.NumAttrs())
	for _, a := range c.attrs {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, c.prefix, a)
		return true
	})

	c.sink.mu.Lock()
	c.sink.entries = append(c.sink.entries, LogEntry{Level: r.Level, Message: r.Message, Attrs: attrs})
	c.sink.mu.Unlock()

	if c.t != nil {
		c.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *c
	clone.attrs = append([]slog.Attr{}, c.attrs...)
	for _, a := range attrs {
		if c.prefix != "" {
			a.Key = c.prefix + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (c *LogCapture) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	clone := *c
	clone.prefix = c.prefix + name + "."
	return &clone
}

func flatten(dst map[string]slog.Value, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = v
}

// Entries returns a copy of every captured entry in logging order.
func (c *LogCapture) Entries() []LogEntry {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return append([]LogEntry(nil), c.sink.entries...)
}

// AtLevel returns the entries logged at exactly level.
func (c *LogCapture) AtLevel(level slog.Level) []LogEntry {
	var out []LogEntry
	for _, e := range c.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether any message contains msg.
func (c *LogCapture) Has(msg string) bool {
	for _, e := range c.Entries() {
		if strings.Contains(e.Message, msg) {
			return true
		}
	}
	return false
}

// HasAttr reports whether any entry carries key with a value equal to want.
func (c *LogCapture) HasAttr(key string, want any) bool {
	wantValue := slog.AnyValue(want)
	for _, e := range c.Entries() {
		if v, ok := e.Attrs[key]; ok && v.Equal(wantValue) {
			return true
		}
	}
	return false
}

// Len returns the number of captured entries.
func (c *LogCapture) Len() int {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return len(c.sink.entries)
}

// Reset drops every captured entry.
func (c *LogCapture) Reset() {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	c.sink.entries = nil
}

// AssertLogContains fails t unless a message containing msg was logged at level.
func AssertLogContains(t *testing.T, c *LogCapture, level slog.Level, msg string) {
	t.Helper()
	entries := c.AtLevel(level)
	for _, e := range entries {
		if strings.Contains(e.Message, msg) {
			return
		}
	}
	t.Errorf("no %s log containing %q", level, msg)
	for _, e := range entries {
		t.Logf("  %s", e.Message)
	}
}

// AssertLogAttr fails t unless some entry carries key=want.
func AssertLogAttr(t *testing.T, c *LogCapture, key string, want any) {
	t.Helper()
	if c.HasAttr(key, want) {
		return
	}
	t.Errorf("no log with %s=%v", key, want)
	for _, e := range c.Entries() {
		t.Logf("  %s: %v", e.Message, e.Attrs)
	}
}

// AssertNoErrors fails t when anything was logged at error level.
func AssertNoErrors(t *testing.T, c *LogCapture) {
	t.Helper()
	for _, e := range c.AtLevel(slog.LevelError) {
		t.Errorf("unexpected error log: %s %v", e.Message, e.Attrs)
	}
}
