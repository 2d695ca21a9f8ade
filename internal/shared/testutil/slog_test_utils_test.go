package testutil

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCapture(t *testing.T) {
	logger, logs := NewTestLogger(t)

	logger.Debug("loading", slog.String("file", "resultados.csv"))
	logger.Warn("field could not be parsed", slog.Int("row", 4), slog.String("field", "temperature"))
	logger.Info("session created", slog.Duration("load_time", 1500*time.Millisecond))

	require.Equal(t, 3, logs.Len())
	assert.True(t, logs.Has("could not be parsed"))
	assert.False(t, logs.Has("exported"))

	assert.True(t, logs.HasAttr("row", 4))
	assert.True(t, logs.HasAttr("load_time", 1500*time.Millisecond))
	assert.False(t, logs.HasAttr("row", "4"), "values compare by kind")

	assert.Len(t, logs.AtLevel(slog.LevelWarn), 1)
	AssertLogContains(t, logs, slog.LevelInfo, "session created")
	AssertLogAttr(t, logs, "field", "temperature")
	AssertNoErrors(t, logs)

	logs.Reset()
	assert.Zero(t, logs.Len())
}

func TestLogCapture_DerivedLoggers(t *testing.T) {
	logger, logs := NewTestLogger(t)

	logger.With(slog.String("component", "session_store")).Info("session evicted", slog.String("reason", "expired"))
	logger.WithGroup("export").Info("export written", slog.String("format", "xlsx"), slog.Group("view", slog.Int("records", 2)))
	logger.Info("plain")

	entries := logs.Entries()
	require.Len(t, entries, 3)

	component, ok := entries[0].Attr("component")
	require.True(t, ok)
	assert.Equal(t, "session_store", component)

	assert.Contains(t, entries[1].Attrs, "export.format")
	assert.Contains(t, entries[1].Attrs, "export.view.records")

	_, ok = entries[2].Attr("component")
	assert.False(t, ok, "parent logger records carry no derived attributes")
}

func TestLogCapture_Concurrent(t *testing.T) {
	logger, logs := NewTestLogger(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("request completed", slog.Int("worker", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, logs.Len())
}
