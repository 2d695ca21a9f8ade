package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ocrdash/internal/config"
)

var (
	globalMu      sync.Mutex
	globalLogger  *slog.Logger
	globalLogFile *os.File
)

// InitializeLogger builds the process-wide logger from cfg and installs it
// as the slog default. Only the first call has an effect; later calls
// return the logger it built. Call CloseLogFile on shutdown.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger != nil {
		return globalLogger, nil
	}

	out, file, err := logOutput(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	globalLogger = NewLogger(cfg, out)
	globalLogFile = file
	slog.SetDefault(globalLogger)
	return globalLogger, nil
}

// GetLogger returns the process-wide logger, or slog.Default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// NewLogger builds a logger writing to w in the configured format. It does
// not touch the global logger, so CLI commands can log to stderr freely.
func NewLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.Development,
		Level:     parseLogLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&contextHandler{Handler: handler})
}

// logOutput resolves the configured destination. Console output goes to
// console so command output on stdout stays clean.
func logOutput(cfg config.LoggingConfig, console io.Writer) (io.Writer, *os.File, error) {
	switch strings.ToLower(cfg.Output) {
	case "file", "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		if strings.EqualFold(cfg.Output, "both") {
			return io.MultiWriter(console, file), file, nil
		}
		return file, file, nil
	default:
		return console, nil, nil
	}
}

// contextHandler stamps trace_id and session_id from the context onto
// every record.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	if id := SessionID(ctx); id != "" {
		r.AddAttrs(slog.String("session_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CloseLogFile flushes and closes the log file opened by InitializeLogger,
// if any. Later log lines still reach the console when output is "both".
func CloseLogFile() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogFile == nil {
		return nil
	}
	err := globalLogFile.Sync()
	if cerr := globalLogFile.Close(); err == nil {
		err = cerr
	}
	globalLogFile = nil
	return err
}

// resetLogger drops the global logger. Tests only.
func resetLogger() {
	_ = CloseLogFile()
	globalMu.Lock()
	globalLogger = nil
	globalMu.Unlock()
}

func openLogFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, nil
}
