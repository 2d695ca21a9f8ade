package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Paths contains the resolved file system locations of the application.
// Every path is absolute.
type Paths struct {
	BaseDir    string
	DataDir    string
	ExportsDir string
	LogsDir    string
}

// ResolvePaths resolves the configured directories against base. Absolute
// entries are kept as they are. An empty base means the working directory.
func ResolvePaths(base string, cfg PathsConfig) (*Paths, error) {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolve := func(p, fallback string) string {
		if p == "" {
			p = fallback
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}

	return &Paths{
		BaseDir:    base,
		DataDir:    resolve(cfg.DataDir, DefaultDataDir),
		ExportsDir: resolve(cfg.ExportsDir, DefaultExportsDir),
		LogsDir:    resolve(cfg.LogsDir, DefaultLogsDir),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.ExportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetExportPath resolves an export file name. Absolute paths and paths that
// name a directory explicitly ("./out.csv", "reports/out.csv") are honoured as
// given; bare file names land in ExportsDir.
func (p *Paths) GetExportPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.Contains(name, "/") {
		return filepath.Join(p.BaseDir, name)
	}
	return filepath.Join(p.ExportsDir, name)
}

// LogPathResolution logs the resolved paths at debug level.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("paths resolved",
		slog.String("base_dir", p.BaseDir),
		slog.String("data_dir", p.DataDir),
		slog.String("exports_dir", p.ExportsDir),
		slog.String("logs_dir", p.LogsDir))
}
