package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ocrdash/internal/config"
)

// ErrInvalidFile is wrapped by every rejection of a result file or upload.
var ErrInvalidFile = errors.New("invalid result file")

// FileValidator checks result files before they reach the loader
type FileValidator struct {
	maxBytes int64
	logger   *slog.Logger
}

// NewFileValidator creates a new file validator. A maxBytes of zero or less
// disables the size check.
func NewFileValidator(maxBytes int64, logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return nil, fmt.Errorf("%w: file %s does not exist", ErrInvalidFile, path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return nil, fmt.Errorf("%w: %s is a directory, not a file", ErrInvalidFile, path)
	}

	// Check if file is readable by opening it
	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: file %s is not readable: %v", ErrInvalidFile, path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return info, nil
}

// ValidateResultFile checks that path is a readable CSV or Excel result file
// within the size limit.
func (v *FileValidator) ValidateResultFile(path string) (os.FileInfo, error) {
	info, err := v.ValidateFile(path)
	if err != nil {
		return nil, err
	}
	if err := v.ValidateUpload(filepath.Base(path), info.Size()); err != nil {
		return nil, err
	}
	return info, nil
}

// ValidateUpload checks the name and size of an uploaded file.
func (v *FileValidator) ValidateUpload(name string, size int64) error {
	base := filepath.Base(name)
	if name == "" || base == "." {
		return fmt.Errorf("%w: file name is empty", ErrInvalidFile)
	}

	// Office lock files share the workbook's extension but hold no data
	if strings.HasPrefix(base, config.ExcelLockFilePrefix) {
		v.logger.Warn("Rejecting temporary Excel file",
			slog.String("file", name))
		return fmt.Errorf("%w: %s is a temporary Excel file", ErrInvalidFile, base)
	}

	ext := strings.ToLower(filepath.Ext(base))
	if !isSupportedExtension(ext) {
		v.logger.Error("Unsupported file extension",
			slog.String("file", name),
			slog.String("extension", ext))
		return fmt.Errorf("%w: %s is not a CSV or Excel file (extension: %q)", ErrInvalidFile, base, ext)
	}

	if size == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidFile, base)
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		v.logger.Error("File exceeds size limit",
			slog.String("file", name),
			slog.Int64("size", size),
			slog.Int64("max_bytes", v.maxBytes))
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrInvalidFile, base, size, v.maxBytes)
	}
	return nil
}

// ValidateOutputFile checks that an export target is not a directory and
// ensures its directory exists and is writable. The extension is not checked;
// the export format may be given explicitly.
func (v *FileValidator) ValidateOutputFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: output path is empty", ErrInvalidFile)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		v.logger.Error("Output path is a directory",
			slog.String("path", path))
		return fmt.Errorf("%w: output %s is a directory", ErrInvalidFile, path)
	}
	return v.ValidateOutputDirectory(filepath.Dir(path))
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	// Try to create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	// Verify it's writable by creating a test file
	file, err := os.CreateTemp(dir, ".write_test*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(file.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

func isSupportedExtension(ext string) bool {
	for _, s := range config.SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}
