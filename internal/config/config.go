package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "OCRDASH"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Upload    UploadConfig    `yaml:"upload" envconfig:"UPLOAD"`
	Loader    LoaderConfig    `yaml:"loader" envconfig:"LOADER"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// Addr returns the listen address of the server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ExportsDir string `yaml:"exports_dir" envconfig:"EXPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// UploadConfig bounds what a session may hold and for how long.
type UploadConfig struct {
	MaxBytes        int64         `yaml:"max_bytes" envconfig:"MAX_BYTES"`
	SessionTTL      time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	JanitorInterval time.Duration `yaml:"janitor_interval" envconfig:"JANITOR_INTERVAL"`
	MaxSessions     int           `yaml:"max_sessions" envconfig:"MAX_SESSIONS"`
}

// LoaderConfig holds the loader defaults applied when a request does not override them.
type LoaderConfig struct {
	Charset        string   `yaml:"charset" envconfig:"CHARSET"`
	HeaderScanRows int      `yaml:"header_scan_rows" envconfig:"HEADER_SCAN_ROWS"`
	Required       []string `yaml:"required" envconfig:"REQUIRED"`
}

// ExportConfig holds the exporter defaults.
type ExportConfig struct {
	BOM            bool   `yaml:"bom" envconfig:"BOM"`
	FloatPrecision int    `yaml:"float_precision" envconfig:"FLOAT_PRECISION"`
	Sheet          string `yaml:"sheet" envconfig:"SHEET"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	ServiceVersion string `yaml:"service_version" envconfig:"SERVICE_VERSION"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	// TraceExporter is "stdout" or "none".
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration in three layers: Default, then the YAML file
// at path (or the first one found in the usual locations when path is empty),
// then OCRDASH_* environment variables. A .env file in the working directory
// is read into the environment first without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()

	configFile := path
	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	if c.Upload.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}

	switch strings.ToLower(c.Loader.Charset) {
	case "utf-8", "utf8", "windows-1252", "cp1252", "latin1", "iso-8859-1":
	default:
		return fmt.Errorf("unsupported loader charset: %q", c.Loader.Charset)
	}

	if c.Export.FloatPrecision < -1 {
		return fmt.Errorf("export float precision must be -1 or more")
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none", "":
	default:
		return fmt.Errorf("unsupported trace exporter: %q", c.Telemetry.TraceExporter)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		c.Logging.Format = DefaultLogFormat
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/ocrdash.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	// Check for config file in common locations
	locations := []string{
		"ocrdash.yaml",
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            DefaultPort,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8501", "http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: "logs/ocrdash.log",
		},
		Paths: PathsConfig{
			DataDir:    DefaultDataDir,
			ExportsDir: DefaultExportsDir,
			LogsDir:    DefaultLogsDir,
		},
		Upload: UploadConfig{
			MaxBytes:        DefaultMaxUploadBytes,
			SessionTTL:      DefaultSessionTTL,
			JanitorInterval: DefaultJanitorInterval,
			MaxSessions:     DefaultMaxSessions,
		},
		Loader: LoaderConfig{
			Charset:        "utf-8",
			HeaderScanRows: DefaultHeaderScanRows,
			Required:       []string{"question", "status"},
		},
		Export: ExportConfig{
			BOM:            false,
			FloatPrecision: -1,
			Sheet:          DefaultExportSheet,
		},
		Telemetry: TelemetryConfig{
			Enabled:        true,
			ServiceName:    AppName,
			ServiceVersion: AppVersion,
			Environment:    "development",
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
	}
}
