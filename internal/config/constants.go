package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "ocrdash"
	AppVersion = "1.0.0"

	// Server
	DefaultPort           = 8090
	DefaultRequestTimeout = 60 * time.Second

	// Rate Limiting
	DefaultRateLimit = 50 // requests per second
	DefaultBurstSize = 100

	// File Paths (relative to the working directory)
	DefaultDataDir    = "data"
	DefaultExportsDir = "data/exports"
	DefaultLogsDir    = "logs"

	// Uploads and sessions
	DefaultMaxUploadBytes  = 32 << 20 // 32MB
	DefaultSessionTTL      = 2 * time.Hour
	DefaultJanitorInterval = 5 * time.Minute
	DefaultMaxSessions     = 64

	// Loader
	DefaultHeaderScanRows = 10

	// Export
	DefaultExportSheet = "Results"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Temporary files Excel leaves next to an open workbook
	ExcelLockFilePrefix = "~$"
)

// Supported upload extensions
var SupportedExtensions = []string{".csv", ".xlsx", ".xlsm"}
