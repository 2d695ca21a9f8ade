// Package config provides centralized configuration management for ocrdash.
// It handles loading configuration from multiple sources, validation, and
// resolves the directories the application writes to.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A .env file in the working directory (never overrides the real environment)
//	3. A YAML configuration file
//	4. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern OCRDASH_<SECTION>_<KEY>:
//
//	OCRDASH_SERVER_PORT=8090
//	OCRDASH_LOGGING_LEVEL=debug
//	OCRDASH_UPLOAD_MAX_BYTES=10485760
//	OCRDASH_UPLOAD_SESSION_TTL=30m
//	OCRDASH_LOADER_CHARSET=windows-1252
//	OCRDASH_EXPORT_BOM=true
//	OCRDASH_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Path Management
//
// ResolvePaths turns the configured directories into absolute paths:
//
//	paths, err := config.ResolvePaths("", cfg.Paths)
//	out := paths.GetExportPath("filtered.xlsx") // <exports_dir>/filtered.xlsx
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//
// For tests, Default returns a complete configuration that needs no
// environment variables or files.
package config
