// Package constants provides shared constants used throughout the econbench codebase.
// This includes timeouts, file permissions, directory layout defaults, and time
// formats that should be consistent across pipelines, reconciliation, and QA.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to external APIs
	DefaultHTTPTimeout = 30 * time.Second

	// CensusAPITimeout is the timeout for Census Bureau API requests (ABS and ACS)
	CensusAPITimeout = 60 * time.Second

	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// WarehouseQueryTimeout is the timeout for a single BigQuery query
	WarehouseQueryTimeout = 5 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// FullSurfaceTimeout covers the per-state sweep across all counties and sectors
	FullSurfaceTimeout = 30 * time.Minute
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for sensitive files like API keys (rw-------)
	SecureFilePermissions = 0600
)

// Numeric constants shared across pipelines
const (
	// NumericPrecision is the decimal precision for derived rate columns
	NumericPrecision = 9

	// WeeksPerYear converts annual wages to an average weekly wage
	WeeksPerYear = 52

	// ThousandsScale converts published $1,000 units to whole USD
	ThousandsScale = 1000.0
)

// Directory layout defaults
const (
	// DefaultRawDir is where raw source downloads live
	DefaultRawDir = "data_raw"

	// DefaultCleanDir is where normalized per-source CSVs live
	DefaultCleanDir = "data_clean"

	// DefaultQAOutDir is where reconciliation artifacts land
	DefaultQAOutDir = "artifacts/qa"

	// DefaultReportsDir is where QA suite reports land
	DefaultReportsDir = "outputs/qa"
)

// Format constants
const (
	// TimeFormatISO8601 is the ISO 8601 time format
	TimeFormatISO8601 = time.RFC3339

	// TimeFormatArtifact stamps timestamped CSV artifacts (UTC)
	TimeFormatArtifact = "20060102T150405Z"

	// TimeFormatSnapshot stamps markdown snapshots (UTC)
	TimeFormatSnapshot = "2006-01-02T15:04:05Z"

	// TimeFormatRunID stamps sanity-check report names (local time)
	TimeFormatRunID = "20060102_150405"

	// TimeFormatLog is the format used in log files
	TimeFormatLog = "2006-01-02 15:04:05.000"
)

// Error messages
const (
	// ErrMsgTableNotFound is the standard error message for missing warehouse tables
	ErrMsgTableNotFound = "table not found"

	// ErrMsgColumnNotFound is the standard error message for missing columns
	ErrMsgColumnNotFound = "column not found"

	// ErrMsgRateLimited is the standard error message for rate limiting
	ErrMsgRateLimited = "rate limit exceeded, please try again later"

	// ErrMsgTimeout is the standard error message for timeouts
	ErrMsgTimeout = "operation timed out"
)
