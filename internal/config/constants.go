package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	ServerShutdownTimeout = 10 * time.Second
	WorkerShutdownTimeout = 30 * time.Second
	TestTimeout           = 100 * time.Millisecond

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
	DatabasePingTimeout     = 5 * time.Second

	// Worker timeouts
	DefaultStatisticsRefreshInterval = 1 * time.Hour
	StatisticsRefreshTimeout         = 5 * time.Minute
)

// Defaults for the server and storage
const (
	DefaultServerPort       = "8080"
	DefaultWorkerPort       = "8081"
	DefaultMaxImportRecords = 10000

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	StorageBackendSQL    = "sql"
	StorageBackendMemory = "memory"

	// Logical keys of the record log and the per-user statistics cache
	DefaultRecordsKey     = "qa_records"
	DefaultStatsKeyPrefix = "qa_user_stats_"
)

// Statistics defaults
const (
	DefaultRecentScoresLimit = 10
	DefaultTopicMinAnswers   = 3
	DefaultTopicRankSize     = 3

	// Worker keeps this many run records for /status
	MaxWorkerHistory = 50
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)

// Logging constants
const (
	// Log prefixes
	NoActionPrefix = "NOACTION:"
)
