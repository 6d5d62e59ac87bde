// Package config provides centralized configuration management for the
// ingest service. Settings come from an optional YAML file named by
// CONFIG_FILE, overridden by environment variables, with sensible defaults.
// Everything is validated on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Ingest   IngestConfig    `yaml:"ingest"`
	Upload   UploadConfig    `yaml:"upload"`
	Rate     RateLimitConfig `yaml:"rate_limit"`
	Security SecurityConfig  `yaml:"security"`
	Logging  LoggingConfig   `yaml:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 5m)
	ReadTimeout time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"5m"`

	// WriteTimeout is the maximum duration for writing response (default: 0, unbounded)
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-ingest requests (default: 60s)
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty keeps ingestion
	// records in memory.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `yaml:"url" env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `yaml:"max_conns" env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `yaml:"min_conns" env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies pending migrations on startup (default: true)
	AutoMigrate bool `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" default:"true"`
}

// IngestConfig holds the file ingestion pipeline settings.
type IngestConfig struct {
	// TempDir holds staged uploads and produced files (default: data/scratch)
	TempDir string `yaml:"temp_dir" env:"INGEST_TEMP_DIR" default:"data/scratch"`

	// StorageDir receives produced files; empty uses TempDir
	StorageDir string `yaml:"storage_dir" env:"INGEST_STORAGE_DIR"`

	// MaxFileSize is the per-file size limit, 0 for unlimited (default: 100MiB)
	MaxFileSize ByteSize `yaml:"max_file_size" env:"INGEST_MAX_FILE_SIZE" default:"100MiB"`

	// QuotaBytes is the storage quota per owner, 0 for unlimited (default: 0)
	QuotaBytes ByteSize `yaml:"quota_bytes" env:"INGEST_QUOTA_BYTES" default:"0"`

	// MaxZipEntries caps files unpacked from one zip, 0 for unlimited (default: 1000)
	MaxZipEntries int `yaml:"max_zip_entries" env:"INGEST_MAX_ZIP_ENTRIES" default:"1000"`

	// FixityAlgorithm fingerprints produced files: MD5, SHA-1, SHA-256, SHA-512 (default: MD5)
	FixityAlgorithm string `yaml:"fixity_algorithm" env:"INGEST_FIXITY_ALGORITHM" default:"MD5"`

	// ZipNameCharset decodes non-UTF-8 zip entry names, e.g. Shift_JIS (default: none)
	ZipNameCharset string `yaml:"zip_name_charset" env:"INGEST_ZIP_NAME_CHARSET"`

	// BagItEnabled unpacks zipped BagIt bags into their payload (default: true)
	BagItEnabled bool `yaml:"bagit_enabled" env:"INGEST_BAGIT_ENABLED" default:"true"`

	// SweepInterval is how often leftover scratch files are removed (default: 1h)
	SweepInterval time.Duration `yaml:"sweep_interval" env:"INGEST_SWEEP_INTERVAL" default:"1h"`

	// SweepMaxAge is the age after which scratch files are leftovers (default: 24h)
	SweepMaxAge time.Duration `yaml:"sweep_max_age" env:"INGEST_SWEEP_MAX_AGE" default:"24h"`
}

// UploadConfig holds upload admission settings.
type UploadConfig struct {
	// MaxConcurrent is the maximum number of parallel uploads (default: 5)
	MaxConcurrent int `yaml:"max_concurrent" env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `yaml:"max_wait_time" env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single ingest operation (default: 10m)
	Timeout time.Duration `yaml:"timeout" env:"UPLOAD_TIMEOUT" default:"10m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// IngestLimit is requests per minute for ingest endpoints (default: 10)
	IngestLimit int `yaml:"ingest_limit" env:"RATE_LIMIT_INGEST" envAlt:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `yaml:"enable_csp" env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `yaml:"require_api_key" env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of "owner:key" pairs. A bare key
	// is accepted with a generated owner name.
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enabled serves metrics on Path (default: true)
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED" default:"true"`

	// Path is the metrics endpoint (default: /metrics)
	Path string `yaml:"path" env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
