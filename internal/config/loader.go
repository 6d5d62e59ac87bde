package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at a YAML file.
const ConfigFileEnv = "CONFIG_FILE"

// Load reads configuration from defaults, the optional YAML file named by
// CONFIG_FILE, and environment variables, in that order of precedence from
// lowest to highest. Returns an error if required values are missing or
// validation fails.
func Load() (*Config, error) {
	cfg := &Config{}
	v := reflect.ValueOf(cfg).Elem()

	if err := loadStruct(v, phaseDefaults); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	if err := loadStruct(v, phaseEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadFile overlays the YAML document at path onto cfg. Keys missing from
// the file keep their current values.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

type loadPhase int

const (
	phaseDefaults loadPhase = iota
	phaseEnv
)

// loadStruct recursively populates struct fields from default tags or from
// environment variables, depending on phase.
func loadStruct(v reflect.Value, phase loadPhase) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, phase); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		var value string
		switch phase {
		case phaseDefaults:
			value = field.Tag.Get("default")
		case phaseEnv:
			value = os.Getenv(envName)
			if value == "" {
				value = os.Getenv(field.Tag.Get("envAlt"))
			}
			if value == "" && field.Tag.Get("required") == "true" && fieldVal.IsZero() {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		switch field.Type() {
		case reflect.TypeOf(time.Duration(0)):
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		case reflect.TypeOf(ByteSize(0)):
			b, err := ParseByteSize(value)
			if err != nil {
				return err
			}
			field.Set(reflect.ValueOf(b))
		default:
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// ByteSize is a byte count that parses human-readable sizes such as
// "100MiB", "1.5 GB" or "4096".
type ByteSize int64

// ParseByteSize parses a size with an optional SI or IEC unit.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("invalid size %q: must not be negative", s)
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %w", err)
	}
	return ByteSize(n), nil
}

// UnmarshalYAML accepts both integers and unit strings.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Set parses s into b so ByteSize can back a command-line flag.
func (b *ByteSize) Set(s string) error {
	parsed, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Type names the flag value type in help output.
func (b *ByteSize) Type() string {
	return "size"
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Limit converts b to a pipeline limit. Zero means unlimited.
func (b ByteSize) Limit() ingest.Limit {
	if b <= 0 {
		return ingest.Unlimited()
	}
	return ingest.MaxBytes(int64(b))
}

// Limits returns the pipeline limits derived from the ingest settings,
// without a quota. Per-owner quotas are resolved at request time.
func (c *IngestConfig) Limits() ingest.Limits {
	fixity, err := ingest.ParseChecksumType(c.FixityAlgorithm)
	if err != nil {
		fixity = ingest.DefaultFixity
	}
	return ingest.Limits{
		MaxFileSize:   c.MaxFileSize.Limit(),
		MaxZipEntries: c.MaxZipEntries,
		Fixity:        fixity,
	}
}

// KeyOwners maps each configured API key to the owner it authenticates.
// Keys are written as "owner:key"; a bare key gets the owner "api-key-N".
func (c *SecurityConfig) KeyOwners() map[string]string {
	owners := make(map[string]string, len(c.APIKeys))
	for i, entry := range c.APIKeys {
		owner, key, ok := strings.Cut(entry, ":")
		if !ok || owner == "" {
			owner, key = "api-key-"+strconv.Itoa(i+1), entry
		}
		if key != "" {
			owners[key] = owner
		}
	}
	return owners
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL != "" {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Ingest validation
	if c.Ingest.MaxZipEntries < 0 {
		errs = append(errs, "INGEST_MAX_ZIP_ENTRIES must be non-negative")
	}
	if _, err := ingest.ParseChecksumType(c.Ingest.FixityAlgorithm); err != nil {
		errs = append(errs, fmt.Sprintf("INGEST_FIXITY_ALGORITHM (%q) must be one of: MD5, SHA-1, SHA-256, SHA-512",
			c.Ingest.FixityAlgorithm))
	}
	if c.Ingest.SweepInterval <= 0 {
		errs = append(errs, "INGEST_SWEEP_INTERVAL must be positive")
	}
	if c.Ingest.SweepMaxAge <= 0 {
		errs = append(errs, "INGEST_SWEEP_MAX_AGE must be positive")
	}

	// Upload validation
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.IngestLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_INGEST must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.KeyOwners()) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	// Metrics validation
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("METRICS_PATH (%q) must start with /", c.Metrics.Path))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	db := "memory"
	if c.Database.URL != "" {
		db = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		db, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Ingest: {TempDir: %q, MaxFileSize: %s, Quota: %s, MaxZipEntries: %d, Fixity: %s}, ",
		c.Ingest.TempDir, c.Ingest.MaxFileSize, c.Ingest.QuotaBytes, c.Ingest.MaxZipEntries, c.Ingest.FixityAlgorithm))
	b.WriteString(fmt.Sprintf("Upload: {MaxConcurrent: %d, Timeout: %s}, ",
		c.Upload.MaxConcurrent, c.Upload.Timeout))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
