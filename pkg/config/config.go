package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/ssoadmin/pkg/observability"
)

// Session backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite3"
	BackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	API           APIConfig           `yaml:"api"`
	Session       SessionConfig       `yaml:"session"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// APIConfig describes the SSO backend.
type APIConfig struct {
	// BaseURL is the versioned API root, e.g. https://sso.example.com/api/v1.
	BaseURL   string        `yaml:"base_url"`
	ClientID  string        `yaml:"client_id"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	FCMToken  string        `yaml:"fcm_token"`
}

// SessionConfig selects where tokens are kept between runs.
type SessionConfig struct {
	Backend string `yaml:"backend"`
	// Dir is the profile directory of the file backend.
	Dir string `yaml:"dir"`
	// Watch reloads the session when another process rewrites it.
	Watch bool `yaml:"watch"`

	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`

	SQLDSN   string `yaml:"sql_dsn"`
	SQLTable string `yaml:"sql_table"`

	// Passphrase, when set, encrypts the session at rest.
	Passphrase string `yaml:"passphrase"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`

	// AuditLog, when set, records session changes as JSON lines.
	AuditLog string `yaml:"audit_log"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// Level returns the parsed log level.
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel returns the tracing settings.
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// LoadOptions controls where LoadWith looks for settings.
type LoadOptions struct {
	// EnvFiles are dotenv files loaded before reading the environment.
	// Missing files are skipped; variables already set win.
	EnvFiles []string
	// ProfilePath is an optional YAML profile applied over the defaults.
	ProfilePath string
}

// LoadConfig loads configuration from .env, the profile named by
// SSOADMIN_PROFILE and environment variables, in increasing precedence.
func LoadConfig() (*Config, error) {
	return LoadWith(LoadOptions{
		EnvFiles:    []string{".env"},
		ProfilePath: os.Getenv("SSOADMIN_PROFILE"),
	})
}

// LoadWith loads configuration as LoadConfig does, from explicit sources.
func LoadWith(opts LoadOptions) (*Config, error) {
	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Default()

	profile := opts.ProfilePath
	if profile == "" {
		profile = os.Getenv("SSOADMIN_PROFILE")
	}
	if profile != "" {
		if err := cfg.applyProfile(profile); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		API: APIConfig{
			ClientID: "ssoadmin",
			Timeout:  30 * time.Second,
		},
		Session: SessionConfig{
			Backend:     BackendFile,
			Dir:         defaultSessionDir(),
			RedisPrefix: "ssoadmin:",
			SQLTable:    "ssoadmin_session",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogMaxSizeMB:       10,
			LogMaxBackups:      3,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "ssoadmin",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func defaultSessionDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ssoadmin")
	}
	return filepath.Join(dir, "ssoadmin")
}

// applyProfile overlays the keys present in the YAML file at path.
func (c *Config) applyProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides settings with the SSOADMIN_* variables that are set.
func (c *Config) applyEnv() {
	c.API.BaseURL = getEnv("SSOADMIN_API_BASE_URL", c.API.BaseURL)
	c.API.ClientID = getEnv("SSOADMIN_CLIENT_ID", c.API.ClientID)
	c.API.Timeout = getEnvDuration("SSOADMIN_API_TIMEOUT", c.API.Timeout)
	c.API.UserAgent = getEnv("SSOADMIN_USER_AGENT", c.API.UserAgent)
	c.API.FCMToken = getEnv("SSOADMIN_FCM_TOKEN", c.API.FCMToken)

	c.Session.Backend = strings.ToLower(getEnv("SSOADMIN_SESSION_BACKEND", c.Session.Backend))
	c.Session.Dir = getEnv("SSOADMIN_SESSION_DIR", c.Session.Dir)
	c.Session.Watch = getEnvBool("SSOADMIN_SESSION_WATCH", c.Session.Watch)
	c.Session.RedisURL = getEnv("SSOADMIN_REDIS_URL", c.Session.RedisURL)
	c.Session.RedisPassword = getEnv("SSOADMIN_REDIS_PASSWORD", c.Session.RedisPassword)
	c.Session.RedisDB = getEnvInt("SSOADMIN_REDIS_DB", c.Session.RedisDB)
	c.Session.RedisPrefix = getEnv("SSOADMIN_REDIS_PREFIX", c.Session.RedisPrefix)
	c.Session.RedisTTL = getEnvDuration("SSOADMIN_REDIS_TTL", c.Session.RedisTTL)
	c.Session.SQLDSN = getEnv("SSOADMIN_SQL_DSN", c.Session.SQLDSN)
	c.Session.SQLTable = getEnv("SSOADMIN_SQL_TABLE", c.Session.SQLTable)
	c.Session.Passphrase = getEnv("SSOADMIN_SESSION_PASSPHRASE", c.Session.Passphrase)

	c.Observability.LogLevel = getEnv("SSOADMIN_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFile = getEnv("SSOADMIN_LOG_FILE", c.Observability.LogFile)
	c.Observability.LogMaxSizeMB = getEnvInt("SSOADMIN_LOG_MAX_SIZE_MB", c.Observability.LogMaxSizeMB)
	c.Observability.LogMaxBackups = getEnvInt("SSOADMIN_LOG_MAX_BACKUPS", c.Observability.LogMaxBackups)
	c.Observability.AuditLog = getEnv("SSOADMIN_AUDIT_LOG", c.Observability.AuditLog)
	c.Observability.MetricsEnabled = getEnvBool("SSOADMIN_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("SSOADMIN_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("SSOADMIN_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("SSOADMIN_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("SSOADMIN_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("SSOADMIN_OTEL_INSECURE", c.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base url is required (set SSOADMIN_API_BASE_URL)")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api base url: %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api timeout must not be negative")
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Session.Dir == "" {
			return fmt.Errorf("session dir is required for the file backend")
		}
	case BackendRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("redis url is required for the redis backend")
		}
	case BackendSQLite, BackendPostgres:
		if c.Session.SQLDSN == "" {
			return fmt.Errorf("sql dsn is required for the %s backend", c.Session.Backend)
		}
	default:
		return fmt.Errorf("invalid session backend: %s (must be file, memory, redis, sqlite3 or postgres)", c.Session.Backend)
	}
	if c.Session.Passphrase != "" && len(c.Session.Passphrase) < 8 {
		return fmt.Errorf("session passphrase must be at least 8 characters")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
