// Package config provides configuration management for the makerspace dashboard service.
// Scalar settings come from environment variables with defaults; list-shaped policy
// (protected routes, role assignments, exclusion lists, category tables, the component
// registry) comes from YAML files layered per environment.
package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

const (
	// MinSessionSecretLength is the minimum required length for the session signing secret.
	MinSessionSecretLength = 32
	// MinPortNumber is the minimum valid port number.
	MinPortNumber = 1
	// MaxPortNumber is the maximum valid port number.
	MaxPortNumber = 65535
)

// Config represents the complete configuration for the dashboard service,
// aggregating all component-specific configurations.
type Config struct {
	// Environment holds environment-specific settings.
	Environment EnvironmentConfig `envconfig:"ENVIRONMENT"`
	// Server contains HTTP server configuration including ports, timeouts, and TLS settings.
	Server ServerConfig `envconfig:"SERVER"`
	// Redis contains Redis connection and pool configuration.
	Redis RedisConfig `envconfig:"REDIS"`
	// Cache contains upstream response cache settings.
	Cache CacheConfig `envconfig:"CACHE"`
	// PostgresDatabase contains PostgreSQL configuration for the role directory.
	PostgresDatabase DatabaseConfig `envconfig:"POSTGRES"`
	// MySQLDatabase contains MySQL configuration for the role directory.
	MySQLDatabase MySQLConfig `envconfig:"MYSQL"`
	// Roles selects and tunes the role directory.
	Roles RolesConfig `envconfig:"ROLES"`
	// PrintFleet contains the print fleet service account.
	PrintFleet PrintFleetConfig `envconfig:"PRINTFLEET"`
	// ToolUsage contains the tool usage organization credential.
	ToolUsage ToolUsageConfig `envconfig:"TOOLUSAGE"`
	// CAS contains single sign-on settings.
	CAS CASConfig `envconfig:"CAS"`
	// Session contains the session cookie settings.
	Session SessionConfig `envconfig:"SESSION"`
	// Metrics contains aggregation limits and policy.
	Metrics MetricsConfig `envconfig:"METRICS"`
	// Scheduler contains background job settings.
	Scheduler SchedulerConfig `envconfig:"SCHEDULER"`
	// Security contains security-related settings like CORS and rate limiting.
	Security SecurityConfig `envconfig:"SECURITY"`
	// Logging contains logging configuration.
	Logging LoggingConfig `envconfig:"LOGGING"`

	// Policy is loaded from the YAML policy files, not from the environment.
	Policy Policy `ignored:"true"`
}

type Environment string

const (
	Local   Environment = "LOCAL"
	NonProd Environment = "NONPROD"
	Prod    Environment = "PROD"
)

// EnvironmentConfig holds environment-specific settings.
type EnvironmentConfig struct {
	// Environment indicates the current running environment (LOCAL, NONPROD, PROD).
	Environment Environment `envconfig:"ENV" default:"LOCAL"`
}

// ServerConfig holds HTTP server configuration including network settings,
// timeouts, and TLS certificate paths.
type ServerConfig struct {
	// Port is the HTTP server listening port.
	Port int `envconfig:"PORT"             default:"8080"`
	// Host is the network interface to bind to.
	Host string `envconfig:"HOST"             default:"0.0.0.0"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT"     default:"15s"`
	// WriteTimeout is the maximum duration before timing out writes. Trend metrics
	// fan out to many upstream calls, so this is longer than a typical API.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT"    default:"90s"`
	// IdleTimeout is the maximum amount of time to wait for keep-alive connections.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT"     default:"60s"`
	// ShutdownTimeout is the maximum time to wait for graceful server shutdown.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// TLSCert is the path to the TLS certificate file for HTTPS.
	TLSCert string `envconfig:"TLS_CERT"`
	// TLSKey is the path to the TLS private key file for HTTPS.
	TLSKey string `envconfig:"TLS_KEY"`
}

// RedisConfig contains Redis connection configuration including
// connection pool settings and timeouts.
type RedisConfig struct {
	// URL is the Redis connection URL.
	URL string `envconfig:"URL"           default:"redis://localhost:6379"`
	// Password is the Redis authentication password.
	Password string `envconfig:"PASSWORD"`
	// DB is the Redis database number to use.
	DB int `envconfig:"DB"            default:"0"`
	// MaxRetries is the maximum number of retry attempts for failed operations.
	MaxRetries int `envconfig:"MAX_RETRIES"   default:"3"`
	// PoolSize is the maximum number of socket connections.
	PoolSize int `envconfig:"POOL_SIZE"     default:"10"`
	// MinIdleConn is the minimum number of idle connections.
	MinIdleConn int `envconfig:"MIN_IDLE_CONN" default:"2"`
	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT"  default:"5s"`
	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT"  default:"3s"`
	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	// PoolTimeout is the amount of time client waits for connection.
	PoolTimeout time.Duration `envconfig:"POOL_TIMEOUT"  default:"4s"`
	// IdleTimeout is the amount of time after which client closes idle connections.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT"  default:"300s"`
}

// Cache backends.
const (
	CacheBackendAuto   = "auto"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig controls the upstream response cache.
type CacheConfig struct {
	// Backend is auto (redis, falling back to memory), memory or redis.
	Backend string `envconfig:"BACKEND"          default:"auto"`
	// TTL is how long an individual usage window stays cached.
	TTL time.Duration `envconfig:"TTL"              default:"30m"`
	// MaxEntries bounds the in-memory store.
	MaxEntries int `envconfig:"MAX_ENTRIES"      default:"512"`
	// CleanupInterval is how often the in-memory store sweeps expired entries.
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"5m"`
	// KeyPrefix namespaces keys in the redis backend.
	KeyPrefix string `envconfig:"KEY_PREFIX"       default:"makerspace:cache:"`
}

// DatabaseConfig contains PostgreSQL database connection configuration
// including connection pool settings and health check parameters.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `envconfig:"HOST"                default:"localhost"`
	// Port is the PostgreSQL server port.
	Port int `envconfig:"PORT"                default:"5432"`
	// Database is the PostgreSQL database name.
	Database string `envconfig:"DB"                  default:"makerspace"`
	// Schema is the PostgreSQL schema name.
	Schema string `envconfig:"SCHEMA"              default:"makerspace"`
	// User is the database username.
	User string `envconfig:"USER"`
	// Password is the database password.
	Password string `envconfig:"PASSWORD"`
	// SSLMode is the SSL connection mode (disable, require, verify-ca, verify-full).
	SSLMode string `envconfig:"SSL_MODE"            default:"require"`
	// MaxConn is the maximum number of connections in the pool.
	MaxConn int32 `envconfig:"MAX_CONN"            default:"10"`
	// MinConn is the minimum number of connections in the pool.
	MinConn int32 `envconfig:"MIN_CONN"            default:"1"`
	// MaxConnLifetime is the maximum lifetime of a connection.
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME"   default:"1h"`
	// MaxConnIdleTime is the maximum idle time for a connection.
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME"  default:"30m"`
	// HealthCheckPeriod is how often to check database connectivity.
	HealthCheckPeriod time.Duration `envconfig:"HEALTH_CHECK_PERIOD" default:"30s"`
	// ConnectTimeout is the timeout for establishing connections.
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT"     default:"10s"`
}

// MySQLConfig contains MySQL database connection configuration
// including connection pool settings and health check parameters.
type MySQLConfig struct {
	// Host is the MySQL server hostname.
	Host string `envconfig:"HOST"                default:"localhost"`
	// Port is the MySQL server port.
	Port int `envconfig:"PORT"                default:"3306"`
	// Database is the MySQL database name.
	Database string `envconfig:"DB"                  default:"makerspace"`
	// User is the database username.
	User string `envconfig:"USER"`
	// Password is the database password.
	Password string `envconfig:"PASSWORD"`
	// MaxConn is the maximum number of open connections.
	MaxConn int `envconfig:"MAX_CONN"            default:"10"`
	// MinConn is the minimum number of idle connections.
	MinConn int `envconfig:"MIN_CONN"            default:"1"`
	// MaxConnLifetime is the maximum lifetime of a connection.
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME"   default:"1h"`
	// MaxConnIdleTime is the maximum idle time for a connection.
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME"  default:"30m"`
	// HealthCheckPeriod is how often to check database connectivity.
	HealthCheckPeriod time.Duration `envconfig:"HEALTH_CHECK_PERIOD" default:"30s"`
	// ConnectTimeout is the timeout for establishing connections.
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT"     default:"10s"`
}

// Role directory backends.
const (
	RolesBackendStatic   = "static"
	RolesBackendPostgres = "postgres"
	RolesBackendMySQL    = "mysql"
)

// RolesConfig selects where role assignments are read from.
type RolesConfig struct {
	// Backend is static (policy file only), postgres or mysql.
	Backend string `envconfig:"BACKEND"      default:"static"`
	// CacheTTL caches database lookups. Zero looks roles up on every request.
	CacheTTL time.Duration `envconfig:"CACHE_TTL"    default:"0s"`
	// SeedEnabled loads SeedPath into the database at startup.
	SeedEnabled bool `envconfig:"SEED_ENABLED" default:"false"`
	// SeedPath is the JSON file of role assignments to seed.
	SeedPath string `envconfig:"SEED_PATH"    default:"configs/roles.json"`
}

// PrintFleetConfig holds the print fleet service account.
type PrintFleetConfig struct {
	// Username is the service account login.
	Username string `envconfig:"USERNAME"`
	// Password is the service account password. Backslash-escaped %, $ and ! are unescaped.
	Password string `envconfig:"PASSWORD"`
	// BaseURL overrides the per-environment API base URL.
	BaseURL string `envconfig:"BASE_URL"`
	// Timeout bounds each upstream call.
	Timeout time.Duration `envconfig:"TIMEOUT"  default:"30s"`
}

// ToolUsageConfig holds the tool usage organization credential pair.
type ToolUsageConfig struct {
	// OrgKey is the organization key (EGKey).
	OrgKey string `envconfig:"ORG_KEY"`
	// OrgID is the organization id (EGId).
	OrgID string `envconfig:"ORG_ID"`
	// BaseURL overrides the per-environment API base URL.
	BaseURL string `envconfig:"BASE_URL"`
	// Timeout bounds each upstream call.
	Timeout time.Duration `envconfig:"TIMEOUT"  default:"30s"`
}

// CASConfig holds single sign-on settings.
type CASConfig struct {
	// BaseURL overrides the per-environment CAS server URL.
	BaseURL string `envconfig:"BASE_URL"`
	// ServiceBaseURL is the public origin of this service. When empty the origin
	// is derived from the request.
	ServiceBaseURL string `envconfig:"SERVICE_BASE_URL"`
	// Bypass skips ticket validation and signs in BypassUser. Refused in PROD.
	Bypass bool `envconfig:"BYPASS"           default:"false"`
	// BypassUser is the identity synthesized in bypass mode.
	BypassUser string `envconfig:"BYPASS_USER"      default:"testuser"`
	// Timeout bounds the validation call.
	Timeout time.Duration `envconfig:"TIMEOUT"          default:"10s"`
	// UnauthorizedPath is where rejected requests are redirected.
	UnauthorizedPath string `envconfig:"UNAUTHORIZED_PATH" default:"/unauthorized"`
}

// SessionConfig holds the session cookie settings.
type SessionConfig struct {
	// Secret signs session cookie values (required, minimum 32 characters).
	Secret string `envconfig:"SECRET"      required:"true"`
	// CookieName is the session cookie name.
	CookieName string `envconfig:"COOKIE_NAME" default:"gt_session"`
	// MaxAge is the session lifetime.
	MaxAge time.Duration `envconfig:"MAX_AGE"     default:"24h"`
	// Domain is the cookie domain. Empty means host-only.
	Domain string `envconfig:"DOMAIN"`
	// Issuer is the token issuer claim.
	Issuer string `envconfig:"ISSUER"      default:"makerspace-dashboard"`
}

// MetricsConfig holds aggregation limits and attendance policy.
type MetricsConfig struct {
	// Timezone is the location used for day, week and month boundaries.
	Timezone string `envconfig:"TIMEZONE"            default:"America/New_York"`
	// LeaderboardLimit is how many users the leaderboard returns.
	LeaderboardLimit int `envconfig:"LEADERBOARD_LIMIT"   default:"11"`
	// ReasonsLimit is how many cancellation categories are returned.
	ReasonsLimit int `envconfig:"REASONS_LIMIT"       default:"10"`
	// PurposesLimit is how many print purpose categories are returned.
	PurposesLimit int `envconfig:"PURPOSES_LIMIT"      default:"10"`
	// TrendLength is the number of trailing periods in a trend series.
	TrendLength int `envconfig:"TREND_LENGTH"        default:"7"`
	// OpenSessionWindow counts sessions without an end time as active when they
	// started within this window.
	OpenSessionWindow time.Duration `envconfig:"OPEN_SESSION_WINDOW" default:"12h"`
	// AttendanceTool is the tool whose sessions stand in for studio attendance.
	AttendanceTool string `envconfig:"ATTENDANCE_TOOL"     default:"Hub Login"`
	// FanOutLimit bounds concurrent upstream calls within one request.
	FanOutLimit int `envconfig:"FAN_OUT_LIMIT"       default:"4"`
}

// SchedulerConfig controls background jobs.
type SchedulerConfig struct {
	// Enabled starts the cron scheduler.
	Enabled bool `envconfig:"ENABLED"       default:"true"`
	// WarmSchedule is the cron spec for cache warm-up.
	WarmSchedule string `envconfig:"WARM_SCHEDULE" default:"15 3 * * *"`
	// SweepSchedule is the cron spec for the memory cache sweep.
	SweepSchedule string `envconfig:"SWEEP_SCHEDULE" default:"@every 10m"`
}

// SecurityConfig contains security-related settings including
// rate limiting and CORS configuration.
type SecurityConfig struct {
	// RateLimitRPS is the maximum requests per window per client.
	RateLimitRPS int `envconfig:"RATE_LIMIT_RPS"    default:"100"`
	// RateLimitBurst is the maximum burst size for rate limiting.
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST"  default:"200"`
	// RateLimitWindow is the time window for rate limiting.
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	// AllowedOrigins are the CORS allowed origins.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"   default:"*"`
	// AllowedMethods are the CORS allowed HTTP methods.
	AllowedMethods []string `envconfig:"ALLOWED_METHODS"   default:"GET,POST,OPTIONS"`
	// AllowedHeaders are the CORS allowed headers.
	AllowedHeaders []string `envconfig:"ALLOWED_HEADERS"   default:"*"`
	// AllowCredentials determines if CORS allows credentials.
	AllowCredentials bool `envconfig:"ALLOW_CREDENTIALS" default:"true"`
	// MaxAge is the CORS preflight cache duration in seconds.
	MaxAge int `envconfig:"MAX_AGE"           default:"86400"`
}

// LoggingConfig contains logging configuration including
// log level, format, and output destination.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `envconfig:"LEVEL"              default:"info"`
	// Format is the log output format (json, text).
	Format string `envconfig:"FORMAT"             default:"json"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `envconfig:"OUTPUT"             default:"stdout"`
	// FilePath is the path to the log file for dual output.
	FilePath string `envconfig:"FILE_PATH"`
	// EnableDualOutput writes JSON to FilePath in addition to Output.
	EnableDualOutput bool `envconfig:"ENABLE_DUAL_OUTPUT" default:"false"`
}

// Load reads configuration from environment variables, overlays the YAML policy
// for the current environment and returns a validated Config instance.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	policy, err := loadPolicy(cfg.Environment.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	cfg.Policy = *policy

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate performs validation of all configuration values.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return errors.New("session secret is required")
	}

	if len(c.Session.Secret) < MinSessionSecretLength {
		return fmt.Errorf("session secret must be at least %d characters long", MinSessionSecretLength)
	}

	if c.Server.Port < MinPortNumber || c.Server.Port > MaxPortNumber {
		return errors.New("server port must be between 1 and 65535")
	}

	if c.CAS.Bypass && c.Environment.Environment == Prod {
		return errors.New("CAS bypass mode cannot be enabled in PROD")
	}

	if c.Session.MaxAge < time.Minute {
		return errors.New("session max age must be at least 1 minute")
	}

	if c.Metrics.LeaderboardLimit < 1 || c.Metrics.ReasonsLimit < 1 || c.Metrics.PurposesLimit < 1 {
		return errors.New("metric limits must be positive")
	}

	if c.Metrics.TrendLength < 2 {
		return errors.New("trend length must be at least 2")
	}

	if _, err := time.LoadLocation(c.Metrics.Timezone); err != nil {
		return fmt.Errorf("invalid metrics timezone %q: %w", c.Metrics.Timezone, err)
	}

	switch c.Cache.Backend {
	case CacheBackendAuto, CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}

	switch c.Roles.Backend {
	case RolesBackendStatic:
	case RolesBackendPostgres:
		if !c.IsPostgresDatabaseConfigured() {
			return errors.New("postgres role backend requires POSTGRES_USER and POSTGRES_PASSWORD")
		}
	case RolesBackendMySQL:
		if !c.IsMySQLDatabaseConfigured() {
			return errors.New("mysql role backend requires MYSQL_USER and MYSQL_PASSWORD")
		}
	default:
		return fmt.Errorf("unsupported roles backend: %s", c.Roles.Backend)
	}

	return c.Policy.Validate()
}

// ServerAddr returns the formatted server address string in host:port format.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsTLSEnabled returns true if both TLS certificate and key paths are configured.
func (c *Config) IsTLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

// Location returns the time zone used for period boundaries.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Metrics.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PostgresDatabaseDSN returns the PostgreSQL connection string (Data Source Name).
func (c *Config) PostgresDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s search_path=%s",
		c.PostgresDatabase.Host,
		c.PostgresDatabase.Port,
		c.PostgresDatabase.Database,
		c.PostgresDatabase.User,
		c.PostgresDatabase.Password,
		c.PostgresDatabase.SSLMode,
		c.PostgresDatabase.Schema,
	)
}

// MySQLDSN returns the MySQL connection string (Data Source Name).
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.MySQLDatabase.User,
		c.MySQLDatabase.Password,
		c.MySQLDatabase.Host,
		c.MySQLDatabase.Port,
		c.MySQLDatabase.Database,
	)
}

// IsPostgresDatabaseConfigured returns true if PostgreSQL database user and password are configured.
func (c *Config) IsPostgresDatabaseConfigured() bool {
	return c.PostgresDatabase.User != "" && c.PostgresDatabase.Password != ""
}

// IsMySQLDatabaseConfigured returns true if MySQL database user and password are configured.
func (c *Config) IsMySQLDatabaseConfigured() bool {
	return c.MySQLDatabase.User != "" && c.MySQLDatabase.Password != ""
}

// IsPrintFleetConfigured returns true if the print fleet service account is set.
func (c *Config) IsPrintFleetConfigured() bool {
	return c.PrintFleet.Username != "" && c.PrintFleet.Password != ""
}

// IsToolUsageConfigured returns true if the tool usage credential pair is set.
func (c *Config) IsToolUsageConfigured() bool {
	return c.ToolUsage.OrgKey != "" && c.ToolUsage.OrgID != ""
}
