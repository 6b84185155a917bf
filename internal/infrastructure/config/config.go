package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Firestore FirestoreConfig
	Redis     RedisConfig
	Numbering NumberingConfig
	Media     MediaConfig
	Storage   StorageConfig
	Scheduler SchedulerConfig
	HTTP      HTTPConfig
	Session   SessionConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name     string
	Env      string
	Port     string
	Timezone string // IANA zone used for record numbers and monthly reports
}

// Location resolves the configured timezone
func (a AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

// Store drivers
const (
	StoreDriverMemory    = "memory"
	StoreDriverPostgres  = "postgres"
	StoreDriverFirestore = "firestore"
)

// StoreConfig selects the document store backend
type StoreConfig struct {
	Driver string // memory, postgres, firestore
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// FirestoreConfig holds Firestore connection settings
type FirestoreConfig struct {
	ProjectID       string
	DatabaseID      string
	CredentialsFile string // empty = application default credentials
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Numbering strategies
const (
	NumberingStrategyCount = "count"
	NumberingStrategyRedis = "redis"
)

// NumberingConfig selects how the daily record serial is obtained
type NumberingConfig struct {
	Strategy    string        // count, redis
	KeyPrefix   string        // redis key prefix for serial counters
	RedisKeyTTL time.Duration // counters outlive their day by this much
}

// MediaConfig holds comment image processing settings
type MediaConfig struct {
	MaxImageWidth int
	JPEGQuality   int
	MaxImageBytes int64
}

// Object storage drivers. An empty driver disables report archiving.
const (
	StorageDriverNone   = ""
	StorageDriverMemory = "memory"
	StorageDriverS3     = "s3"
	StorageDriverGCS    = "gcs"
)

// StorageConfig holds object storage settings for archived report exports
type StorageConfig struct {
	Driver            string // "", memory, s3, gcs
	Bucket            string
	Prefix            string // key prefix for archived exports
	Endpoint          string // s3 only; any S3-compatible endpoint (MinIO, RustFS)
	Region            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	CredentialsFile   string // gcs only; empty = application default credentials
	PresignExpiration time.Duration
}

// SchedulerConfig holds the report archive schedule. Cron uses the five
// field form and runs in the app timezone; each run archives the previous
// month.
type SchedulerConfig struct {
	Enabled       bool
	Cron          string
	Format        string // csv or xlsx
	Workers       int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	RateLimit        int           // Requests allowed per client per window; 0 disables
	RateLimitWindow  time.Duration
	IdempotencyTTL   time.Duration // How long an Idempotency-Key is remembered
}

// SessionConfig holds editing session settings
type SessionConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool          // Whether to enable OpenTelemetry tracing
	CollectorEndpoint string        // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64       // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string        // Service name for traces
	Insecure          bool          // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool          // Export record operation metrics over OTLP
	MetricsInterval   time.Duration // Metric export interval
	LogsEnabled       bool          // Mirror zap logs to the collector through otelzap
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
}

// ProfilingConfig holds Pyroscope continuous profiling configuration
type ProfilingConfig struct {
	Enabled              bool
	ServerAddress        string   // Pyroscope server, e.g. "http://pyroscope:4040"
	BasicAuthUser        string   // Optional, for hosted Pyroscope
	BasicAuthPassword    string
	ProfileTypes         []string // cpu, alloc_space, inuse_space, goroutines, mutex_count, ...
	MutexProfileFraction int
	BlockProfileRate     int
	SpanProfiles         bool // Link CPU profiles to trace spans
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with KARTE_ prefix (e.g., KARTE_STORE_DRIVER)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("KARTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Port:     v.GetString("app.port"),
			Timezone: v.GetString("app.timezone"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Firestore: FirestoreConfig{
			ProjectID:       v.GetString("firestore.project_id"),
			DatabaseID:      v.GetString("firestore.database_id"),
			CredentialsFile: v.GetString("firestore.credentials_file"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Numbering: NumberingConfig{
			Strategy:    v.GetString("numbering.strategy"),
			KeyPrefix:   v.GetString("numbering.key_prefix"),
			RedisKeyTTL: v.GetDuration("numbering.redis_key_ttl"),
		},
		Media: MediaConfig{
			MaxImageWidth: v.GetInt("media.max_image_width"),
			JPEGQuality:   v.GetInt("media.jpeg_quality"),
			MaxImageBytes: v.GetInt64("media.max_image_bytes"),
		},
		Storage: StorageConfig{
			Driver:            v.GetString("storage.driver"),
			Bucket:            v.GetString("storage.bucket"),
			Prefix:            v.GetString("storage.prefix"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			CredentialsFile:   v.GetString("storage.credentials_file"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			Cron:          v.GetString("scheduler.cron"),
			Format:        v.GetString("scheduler.format"),
			Workers:       v.GetInt("scheduler.workers"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
			RetryAttempts: v.GetInt("scheduler.retry_attempts"),
			RetryDelay:    v.GetDuration("scheduler.retry_delay"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			RateLimit:        v.GetInt("http.rate_limit"),
			RateLimitWindow:  v.GetDuration("http.rate_limit_window"),
			IdempotencyTTL:   v.GetDuration("http.idempotency_ttl"),
		},
		Session: SessionConfig{
			IdleTimeout:   v.GetDuration("session.idle_timeout"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
		},
		Profiling: ProfilingConfig{
			Enabled:              v.GetBool("profiling.enabled"),
			ServerAddress:        v.GetString("profiling.server_address"),
			BasicAuthUser:        v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword:    v.GetString("profiling.basic_auth_password"),
			ProfileTypes:         v.GetStringSlice("profiling.profile_types"),
			MutexProfileFraction: v.GetInt("profiling.mutex_profile_fraction"),
			BlockProfileRate:     v.GetInt("profiling.block_profile_rate"),
			SpanProfiles:         v.GetBool("profiling.span_profiles"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_thresh"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "karte-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "Asia/Tokyo"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverMemory
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "karte"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Firestore.DatabaseID == "" {
		cfg.Firestore.DatabaseID = "(default)"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Numbering.Strategy == "" {
		cfg.Numbering.Strategy = NumberingStrategyCount
	}
	if cfg.Numbering.KeyPrefix == "" {
		cfg.Numbering.KeyPrefix = "karte:serial:"
	}
	if cfg.Numbering.RedisKeyTTL == 0 {
		cfg.Numbering.RedisKeyTTL = 48 * time.Hour
	}
	if cfg.Media.MaxImageWidth == 0 {
		cfg.Media.MaxImageWidth = 1280
	}
	if cfg.Media.JPEGQuality == 0 {
		cfg.Media.JPEGQuality = 80
	}
	if cfg.Media.MaxImageBytes == 0 {
		cfg.Media.MaxImageBytes = 5 << 20
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "reports/"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Scheduler.Cron == "" {
		cfg.Scheduler.Cron = "0 2 1 * *"
	}
	if cfg.Scheduler.Format == "" {
		cfg.Scheduler.Format = "xlsx"
	}
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 2
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 5 * time.Minute
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = 5 * time.Minute
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 20 << 20
	}
	// CORS origins get no wildcard default; cross-origin access must be configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID", "X-Session-ID", "X-Author", "Idempotency-Key"}
	}
	if cfg.HTTP.IdempotencyTTL == 0 {
		cfg.HTTP.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = 2 * time.Hour
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 5 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "karte-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
	if cfg.Profiling.MutexProfileFraction == 0 {
		cfg.Profiling.MutexProfileFraction = 5
	}
	if cfg.Profiling.BlockProfileRate == 0 {
		cfg.Profiling.BlockProfileRate = 5
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("app.timezone %q is not a valid IANA zone: %w", c.App.Timezone, err)
	}

	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverPostgres, StoreDriverFirestore:
	default:
		return fmt.Errorf("store.driver must be one of memory, postgres, firestore, got %q", c.Store.Driver)
	}

	if c.Store.Driver == StoreDriverPostgres {
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be positive")
		}
		if c.Database.MaxIdleConns < 0 {
			return fmt.Errorf("database.max_idle_conns cannot be negative")
		}
		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
				c.Database.MaxIdleConns, c.Database.MaxOpenConns)
		}
	}
	if c.Store.Driver == StoreDriverFirestore && c.Firestore.ProjectID == "" {
		return fmt.Errorf("firestore.project_id is required when store.driver is firestore")
	}

	switch c.Numbering.Strategy {
	case NumberingStrategyCount:
	case NumberingStrategyRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("numbering.strategy=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("numbering.strategy must be count or redis, got %q", c.Numbering.Strategy)
	}

	if c.Media.JPEGQuality < 1 || c.Media.JPEGQuality > 100 {
		return fmt.Errorf("media.jpeg_quality must be between 1 and 100, got %d", c.Media.JPEGQuality)
	}
	if c.Media.MaxImageWidth < 0 {
		return fmt.Errorf("media.max_image_width cannot be negative")
	}

	switch c.Storage.Driver {
	case StorageDriverNone, StorageDriverMemory:
	case StorageDriverS3, StorageDriverGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage.driver is %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver must be empty, memory, s3 or gcs, got %q", c.Storage.Driver)
	}

	if c.Scheduler.Enabled {
		if c.Storage.Driver == StorageDriverNone {
			return fmt.Errorf("scheduler.enabled requires storage.driver to be set")
		}
		if c.Scheduler.Format != "csv" && c.Scheduler.Format != "xlsx" {
			return fmt.Errorf("scheduler.format must be csv or xlsx, got %q", c.Scheduler.Format)
		}
		if c.Scheduler.Workers < 1 {
			return fmt.Errorf("scheduler.workers must be at least 1")
		}
	}

	if c.App.Env == "production" {
		if c.Store.Driver == StoreDriverMemory {
			return fmt.Errorf("store.driver=memory is not allowed in production")
		}
		if c.Store.Driver == StoreDriverPostgres {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
