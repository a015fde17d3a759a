package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Realtime backends.
const (
	RealtimeRedis  = "redis"
	RealtimeNATS   = "nats"
	RealtimeMemory = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	NATS         NATSConfig
	Realtime     RealtimeConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Lifecycle    LifecycleConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	IdempotencyTTL        time.Duration
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN             string
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	MigrationsDir   string
	ConnMaxIdle     time.Duration
	ConnMaxLife     time.Duration
	ConnectRetries  int
	ConnectBackoff  time.Duration
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NATSConfig holds the NATS server URL used by the nats realtime backend.
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
}

// RealtimeConfig selects the change feed backend.
type RealtimeConfig struct {
	Backend       string
	ChannelPrefix string
	BufferSize    int
	Heartbeat     time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	AccessTokenTTLMinutes int
}

// NotificationConfig controls notification listing.
type NotificationConfig struct {
	PageSize int
}

// LifecycleConfig holds the doubt lifecycle windows and sweep settings.
type LifecycleConfig struct {
	SLAHours          int
	ReopenWindowHours int
	AutoCloseHours    int
	SweepInterval     time.Duration
	SweepLockTTL      time.Duration
	SweepBatchSize    int
	EscalationEnabled bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "doubt-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			IdempotencyTTL:        getEnvAsDuration("HTTP_IDEMPOTENCY_TTL", 10*time.Minute),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			ApplicationName: getEnv("POSTGRES_APPLICATION_NAME", getEnv("APP_NAME", "doubt-service")),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdle:     getEnvAsDuration("POSTGRES_CONN_MAX_IDLE", 30*time.Second),
			ConnMaxLife:     getEnvAsDuration("POSTGRES_CONN_MAX_LIFE", 5*time.Minute),
			ConnectRetries:  getEnvAsInt("POSTGRES_CONNECT_RETRIES", 3),
			ConnectBackoff:  getEnvAsDuration("POSTGRES_CONNECT_BACKOFF", 2*time.Second),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			Name:          getEnv("NATS_CLIENT_NAME", "doubt-service"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "doubts"),
		},
		Realtime: RealtimeConfig{
			Backend:       strings.ToLower(getEnv("REALTIME_BACKEND", RealtimeMemory)),
			ChannelPrefix: getEnv("REALTIME_CHANNEL_PREFIX", "doubts"),
			BufferSize:    getEnvAsInt("REALTIME_BUFFER_SIZE", 32),
			Heartbeat:     getEnvAsDuration("REALTIME_HEARTBEAT", 25*time.Second),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:                getEnv("AUTH_ISSUER", ""),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			PageSize: getEnvAsInt("NOTIFY_PAGE_SIZE", 10),
		},
		Lifecycle: LifecycleConfig{
			SLAHours:          getEnvAsInt("LIFECYCLE_SLA_HOURS", 48),
			ReopenWindowHours: getEnvAsInt("LIFECYCLE_REOPEN_WINDOW_HOURS", 48),
			AutoCloseHours:    getEnvAsInt("LIFECYCLE_AUTO_CLOSE_HOURS", 48),
			SweepInterval:     getEnvAsDuration("LIFECYCLE_SWEEP_INTERVAL", 5*time.Minute),
			SweepLockTTL:      getEnvAsDuration("LIFECYCLE_SWEEP_LOCK_TTL", 2*time.Minute),
			SweepBatchSize:    getEnvAsInt("LIFECYCLE_SWEEP_BATCH_SIZE", 200),
			EscalationEnabled: getEnvAsBool("LIFECYCLE_ESCALATION_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	l := c.Lifecycle
	if l.SLAHours <= 0 || l.ReopenWindowHours <= 0 || l.AutoCloseHours <= 0 {
		errs = append(errs, errors.New("lifecycle windows must be positive"))
	}
	if l.SweepInterval <= 0 {
		errs = append(errs, errors.New("LIFECYCLE_SWEEP_INTERVAL must be positive"))
	}
	switch c.Realtime.Backend {
	case RealtimeMemory:
	case RealtimeRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REALTIME_BACKEND=redis requires REDIS_ADDR"))
		}
	case RealtimeNATS:
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("REALTIME_BACKEND=nats requires NATS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REALTIME_BACKEND %q", c.Realtime.Backend))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SLAWindow returns the SLA window as a duration.
func (l LifecycleConfig) SLAWindow() time.Duration {
	return time.Duration(l.SLAHours) * time.Hour
}

// ReopenWindow returns the reopen window as a duration.
func (l LifecycleConfig) ReopenWindow() time.Duration {
	return time.Duration(l.ReopenWindowHours) * time.Hour
}

// AutoCloseAfter returns the auto-close delay as a duration.
func (l LifecycleConfig) AutoCloseAfter() time.Duration {
	return time.Duration(l.AutoCloseHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
