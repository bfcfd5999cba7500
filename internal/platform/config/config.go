package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Service names resolved through the locator.
const (
	ResourceService     = "workflow-service"
	IdentityService     = "user-management-service"
	NotificationService = "notification-service"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string `env:"RNT_ADDR" envDefault:":5000"`
	ServiceName string `env:"RNT_SERVICE_NAME" envDefault:"renewal-transfer-service"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type AuthConfig struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER"`
}

// DatabaseConfig holds Postgres settings. An empty URL selects the in-memory stores.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	RunMigrations   bool          `env:"DB_RUN_MIGRATIONS" envDefault:"true"`
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	LocatorTTL   time.Duration `env:"LOCATOR_CACHE_TTL" envDefault:"30s"`
}

type LocatorConfig struct {
	EurekaURL string `env:"EUREKA_URL"`
	// ServiceURLs is a comma separated list of name=url pairs.
	ServiceURLs string `env:"SERVICE_URLS"`
}

type UpstreamConfig struct {
	Timeout                 time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"8s"`
	RateLimit               float64       `env:"UPSTREAM_RATE_LIMIT" envDefault:"50"`
	RateBurst               int           `env:"UPSTREAM_RATE_BURST" envDefault:"10"`
	BreakerFailureThreshold int           `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerSuccessThreshold int           `env:"BREAKER_SUCCESS_THRESHOLD" envDefault:"3"`
	BreakerCooldown         time.Duration `env:"BREAKER_COOLDOWN" envDefault:"10s"`
}

type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	NotificationTopic string   `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"workflow.notifications"`
	CreateTopic       bool     `env:"KAFKA_CREATE_TOPIC" envDefault:"false"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
}

type OutboxConfig struct {
	Enabled         bool          `env:"OUTBOX_RELAY_ENABLED" envDefault:"true"`
	PollInterval    time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	BatchSize       int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	LockTTL         time.Duration `env:"OUTBOX_LOCK_TTL" envDefault:"60s"`
	MaxAttempts     int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"25"`
	MaxBackoff      time.Duration `env:"OUTBOX_MAX_BACKOFF" envDefault:"60s"`
	Jitter          time.Duration `env:"OUTBOX_JITTER" envDefault:"200ms"`
	DispatchTimeout time.Duration `env:"OUTBOX_DISPATCH_TIMEOUT" envDefault:"30s"`
	LastErrorBytes  int           `env:"OUTBOX_LAST_ERROR_MAX_BYTES" envDefault:"2048"`
}

// Config is the full process configuration.
type Config struct {
	Server   Server
	Auth     AuthConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Locator  LocatorConfig
	Upstream UpstreamConfig
	Kafka    KafkaConfig
	Outbox   OutboxConfig
}

// LoadEnvFiles loads any of the given dotenv files that exist. Variables already
// present in the environment win.
func LoadEnvFiles(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files then parses the environment.
func Load() (*Config, error) {
	if _, err := LoadEnvFiles(".env", ".env.local"); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the process environment without touching dotenv files.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.Outbox.MaxAttempts <= 0 {
		errs = append(errs, errors.New("OUTBOX_MAX_ATTEMPTS must be positive"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}
	if _, err := c.Locator.StaticURLs(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StaticURLs parses SERVICE_URLS into a name to base URL map.
func (l LocatorConfig) StaticURLs() (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(l.ServiceURLs) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(l.ServiceURLs, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		name, url = strings.TrimSpace(name), strings.TrimRight(strings.TrimSpace(url), "/")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("SERVICE_URLS: malformed entry %q", pair)
		}
		out[name] = url
	}
	return out, nil
}
