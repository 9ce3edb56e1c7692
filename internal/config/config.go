package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration, loaded from environment variables.
type Config struct {
	Environment string

	Server     ServerConfig
	Logging    LoggingConfig
	Scylla     ScyllaConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Clickhouse ClickhouseConfig
	Throttle   ThrottleConfig
	Bucketing  BucketingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers     []string
	DeniedTopic string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

// ThrottleConfig configures the rate-limit core and its surroundings.
type ThrottleConfig struct {
	// Store selects the record store backend: "scylla", "redis" or "memory".
	Store string
	// SweepInterval is how often the background cleanup runs; 0 disables it.
	SweepInterval time.Duration
	// AuditEnabled controls the ClickHouse/Kafka decision audit pipeline.
	AuditEnabled bool
	// AuditBuffer is the in-flight decision queue size before drops.
	AuditBuffer int
}

type BucketingConfig struct {
	EventBuckets int
}

var (
	globalConfig *Config
	loadOnce     sync.Once
)

// LoadConfig reads configuration from the environment. In non-production
// environments a .env file is honored when present.
func LoadConfig() *Config {
	loadOnce.Do(func() {
		env := getEnv("ENVIRONMENT", "development")
		if env != "production" {
			_ = godotenv.Load()
			env = getEnv("ENVIRONMENT", env)
		}

		globalConfig = &Config{
			Environment: env,
			Server: ServerConfig{
				Host:         getEnv("SERVER_HOST", "0.0.0.0"),
				Port:         getEnvInt("SERVER_PORT", 8080),
				TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
				EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
				AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
				Domain:       getEnv("SERVER_DOMAIN", ""),
				CertFile:     getEnv("SERVER_CERT_FILE", ""),
				KeyFile:      getEnv("SERVER_KEY_FILE", ""),
				AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "/var/cache/autocert"),
				Email:        getEnv("SERVER_ACME_EMAIL", ""),
				ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
				IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
			Scylla: ScyllaConfig{
				Nodes:    getEnvList("SCYLLA_NODES", []string{"127.0.0.1:9042"}),
				Keyspace: getEnv("SCYLLA_KEYSPACE", "velvet_galaxy"),
				Username: getEnv("SCYLLA_USERNAME", ""),
				Password: getEnv("SCYLLA_PASSWORD", ""),
			},
			Redis: RedisConfig{
				URL:      getEnv("REDIS_URL", "redis://127.0.0.1:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
				PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
			},
			Kafka: KafkaConfig{
				Brokers:     getEnvList("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
				DeniedTopic: getEnv("KAFKA_DENIED_TOPIC", "throttle.denied"),
			},
			Clickhouse: ClickhouseConfig{
				URL:      getEnv("CLICKHOUSE_URL", "http://127.0.0.1:8123"),
				Username: getEnv("CLICKHOUSE_USERNAME", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
				Database: getEnv("CLICKHOUSE_DATABASE", "velvet_galaxy"),
			},
			Throttle: ThrottleConfig{
				Store:         getEnv("THROTTLE_STORE", defaultStore(env)),
				SweepInterval: getEnvDuration("THROTTLE_SWEEP_INTERVAL", time.Hour),
				AuditEnabled:  getEnvBool("THROTTLE_AUDIT_ENABLED", env == "production"),
				AuditBuffer:   getEnvInt("THROTTLE_AUDIT_BUFFER", 4096),
			},
			Bucketing: BucketingConfig{
				EventBuckets: getEnvInt("BUCKETING_EVENT_BUCKETS", 64),
			},
		}
	})

	return globalConfig
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Throttle.Store {
	case "scylla", "redis", "memory":
	default:
		return fmt.Errorf("invalid THROTTLE_STORE %q (want scylla, redis or memory)", c.Throttle.Store)
	}
	if c.IsProduction() && c.Throttle.Store == "memory" {
		return fmt.Errorf("memory record store is not allowed in production")
	}
	if c.Server.EnableTLS && c.Server.AutoCert && c.Server.Domain == "" {
		return fmt.Errorf("SERVER_DOMAIN is required when autocert is enabled")
	}
	if c.Throttle.SweepInterval < 0 {
		return fmt.Errorf("THROTTLE_SWEEP_INTERVAL must not be negative")
	}
	return nil
}

func defaultStore(env string) string {
	if env == "production" {
		return "scylla"
	}
	return "memory"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
