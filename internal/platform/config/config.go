package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	Server     Server
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Expiration ExpirationConfig
	LogLevel   string

	// Warnings lists values that failed to parse and fell back to defaults.
	Warnings []string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures Postgres. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	Migrate         bool
	Seed            bool
}

// RedisConfig configures the optional Redis client. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional expiration notification producer.
// No brokers disables it.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
	ProduceTimeout    time.Duration
}

// ExpirationConfig configures the policy expiration monitor.
type ExpirationConfig struct {
	Enabled       bool
	CheckInterval time.Duration
	// Window is the freshness window after a policy's end date during which
	// its expiration is recorded. The upper bound is exclusive.
	Window      time.Duration
	PassTimeout time.Duration
	LeaseKey    string
	LeaseTTL    time.Duration
}

const (
	DefaultCheckInterval = 30 * time.Minute
	DefaultWindow        = 24 * time.Hour
	DefaultPassTimeout   = 2 * time.Minute
)

// Enabled reports whether Kafka notifications are configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// FromEnv builds the configuration from environment variables, loading a
// .env file first when one exists so main stays lean.
func FromEnv() Config {
	var warnings []string
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("load .env: %v", err))
	}
	env := envReader{lookup: os.LookupEnv, warnings: warnings}
	return env.build()
}

// FromLookup builds the configuration from an arbitrary key lookup.
func FromLookup(lookup func(string) (string, bool)) Config {
	env := envReader{lookup: lookup}
	return env.build()
}

type envReader struct {
	lookup   func(string) (string, bool)
	warnings []string
}

func (e *envReader) build() Config {
	cfg := Config{
		Server: Server{
			Addr:            e.str("CARINSURANCE_ADDR", ":8080"),
			ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.int("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.int("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectTimeout:  e.duration("DATABASE_CONNECT_TIMEOUT", 5*time.Second),
			Migrate:         e.bool("DATABASE_MIGRATE", true),
			Seed:            e.bool("SEED_DATA", false),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 1),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           e.list("KAFKA_BROKERS"),
			Topic:             e.str("KAFKA_EXPIRATION_TOPIC", "policy.expirations"),
			Partitions:        int32(e.int("KAFKA_TOPIC_PARTITIONS", 1)),
			ReplicationFactor: int16(e.int("KAFKA_TOPIC_REPLICATION", 1)),
			ProduceTimeout:    e.duration("KAFKA_PRODUCE_TIMEOUT", 10*time.Second),
		},
		Expiration: ExpirationConfig{
			Enabled:       e.bool("EXPIRATION_MONITOR_ENABLED", true),
			CheckInterval: e.duration("EXPIRATION_CHECK_INTERVAL", DefaultCheckInterval),
			Window:        e.duration("EXPIRATION_WINDOW", DefaultWindow),
			PassTimeout:   e.duration("EXPIRATION_PASS_TIMEOUT", DefaultPassTimeout),
			LeaseKey:      e.str("EXPIRATION_LEASE_KEY", "carinsurance:expiration-monitor"),
			LeaseTTL:      e.duration("EXPIRATION_LEASE_TTL", 5*time.Minute),
		},
		LogLevel: e.str("LOG_LEVEL", "info"),
	}
	if exp := cfg.Expiration; exp.LeaseTTL < exp.PassTimeout {
		e.warnings = append(e.warnings, fmt.Sprintf(
			"EXPIRATION_LEASE_TTL=%s is shorter than EXPIRATION_PASS_TIMEOUT=%s; the lease may expire mid-pass",
			exp.LeaseTTL, exp.PassTimeout))
	}
	cfg.Warnings = e.warnings
	return cfg
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) list(key string) []string {
	raw := e.str(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *envReader) int(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		e.warnings = append(e.warnings, fmt.Sprintf("%s=%q is not a non-negative integer, using %d", key, raw, def))
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.warnings = append(e.warnings, fmt.Sprintf("%s=%q is not a boolean, using %t", key, raw, def))
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		e.warnings = append(e.warnings, fmt.Sprintf("%s=%q is not a positive duration, using %s", key, raw, def))
		return def
	}
	return d
}
