// Package config handles application configuration.
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

// Config holds all configuration for the application.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Snowflake SnowflakeConfig
	Products  ProductConfig
	Events    EventConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Env      string
	LogLevel string
}

// IsDevelopment returns true if the app is running in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "dev"
}

// IsProduction returns true if the app is running in production mode.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustProxy      bool
	TrustedProxies  []string
}

// Address returns the server address in host:port format.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// SnowflakeConfig holds ID generator configuration.
//
// NodeID is only meaningful when NodeIDSet is true; otherwise the node ID is
// derived from the host name. The range is deliberately not checked here so
// the generator can reject bad values instead of them being clamped.
type SnowflakeConfig struct {
	NodeID       int64
	NodeIDSet    bool
	MaxRetries   int
	MaxClockWait time.Duration
}

// ProductConfig holds product catalogue configuration.
type ProductConfig struct {
	CacheTTL          time.Duration
	LowStockThreshold int
}

// EventConfig holds event stream configuration.
type EventConfig struct {
	Stream      string
	DLQStream   string
	Group       string
	Consumer    string
	MaxAttempts int
	Block       time.Duration
	// ClaimIdle is how long an entry may sit unacknowledged before another
	// consumer takes it over.
	ClaimIdle       time.Duration
	ReclaimInterval time.Duration
}

// RateLimitConfig bounds how many IDs one client may mint.
type RateLimitConfig struct {
	Enabled      bool
	IDsPerSecond float64
	Burst        int
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding values that are already set. Missing files
// are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	// App config
	cfg.App.Env = getEnvOrDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Server config
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", "0.0.0.0")

	port, err := getEnvAsInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = port

	readTimeout, err := getEnvAsDuration("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	cfg.Server.ReadTimeout = readTimeout

	writeTimeout, err := getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	cfg.Server.WriteTimeout = writeTimeout

	shutdownTimeout, err := getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.Server.ShutdownTimeout = shutdownTimeout

	trustProxy, err := getEnvAsBool("SERVER_TRUST_PROXY", false)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_TRUST_PROXY: %w", err)
	}
	cfg.Server.TrustProxy = trustProxy
	cfg.Server.TrustedProxies = getEnvAsList("SERVER_TRUSTED_PROXIES")

	if err := loadDatabase(cfg); err != nil {
		return nil, err
	}
	if err := loadRedis(cfg); err != nil {
		return nil, err
	}
	if err := loadSnowflake(cfg); err != nil {
		return nil, err
	}

	// Product config
	cacheTTL, err := getEnvAsDuration("PRODUCT_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid PRODUCT_CACHE_TTL: %w", err)
	}
	cfg.Products.CacheTTL = cacheTTL

	threshold, err := getEnvAsInt("PRODUCT_LOW_STOCK_THRESHOLD", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid PRODUCT_LOW_STOCK_THRESHOLD: %w", err)
	}
	cfg.Products.LowStockThreshold = threshold

	if err := loadEvents(cfg); err != nil {
		return nil, err
	}
	if err := loadRateLimit(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEvents(cfg *Config) error {
	cfg.Events.Stream = getEnvOrDefault("EVENTS_STREAM", "products.updated")
	cfg.Events.DLQStream = getEnvOrDefault("EVENTS_DLQ_STREAM", cfg.Events.Stream+".dlq")
	cfg.Events.Group = getEnvOrDefault("EVENTS_GROUP", "flakeid")

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "flakeid"
	}
	cfg.Events.Consumer = getEnvOrDefault("EVENTS_CONSUMER", hostname)

	maxAttempts, err := getEnvAsInt("EVENTS_MAX_ATTEMPTS", 3)
	if err != nil {
		return fmt.Errorf("invalid EVENTS_MAX_ATTEMPTS: %w", err)
	}
	cfg.Events.MaxAttempts = maxAttempts

	block, err := getEnvAsDuration("EVENTS_BLOCK", 5*time.Second)
	if err != nil {
		return fmt.Errorf("invalid EVENTS_BLOCK: %w", err)
	}
	cfg.Events.Block = block

	claimIdle, err := getEnvAsDuration("EVENTS_CLAIM_IDLE", time.Minute)
	if err != nil {
		return fmt.Errorf("invalid EVENTS_CLAIM_IDLE: %w", err)
	}
	cfg.Events.ClaimIdle = claimIdle

	reclaimInterval, err := getEnvAsDuration("EVENTS_RECLAIM_INTERVAL", 30*time.Second)
	if err != nil {
		return fmt.Errorf("invalid EVENTS_RECLAIM_INTERVAL: %w", err)
	}
	cfg.Events.ReclaimInterval = reclaimInterval
	return nil
}

func loadRateLimit(cfg *Config) error {
	enabled, err := getEnvAsBool("RATE_LIMIT_ENABLED", false)
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_ENABLED: %w", err)
	}
	cfg.RateLimit.Enabled = enabled

	perSecond := 1000.0
	if raw := os.Getenv("RATE_LIMIT_IDS_PER_SECOND"); raw != "" {
		perSecond, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_IDS_PER_SECOND: %w", err)
		}
	}
	cfg.RateLimit.IDsPerSecond = perSecond

	burst, err := getEnvAsInt("RATE_LIMIT_BURST", 1000)
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	cfg.RateLimit.Burst = burst
	return nil
}

func loadDatabase(cfg *Config) error {
	cfg.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
	dbPort, err := getEnvAsInt("DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort
	cfg.Database.User = getEnvOrDefault("DB_USER", "flakeid")
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", "")
	cfg.Database.DBName = getEnvOrDefault("DB_NAME", "flakeid")
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	maxOpenConns, err := getEnvAsInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	cfg.Database.MaxOpenConns = maxOpenConns

	maxIdleConns, err := getEnvAsInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.Database.MaxIdleConns = maxIdleConns

	connMaxLifetime, err := getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	cfg.Database.ConnMaxLifetime = connMaxLifetime

	autoMigrate, err := getEnvAsBool("DB_AUTO_MIGRATE", true)
	if err != nil {
		return fmt.Errorf("invalid DB_AUTO_MIGRATE: %w", err)
	}
	cfg.Database.AutoMigrate = autoMigrate

	return nil
}

func loadRedis(cfg *Config) error {
	cfg.Redis.Host = getEnvOrDefault("REDIS_HOST", "")
	redisPort, err := getEnvAsInt("REDIS_PORT", 6379)
	if err != nil {
		return fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Port = redisPort
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", "")
	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.Redis.DB = redisDB
	redisPoolSize, err := getEnvAsInt("REDIS_POOL_SIZE", 10)
	if err != nil {
		return fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
	}
	cfg.Redis.PoolSize = redisPoolSize
	return nil
}

func loadSnowflake(cfg *Config) error {
	if raw, ok := os.LookupEnv("SNOWFLAKE_NODE_ID"); ok && raw != "" {
		nodeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SNOWFLAKE_NODE_ID: %w", err)
		}
		cfg.Snowflake.NodeID = nodeID
		cfg.Snowflake.NodeIDSet = true
	}

	maxRetries, err := getEnvAsInt("SNOWFLAKE_MAX_RETRIES", 3)
	if err != nil {
		return fmt.Errorf("invalid SNOWFLAKE_MAX_RETRIES: %w", err)
	}
	cfg.Snowflake.MaxRetries = maxRetries

	maxWait, err := getEnvAsDuration("SNOWFLAKE_MAX_CLOCK_WAIT", 2*time.Second)
	if err != nil {
		return fmt.Errorf("invalid SNOWFLAKE_MAX_CLOCK_WAIT: %w", err)
	}
	cfg.Snowflake.MaxClockWait = maxWait
	return nil
}

// DatabaseEnabled returns true if database configuration is provided.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != "" && c.Database.Password != ""
}

// RedisEnabled returns true if Redis configuration is provided.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// ResolveNodeID returns the configured node ID, or derives one from the host
// name using derive when none is configured.
func (c *Config) ResolveNodeID(derive func() (int64, error)) (int64, error) {
	if c.Snowflake.NodeIDSet {
		return c.Snowflake.NodeID, nil
	}
	nodeID, err := derive()
	if err != nil {
		return 0, fmt.Errorf("failed to derive node ID: %w", err)
	}
	return nodeID, nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as an integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// getEnvAsBool returns the environment variable as a boolean.
func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(valueStr)
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsDuration returns the environment variable as a duration.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, err
	}
	return value, nil
}
