package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	SessionDriverStore = "store"
	SessionDriverRedis = "redis"

	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"

	minSecretLength = 32
)

// Config holds all application configuration.
type Config struct {
	Env    string       `yaml:"env"`
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Store  StoreConfig  `yaml:"store"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP and gRPC listener settings.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	SecureCookies   bool          `yaml:"secure_cookies"`
}

// AuthConfig holds token, hashing and session settings.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	Issuer        string        `yaml:"issuer"`
	Hasher        string        `yaml:"hasher"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	StoreTimeout  time.Duration `yaml:"store_timeout"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// StoreConfig selects and tunes persistence.
type StoreConfig struct {
	Driver          string        `yaml:"driver"`
	SessionDriver   string        `yaml:"session_driver"`
	DatabaseURL     string        `yaml:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

// RedisConfig is used when sessions live in Redis.
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// LogConfig controls the shared logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used before any file or environment is applied.
func Default() Config {
	return Config{
		Env: "development",
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 20 * time.Second,
			MaxBodyBytes:    1 << 20,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimitRPS:    5,
			RateLimitBurst:  10,
		},
		Auth: AuthConfig{
			Issuer:        "agentdeck",
			Hasher:        HasherBcrypt,
			BcryptCost:    12,
			StoreTimeout:  5 * time.Second,
			SweepSchedule: "@hourly",
		},
		Store: StoreConfig{
			Driver:          StoreDriverPostgres,
			SessionDriver:   SessionDriverStore,
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 15 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env files (development only), then the YAML file named by
// CONFIG_FILE, then environment variables, and validates the result.
func Load(envFiles ...string) (Config, error) {
	if getEnv("APP_ENV", "development") == "development" {
		if len(envFiles) == 0 {
			envFiles = []string{".env"}
		}
		for _, f := range envFiles {
			_ = godotenv.Load(f)
		}
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var e envReader
	c.Env = e.str("APP_ENV", c.Env)

	c.Server.HTTPAddr = e.str("HTTP_ADDR", c.Server.HTTPAddr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("HTTP_ADDR") == "" {
		c.Server.HTTPAddr = ":" + port
	}
	c.Server.GRPCAddr = e.str("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.ReadTimeout = e.duration("HTTP_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = e.duration("HTTP_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = e.duration("HTTP_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = e.duration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.MaxBodyBytes = int64(e.integer("MAX_BODY_BYTES", int(c.Server.MaxBodyBytes)))
	if origins := os.Getenv("CORS_ORIGIN"); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}
	c.Server.RateLimitRPS = e.float("RATE_LIMIT_RPS", c.Server.RateLimitRPS)
	c.Server.RateLimitBurst = e.integer("RATE_LIMIT_BURST", c.Server.RateLimitBurst)
	c.Server.SecureCookies = e.boolean("COOKIE_SECURE", c.Server.SecureCookies)

	c.Auth.JWTSecret = e.str("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Issuer = e.str("JWT_ISSUER", c.Auth.Issuer)
	c.Auth.Hasher = strings.ToLower(e.str("PASSWORD_HASHER", c.Auth.Hasher))
	c.Auth.BcryptCost = e.integer("BCRYPT_COST", c.Auth.BcryptCost)
	c.Auth.StoreTimeout = e.duration("STORE_TIMEOUT", c.Auth.StoreTimeout)
	c.Auth.SweepSchedule = e.str("SESSION_SWEEP_SCHEDULE", c.Auth.SweepSchedule)

	c.Store.Driver = strings.ToLower(e.str("STORE_DRIVER", c.Store.Driver))
	c.Store.SessionDriver = strings.ToLower(e.str("SESSION_DRIVER", c.Store.SessionDriver))
	c.Store.DatabaseURL = e.str("DATABASE_URL", c.Store.DatabaseURL)
	c.Store.MaxOpenConns = e.integer("DB_MAX_OPEN_CONNS", c.Store.MaxOpenConns)
	c.Store.MaxIdleConns = e.integer("DB_MAX_IDLE_CONNS", c.Store.MaxIdleConns)
	c.Store.ConnMaxLifetime = e.duration("DB_CONN_MAX_LIFETIME", c.Store.ConnMaxLifetime)
	c.Store.ConnMaxIdleTime = e.duration("DB_CONN_MAX_IDLE_TIME", c.Store.ConnMaxIdleTime)
	c.Store.MigrateOnStart = e.boolean("MIGRATE_ON_START", c.Store.MigrateOnStart)

	c.Redis.URL = e.str("REDIS_URL", c.Redis.URL)
	c.Redis.Password = e.str("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = e.integer("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = e.integer("REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.MaxRetries = e.integer("REDIS_MAX_RETRIES", c.Redis.MaxRetries)

	c.Log.Level = e.str("LOG_LEVEL", c.Log.Level)
	c.Log.Format = e.str("LOG_FORMAT", c.Log.Format)

	return errors.Join(e.errs...)
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.Server.GRPCAddr != "" && c.Server.GRPCAddr == c.Server.HTTPAddr {
		errs = append(errs, errors.New("http and grpc addresses must differ"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if c.Auth.StoreTimeout <= 0 {
		errs = append(errs, errors.New("store timeout must be positive"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt cost %d out of range 4..31", c.Auth.BcryptCost))
	}
	switch c.Auth.Hasher {
	case HasherBcrypt, HasherArgon2id:
	default:
		errs = append(errs, fmt.Errorf("invalid password hasher: %q (must be bcrypt or argon2id)", c.Auth.Hasher))
	}
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreDriverMemory:
		if c.Env == "production" {
			errs = append(errs, errors.New("memory store is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid store driver: %q (must be postgres or memory)", c.Store.Driver))
	}
	switch c.Store.SessionDriver {
	case SessionDriverStore:
	case SessionDriverRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for redis sessions"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid session driver: %q (must be store or redis)", c.Store.SessionDriver))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid log format: %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// envReader reads typed environment variables and remembers malformed ones.
type envReader struct {
	errs []error
}

func (e *envReader) str(key, def string) string {
	return getEnv(key, def)
}

func (e *envReader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *envReader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
