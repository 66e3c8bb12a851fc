package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

var envKeys = []string{
	"APP_ENV", "CONFIG_FILE", "HTTP_ADDR", "PORT", "GRPC_ADDR", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT",
	"HTTP_IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT", "MAX_BODY_BYTES", "CORS_ORIGIN", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"COOKIE_SECURE", "JWT_SECRET", "JWT_ISSUER", "PASSWORD_HASHER", "BCRYPT_COST", "STORE_TIMEOUT", "SESSION_SWEEP_SCHEDULE",
	"STORE_DRIVER", "SESSION_DRIVER", "DATABASE_URL", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
	"DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME", "MIGRATE_ON_START", "REDIS_URL", "REDIS_PASSWORD",
	"REDIS_DB", "REDIS_POOL_SIZE", "REDIS_MAX_RETRIES", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func noDotenv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("DATABASE_URL", "postgres://localhost/agents")
	t.Setenv("PORT", "8181")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("CORS_ORIGIN", "https://app.example.com, https://admin.example.com")
	t.Setenv("SESSION_DRIVER", "Redis")
	t.Setenv("MIGRATE_ON_START", "true")
	t.Setenv("PASSWORD_HASHER", "Argon2id")

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)
	assert.Equal(t, ":8181", cfg.Server.HTTPAddr)
	assert.Equal(t, 2*time.Second, cfg.Auth.StoreTimeout)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, SessionDriverRedis, cfg.Store.SessionDriver)
	assert.True(t, cfg.Store.MigrateOnStart)
	assert.Equal(t, "@hourly", cfg.Auth.SweepSchedule)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, HasherArgon2id, cfg.Auth.Hasher)
}

func TestLoadDotenvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET="+secret+"\nSTORE_DRIVER=memory\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, secret, cfg.Auth.JWTSecret)
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_addr: ":7000"
  cors_origins: ["https://yaml.example.com"]
auth:
  jwt_secret: "`+secret+`"
  store_timeout: 3s
store:
  driver: memory
log:
  level: debug
  format: text
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"https://yaml.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.Auth.StoreTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Server.GRPCAddr, "defaults survive a partial file")
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("STORE_TIMEOUT", "soon")

	_, err := Load(noDotenv(t))
	assert.ErrorContains(t, err, "STORE_TIMEOUT")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Auth.JWTSecret = secret
		cfg.Store.DatabaseURL = "postgres://localhost/agents"
		return cfg
	}
	base := valid()
	require.NoError(t, base.Validate())

	cases := map[string]func(*Config){
		"short secret":        func(c *Config) { c.Auth.JWTSecret = "short" },
		"missing dsn":         func(c *Config) { c.Store.DatabaseURL = "" },
		"unknown store":       func(c *Config) { c.Store.Driver = "sqlite" },
		"unknown sessions":    func(c *Config) { c.Store.SessionDriver = "memcached" },
		"memory in prod":      func(c *Config) { c.Store.Driver = StoreDriverMemory; c.Env = "production" },
		"zero timeout":        func(c *Config) { c.Auth.StoreTimeout = 0 },
		"same ports":          func(c *Config) { c.Server.GRPCAddr = c.Server.HTTPAddr },
		"bad bcrypt cost":     func(c *Config) { c.Auth.BcryptCost = 40 },
		"unknown hasher":      func(c *Config) { c.Auth.Hasher = "md5" },
		"bad log format":      func(c *Config) { c.Log.Format = "xml" },
		"redis without url":   func(c *Config) { c.Store.SessionDriver = SessionDriverRedis; c.Redis.URL = "" },
		"negative rate limit": func(c *Config) { c.Server.RateLimitRPS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
