package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Env      string   `yaml:"-"`
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Session  Session  `yaml:"session"`
	Quote    Quote    `yaml:"quote"`
	Ledger   Ledger   `yaml:"ledger"`
}

type Server struct {
	Address         string        `yaml:"address" validate:"nonzero"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFileName     string        `yaml:"log_file_name"`
	LogMaxSize      int           `yaml:"log_max_size"`
	LogMaxBackups   int           `yaml:"log_max_backups"`
	LogMaxAge       int           `yaml:"log_max_age"`
}

type Database struct {
	Driver          string        `yaml:"driver" validate:"regexp=^(postgres|sqlite)$"`
	DSN             string        `yaml:"dsn" validate:"nonzero"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Redis is optional: an empty Address disables the quote cache and the redis session store.
type Redis struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Session struct {
	Store      string        `yaml:"store" validate:"regexp=^(memory|redis)$"`
	Secret     string        `yaml:"secret"`
	CookieName string        `yaml:"cookie_name" validate:"nonzero"`
	Secure     bool          `yaml:"secure"`
	TTL        time.Duration `yaml:"ttl"`
}

type Quote struct {
	Provider         string        `yaml:"provider" validate:"regexp=^(alphavantage|static)$"`
	APIKey           string        `yaml:"api_key" validate:"nonzero"`
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

type Ledger struct {
	StartingCash string `yaml:"starting_cash" validate:"nonzero"`
}

// Default returns the configuration used when neither a file nor the environment sets a value.
func Default() *Config {
	return &Config{
		Server: Server{
			Address:         ":8080",
			ShutdownTimeout: 10 * time.Second,
			LogLevel:        "info",
			LogMaxSize:      100,
			LogMaxBackups:   5,
			LogMaxAge:       30,
		},
		Database: Database{
			Driver:          "sqlite",
			DSN:             "finance.db",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Session: Session{
			Store:      "memory",
			CookieName: "session",
			TTL:        24 * time.Hour,
		},
		Quote: Quote{
			Provider:         "alphavantage",
			BaseURL:          "https://www.alphavantage.co/query",
			Timeout:          5 * time.Second,
			CacheTTL:         5 * time.Minute,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Ledger: Ledger{StartingCash: "10000.00"},
	}
}

// Load reads .env, then <dir>/<GO_ENV>/conf.yaml if present, then environment overrides,
// and validates the result.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	cfg.Env = GetEnv()

	path := filepath.Join(dir, cfg.Env, "conf.yaml")
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.StartingCash(); err != nil {
		return err
	}
	if c.Session.Store == "redis" && c.Redis.Address == "" {
		return errors.New("invalid config: session store redis requires redis address")
	}
	return nil
}

// StartingCash is the balance given to newly registered users.
func (c *Config) StartingCash() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Ledger.StartingCash)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid config: starting cash %q: %w", c.Ledger.StartingCash, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid config: starting cash %q is negative", c.Ledger.StartingCash)
	}
	return d, nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Quote.APIKey = mask(c.Quote.APIKey)
	c.Session.Secret = mask(c.Session.Secret)
	c.Redis.Password = mask(c.Redis.Password)
	return c
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("PORT", &c.Server.Address)
	if p := c.Server.Address; p != "" && p[0] != ':' {
		if _, err := strconv.Atoi(p); err == nil {
			c.Server.Address = ":" + p
		}
	}
	setString("LOG_LEVEL", &c.Server.LogLevel)
	setString("LOG_FILE", &c.Server.LogFileName)
	setString("DB_DRIVER", &c.Database.Driver)
	setString("DATABASE_URL", &c.Database.DSN)
	setString("REDIS_ADDR", &c.Redis.Address)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.Redis.DB = n
	}
	setString("SESSION_STORE", &c.Session.Store)
	setString("SESSION_SECRET", &c.Session.Secret)
	setString("API_KEY", &c.Quote.APIKey)
	setString("QUOTE_PROVIDER", &c.Quote.Provider)
	setString("STARTING_CASH", &c.Ledger.StartingCash)
	return nil
}

func GetEnv() string {
	e := os.Getenv("GO_ENV")
	if len(e) == 0 {
		return "dev"
	}
	return e
}
