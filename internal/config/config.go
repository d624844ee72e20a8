// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Mode     string  `yaml:"mode"` // polling | webhook (future)
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`

	RateLimit       int           `yaml:"rate_limit"`        // messages per window per user
	RateLimitWindow time.Duration `yaml:"rate_limit_window"` // fixed window size
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type WebConfig struct {
	Port      int    `yaml:"port"`
	BaseURL   string `yaml:"base_url"` // public URL, used as the IndieAuth client_id
	AdminKey  string `yaml:"admin_key"`
	JWTSecret string `yaml:"jwt_secret"`

	SessionCookie string        `yaml:"session_cookie"` // admin JWT cookie name
	SessionTTL    time.Duration `yaml:"session_ttl"`    // admin JWT lifetime
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // idle dialog expiry
}

type IndieAuthConfig struct {
	ClientID    string        `yaml:"client_id"`
	RedirectURI string        `yaml:"redirect_uri"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Web       WebConfig       `yaml:"web"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	IndieAuth IndieAuthConfig `yaml:"indieauth"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.RateLimit <= 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Bot.RateLimitWindow <= 0 {
		cfg.Bot.RateLimitWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.SessionCookie == "" {
		cfg.Web.SessionCookie = "admin_session"
	}
	if cfg.Web.SessionTTL <= 0 {
		cfg.Web.SessionTTL = 30 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.IndieAuth.HTTPTimeout <= 0 {
		cfg.IndieAuth.HTTPTimeout = 30 * time.Second
	}
	if cfg.IndieAuth.ClientID == "" {
		cfg.IndieAuth.ClientID = cfg.Web.BaseURL
	}
	if cfg.IndieAuth.RedirectURI == "" && cfg.Web.BaseURL != "" {
		cfg.IndieAuth.RedirectURI = cfg.Web.BaseURL + "/auth"
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.IndieAuth.ClientID == "" {
		return nil, errors.New("indieauth.client_id or web.base_url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
