// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvAPIKey supplies the default credential when none is stored.
const EnvAPIKey = "RUNNINGHUB_API_KEY"

type RuntimeConfig struct {
	Dev bool
}

type APIConfig struct {
	BaseURL            string            `yaml:"base_url"`
	APIKey             string            `yaml:"api_key"`
	CreateTimeout      time.Duration     `yaml:"create_timeout"`
	QueryTimeout       time.Duration     `yaml:"query_timeout"`
	UploadTimeout      time.Duration     `yaml:"upload_timeout"`
	BatchUploadTimeout time.Duration     `yaml:"batch_upload_timeout"`
	MaxConcurrent      int               `yaml:"max_concurrent"` // max in-flight calls to the job API
	Endpoints          map[string]string `yaml:"endpoints"`      // kind -> create path
	UploadPath         string            `yaml:"upload_path"`
}

type PollerConfig struct {
	Interval          time.Duration `yaml:"interval"`
	MaxNetworkRetries int           `yaml:"max_network_retries"`
	ResultAttempts    int           `yaml:"result_attempts"`
	ResultDelay       time.Duration `yaml:"result_delay"`
	ResumeInterval    time.Duration `yaml:"resume_interval"`
}

type BatchConfig struct {
	Stagger time.Duration `yaml:"stagger"`
	MaxSize int           `yaml:"max_size"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type RemoteConfig struct {
	Backend       string        `yaml:"backend"` // mongo | postgres | none
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database"`
	PostgresURL   string        `yaml:"postgres_url"`
	Timeout       time.Duration `yaml:"timeout"`
	ReloadLimit   int           `yaml:"reload_limit"`
}

type IdentityConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	AccessKey       string        `yaml:"access_key"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	BatchRateLimit  int           `yaml:"batch_rate_limit"` // batches per batch_rate_window
	BatchRateWindow time.Duration `yaml:"batch_rate_window"`
}

type NotifyConfig struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
}

type ThumbnailConfig struct {
	Enabled    bool   `yaml:"enabled"`
	FFmpegPath string `yaml:"ffmpeg_path"`
}

type Config struct {
	API       APIConfig       `yaml:"api"`
	Poller    PollerConfig    `yaml:"poller"`
	Batch     BatchConfig     `yaml:"batch"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Remote    RemoteConfig    `yaml:"remote"`
	Identity  IdentityConfig  `yaml:"identity"`
	Security  SecurityConfig  `yaml:"security"`
	HTTP      HTTPConfig      `yaml:"http"`
	Notify    NotifyConfig    `yaml:"notify"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path and applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes raw YAML and applies defaults and validation.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if cfg.API.APIKey == "" {
		cfg.API.APIKey = strings.TrimSpace(os.Getenv(EnvAPIKey))
	}

	// Minimal validation
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	switch cfg.Remote.Backend {
	case "none":
	case "mongo":
		if cfg.Remote.MongoURI == "" {
			return nil, errors.New("remote.mongo_uri is required for the mongo backend")
		}
	case "postgres":
		if cfg.Remote.PostgresURL == "" {
			return nil, errors.New("remote.postgres_url is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("remote.backend %q is not supported", cfg.Remote.Backend)
	}
	if n := len(cfg.Security.EncryptionKey); n != 0 && n != 32 {
		return nil, errors.New("security.encryption_key must be 32 bytes")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "https://www.runninghub.cn/openapi/v2"
	}
	c.API.CreateTimeout = orDuration(c.API.CreateTimeout, 30*time.Second)
	c.API.QueryTimeout = orDuration(c.API.QueryTimeout, 15*time.Second)
	c.API.UploadTimeout = orDuration(c.API.UploadTimeout, 30*time.Second)
	c.API.BatchUploadTimeout = orDuration(c.API.BatchUploadTimeout, 60*time.Second)
	if c.API.MaxConcurrent <= 0 {
		c.API.MaxConcurrent = 5
	}
	if c.API.UploadPath == "" {
		c.API.UploadPath = "/media/upload"
	}

	c.Poller.Interval = orDuration(c.Poller.Interval, 5*time.Second)
	if c.Poller.MaxNetworkRetries <= 0 {
		c.Poller.MaxNetworkRetries = 3
	}
	if c.Poller.ResultAttempts <= 0 {
		c.Poller.ResultAttempts = 10
	}
	c.Poller.ResultDelay = orDuration(c.Poller.ResultDelay, 3*time.Second)
	c.Poller.ResumeInterval = orDuration(c.Poller.ResumeInterval, time.Minute)

	c.Batch.Stagger = orDuration(c.Batch.Stagger, time.Second)
	if c.Batch.MaxSize <= 0 {
		c.Batch.MaxSize = 10
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "genmedia"
	}

	if c.Remote.Backend == "" {
		c.Remote.Backend = "none"
	}
	if c.Remote.MongoDatabase == "" {
		c.Remote.MongoDatabase = "genmedia"
	}
	c.Remote.Timeout = orDuration(c.Remote.Timeout, 10*time.Second)
	if c.Remote.ReloadLimit <= 0 {
		c.Remote.ReloadLimit = 100
	}

	c.Identity.TTL = orDuration(c.Identity.TTL, 365*24*time.Hour)

	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	c.HTTP.RequestTimeout = orDuration(c.HTTP.RequestTimeout, 90*time.Second)
	if c.HTTP.BatchRateLimit <= 0 {
		c.HTTP.BatchRateLimit = 6
	}
	c.HTTP.BatchRateWindow = orDuration(c.HTTP.BatchRateWindow, time.Minute)

	if c.Thumbnail.FFmpegPath == "" {
		c.Thumbnail.FFmpegPath = "ffmpeg"
	}
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
