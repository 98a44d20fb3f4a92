// Package main provides the projectdesk server CLI.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/projectdesk/internal/api"
	"github.com/good-yellow-bee/projectdesk/internal/api/chats"
	"github.com/good-yellow-bee/projectdesk/internal/chat"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
)

// Environment variables that override the config file.
const (
	EnvJWTSecret     = "PROJECTDESK_JWT_SECRET"
	EnvRedisURL      = "PROJECTDESK_REDIS_URL"
	EnvSentryDSN     = "SENTRY_DSN"
	EnvAdminPassword = "PROJECTDESK_ADMIN_PASSWORD"
)

// minJWTSecretLength is the shortest accepted signing secret, in bytes.
const minJWTSecretLength = 32

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Auth     AuthConfig     `yaml:"auth"`
	Chat     ChatConfig     `yaml:"chat"`
	Projects ProjectsConfig `yaml:"projects"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sentry   SentryConfig   `yaml:"sentry"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Admin    AdminConfig    `yaml:"admin"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	HTTPAddress string    `yaml:"http_address"` // default :8080
	TLS         TLSConfig `yaml:"tls"`
}

// TLSConfig contains HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// UploadsConfig controls the on-disk upload tree.
type UploadsConfig struct {
	Dir      string `yaml:"dir"`
	MaxFiles int    `yaml:"max_files"`
	MaxBytes int64  `yaml:"max_bytes"`
	// Watch reports files removed from disk behind the server's back.
	Watch bool `yaml:"watch"`
}

// AuthConfig holds token and login protection settings. Durations use
// Go syntax ("1h", "15m").
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	AccessTokenTTL   string `yaml:"access_token_ttl"`
	RefreshTokenTTL  string `yaml:"refresh_token_ttl"`
	LockoutThreshold int    `yaml:"lockout_threshold"`
	LockoutDuration  string `yaml:"lockout_duration"`
	RateLimitPerIP   int    `yaml:"rate_limit_per_ip"`
	RateLimitPerUser int    `yaml:"rate_limit_per_user"`
}

// ChatConfig holds realtime settings.
type ChatConfig struct {
	RedisURL          string   `yaml:"redis_url"`
	Buffer            int      `yaml:"buffer"`
	MessagesPerSecond float64  `yaml:"messages_per_second"`
	Burst             int      `yaml:"burst"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
}

// ProjectsConfig holds project listing policy.
type ProjectsConfig struct {
	PublicListing bool `yaml:"public_listing"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// AdminConfig describes the bootstrap administrator.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"-"` // env only
}

// LoadConfig loads configuration from a YAML file, then applies
// environment overrides, defaults and validation.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg.finish()
}

// DefaultConfig returns a configuration with default values and
// environment overrides applied. It is not validated.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.setDefaults()
	return cfg
}

func (c *Config) finish() (*Config, error) {
	c.applyEnv()
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Chat.RedisURL = v
	}
	if v := os.Getenv(EnvSentryDSN); v != "" {
		c.Sentry.DSN = v
	}
	if v := os.Getenv(EnvAdminPassword); v != "" {
		c.Admin.Password = v
	}
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/projectdesk.db"
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Uploads.MaxFiles == 0 {
		c.Uploads.MaxFiles = collab.DefaultMaxFiles
	}
	if c.Uploads.MaxBytes == 0 {
		c.Uploads.MaxBytes = 50 << 20
	}
	if c.Auth.AccessTokenTTL == "" {
		c.Auth.AccessTokenTTL = "1h"
	}
	if c.Auth.RefreshTokenTTL == "" {
		c.Auth.RefreshTokenTTL = "168h"
	}
	if c.Auth.LockoutDuration == "" {
		c.Auth.LockoutDuration = "15m"
	}
	if c.Chat.Buffer == 0 {
		c.Chat.Buffer = 64
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = "production"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Admin.Email == "" {
		c.Admin.Email = "admin@localhost"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads.dir is required")
	}
	if c.Uploads.MaxFiles < 0 || c.Uploads.MaxBytes < 0 {
		return fmt.Errorf("uploads.max_files and uploads.max_bytes must not be negative")
	}
	for name, value := range map[string]string{
		"auth.access_token_ttl":  c.Auth.AccessTokenTTL,
		"auth.refresh_token_ttl": c.Auth.RefreshTokenTTL,
		"auth.lockout_duration":  c.Auth.LockoutDuration,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Chat.Buffer < 1 {
		return fmt.Errorf("chat.buffer must be at least 1")
	}
	if c.Chat.RedisURL != "" && !strings.HasPrefix(c.Chat.RedisURL, "redis://") && !strings.HasPrefix(c.Chat.RedisURL, "rediss://") {
		return fmt.Errorf("chat.redis_url must use redis:// or rediss://")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	return nil
}

// ValidateServing adds the checks that only matter when serving HTTP.
func (c *Config) ValidateServing() error {
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret (or %s) must be at least %d bytes", EnvJWTSecret, minJWTSecretLength)
	}
	return nil
}

// APIConfig converts the file configuration into server settings. It
// assumes Validate has passed.
func (c *Config) APIConfig() *api.Config {
	accessTTL, _ := time.ParseDuration(c.Auth.AccessTokenTTL)
	refreshTTL, _ := time.ParseDuration(c.Auth.RefreshTokenTTL)
	lockout, _ := time.ParseDuration(c.Auth.LockoutDuration)

	client := chat.DefaultClientConfig()
	if c.Chat.MessagesPerSecond > 0 {
		client.MessagesPerSecond = c.Chat.MessagesPerSecond
	}
	if c.Chat.Burst > 0 {
		client.Burst = c.Chat.Burst
	}
	chatCfg := chats.DefaultConfig()
	chatCfg.Client = client
	chatCfg.AllowedOrigins = c.Chat.AllowedOrigins

	return &api.Config{
		Address:          c.Server.HTTPAddress,
		JWTSecret:        []byte(c.Auth.JWTSecret),
		HTTPTLSEnabled:   c.Server.TLS.Enabled,
		HTTPTLSCertFile:  c.Server.TLS.CertFile,
		HTTPTLSKeyFile:   c.Server.TLS.KeyFile,
		AccessTokenTTL:   accessTTL,
		RefreshTokenTTL:  refreshTTL,
		RateLimitPerIP:   c.Auth.RateLimitPerIP,
		RateLimitPerUser: c.Auth.RateLimitPerUser,
		LockoutThreshold: c.Auth.LockoutThreshold,
		LockoutDuration:  lockout,
		MaxUploadFiles:   c.Uploads.MaxFiles,
		MaxUploadBytes:   c.Uploads.MaxBytes,
		PublicListing:    c.Projects.PublicListing,
		Chat:             chatCfg,
		Verbose:          c.Verbose,
	}
}
