package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	if cfg.Server.HTTPAddress != ":8080" || cfg.Chat.Buffer != 64 {
		t.Errorf("unexpected defaults: %+v", cfg.Server)
	}
}

func TestConfigValidateServing_RequiresSecret(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")
	cfg := DefaultConfig()
	cfg.Auth.JWTSecret = "short"
	if err := cfg.ValidateServing(); err == nil {
		t.Fatal("expected error for short jwt secret")
	}

	cfg.Auth.JWTSecret = testSecret
	if err := cfg.ValidateServing(); err != nil {
		t.Fatalf("validate serving: %v", err)
	}
}

func TestConfigValidate_RejectsInvalidDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.AccessTokenTTL = "not-a-duration"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid auth.access_token_ttl")
	}

	cfg = DefaultConfig()
	cfg.Auth.LockoutDuration = "-5m"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for negative auth.lockout_duration")
	}
}

func TestConfigValidate_TLSRequiresFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.TLS.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when TLS is enabled without cert_file")
	}
	cfg.Server.TLS.CertFile = "cert.pem"
	cfg.Server.TLS.KeyFile = "key.pem"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
}

func TestConfigValidate_RejectsBadRedisURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chat.RedisURL = "http://localhost:6379"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-redis scheme")
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv(EnvJWTSecret, testSecret)
	t.Setenv(EnvRedisURL, "redis://cache:6379/0")
	t.Setenv(EnvAdminPassword, "bootstrap-pass")

	path := filepath.Join(t.TempDir(), "projectdesk.yaml")
	yaml := `
server:
  http_address: ":9000"
database:
  path: /tmp/pd.db
uploads:
  dir: /tmp/pd-uploads
  max_files: 3
  watch: true
auth:
  access_token_ttl: 30m
  lockout_threshold: 3
chat:
  messages_per_second: 5
  allowed_origins: ["https://app.example.com"]
projects:
  public_listing: true
logging:
  format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.HTTPAddress != ":9000" || cfg.Uploads.MaxFiles != 3 || !cfg.Uploads.Watch {
		t.Errorf("file values not applied: %+v %+v", cfg.Server, cfg.Uploads)
	}
	if cfg.Chat.RedisURL != "redis://cache:6379/0" {
		t.Errorf("redis url = %q", cfg.Chat.RedisURL)
	}
	if cfg.Admin.Password != "bootstrap-pass" || cfg.Admin.Email != "admin@localhost" {
		t.Errorf("admin = %+v", cfg.Admin)
	}
	if err := cfg.ValidateServing(); err != nil {
		t.Fatalf("validate serving: %v", err)
	}

	apiCfg := cfg.APIConfig()
	if apiCfg.AccessTokenTTL != 30*time.Minute {
		t.Errorf("access ttl = %v", apiCfg.AccessTokenTTL)
	}
	if apiCfg.RefreshTokenTTL != 168*time.Hour {
		t.Errorf("refresh ttl = %v", apiCfg.RefreshTokenTTL)
	}
	if apiCfg.LockoutThreshold != 3 || !apiCfg.PublicListing {
		t.Errorf("api config = %+v", apiCfg)
	}
	if apiCfg.Chat.Client.MessagesPerSecond != 5 || apiCfg.Chat.Client.Burst == 0 {
		t.Errorf("chat client = %+v", apiCfg.Chat.Client)
	}
	if len(apiCfg.Chat.AllowedOrigins) != 1 {
		t.Errorf("allowed origins = %v", apiCfg.Chat.AllowedOrigins)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  format: xml\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("err = %v, want logging.format error", err)
	}
}
