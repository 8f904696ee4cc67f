package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
node:
  server_id: "test-node"
redis:
  addr: "localhost:6379"
database:
  path: "/tmp/test-audit.db"
  wal_mode: true
  busy_timeout: 5
dispatch:
  max_await_seconds: 30
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Node.ServerID != "test-node" {
		t.Errorf("Node.ServerID = %q, want %q", cfg.Node.ServerID, "test-node")
	}

	if cfg.Database.Path != "/tmp/test-audit.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test-audit.db")
	}

	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "localhost:6379")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
node:
  server_id: ""
redis:
  addr: "localhost:6379"
dispatch:
  max_await_seconds: 30
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty node.server_id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Node:     NodeConfig{ServerID: "node-001"},
			Redis:    RedisConfig{Addr: "localhost:6379"},
			Dispatch: DispatchConfig{MaxAwaitSeconds: 30},
			Database: DatabaseConfig{Path: "/data/audit.db"},
			Security: SecurityConfig{Audit: AuditConfig{Enabled: true}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing server id", mutate: func(c *Config) { c.Node.ServerID = "" }, wantErr: true},
		{name: "missing redis addr", mutate: func(c *Config) { c.Redis.Addr = "" }, wantErr: true},
		{name: "non-positive await seconds", mutate: func(c *Config) { c.Dispatch.MaxAwaitSeconds = 0 }, wantErr: true},
		{name: "audit enabled without path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDispatchConfig_Durations(t *testing.T) {
	cfg := DispatchConfig{
		MaxAwaitSeconds:          30,
		SemaphoreGraceSeconds:    10,
		AliveCheckTimeoutSeconds: 3,
	}

	if got := cfg.MaxAwaitDuration().Seconds(); got != 30 {
		t.Errorf("MaxAwaitDuration() = %v, want 30", got)
	}
	if got := cfg.SemaphoreExpiry().Seconds(); got != 40 {
		t.Errorf("SemaphoreExpiry() = %v, want 40", got)
	}
	if got := cfg.AliveCheckTimeout().Seconds(); got != 3 {
		t.Errorf("AliveCheckTimeout() = %v, want 3", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MESHCORE_NODE_SERVER_ID", "env-node")
	t.Setenv("MESHCORE_REDIS_ADDR", "redis.example.com:6380")
	t.Setenv("MESHCORE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("MESHCORE_API_HOST", "192.168.1.1")
	t.Setenv("MESHCORE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("MESHCORE_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Node.ServerID != "env-node" {
		t.Errorf("Node.ServerID = %q, want %q", cfg.Node.ServerID, "env-node")
	}
	if cfg.Redis.Addr != "redis.example.com:6380" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "redis.example.com:6380")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Node.ServerID == "" {
		t.Error("defaultConfig should have non-empty Node.ServerID")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.Redis.Addr == "" {
		t.Error("defaultConfig should have non-empty Redis.Addr")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
