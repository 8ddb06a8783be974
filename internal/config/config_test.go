package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if config.HTTP.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected 0.0.0.0:8080, got %s", config.HTTP.Addr())
	}
	if config.WebSocket.PingInterval != 30*time.Second {
		t.Errorf("Expected 30s ping interval, got %v", config.WebSocket.PingInterval)
	}
	if config.Queue.RolePolicy != "enforce-host" {
		t.Errorf("Expected enforce-host, got %s", config.Queue.RolePolicy)
	}
	if config.Relay.MaxPerMinute != 600 {
		t.Errorf("Expected 600 relay messages per minute, got %d", config.Relay.MaxPerMinute)
	}
	if !config.Database.Enabled() {
		t.Error("Database should be enabled by default")
	}
	if len(config.ICE.Servers) != 1 || !strings.HasPrefix(config.ICE.Servers[0].URLs[0], "stun:") {
		t.Errorf("Expected one default STUN server, got %+v", config.ICE.Servers)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port zero", func(c *Config) { c.HTTP.Port = 0 }, "HTTP port"},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }, "HTTP port"},
		{"shutdown timeout", func(c *Config) { c.HTTP.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"read timeout below ping", func(c *Config) { c.WebSocket.ReadTimeout = c.WebSocket.PingInterval }, "exceed the ping interval"},
		{"buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }, "buffer size"},
		{"max message", func(c *Config) { c.WebSocket.MaxMessageBytes = -1 }, "max message"},
		{"db pool", func(c *Config) { c.Database.MaxConnections = 0 }, "database"},
		{"role policy", func(c *Config) { c.Queue.RolePolicy = "anyone" }, "queue"},
		{"negative relay limit", func(c *Config) { c.Relay.MaxPerMinute = -1 }, "relay max"},
		{"cleanup interval", func(c *Config) { c.Relay.CleanupInterval = 0 }, "cleanup interval"},
		{"recordings dir", func(c *Config) { c.Recordings.Dir = "" }, "recordings directory"},
		{"recordings size", func(c *Config) { c.Recordings.MaxBytes = 0 }, "recordings max bytes"},
		{"ice without urls", func(c *Config) { c.ICE.Servers[0].URLs = nil }, "no URLs"},
		{"ice bad scheme", func(c *Config) { c.ICE.Servers[0].URLs = []string{"http://example.com"} }, "unsupported URL"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"missing section", func(c *Config) { c.Relay = nil }, "relay configuration is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_ValidateAllowsDisabledDatabase(t *testing.T) {
	config := DefaultConfig()
	config.Database.Path = ""
	config.Database.MaxConnections = 0

	if err := config.Validate(); err != nil {
		t.Fatalf("disabled database should skip pool validation: %v", err)
	}
	if config.Database.Enabled() {
		t.Error("Database should be disabled")
	}
}

func TestConfig_DatabaseStore(t *testing.T) {
	config := DefaultConfig()
	config.Database.Path = "/tmp/x.db"
	config.Database.WriteBuffer = 8

	store := config.Database.Store()
	if store.DatabasePath != "/tmp/x.db" || store.WriteBuffer != 8 || store.MaxConnections != 10 {
		t.Errorf("Unexpected store config: %+v", store)
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("INTERVIEWHUB_HTTP_PORT", "9090")
	t.Setenv("INTERVIEWHUB_HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("INTERVIEWHUB_WEBSOCKET_PING_INTERVAL", "10s")
	t.Setenv("INTERVIEWHUB_WEBSOCKET_MAX_MESSAGE_BYTES", "1024")
	t.Setenv("INTERVIEWHUB_QUEUE_ROLE_POLICY", "permissive")
	t.Setenv("INTERVIEWHUB_RELAY_MAX_PER_MINUTE", "0")
	t.Setenv("INTERVIEWHUB_LOG_DEVELOPMENT", "true")
	t.Setenv("INTERVIEWHUB_ICE_SERVERS", `[{"urls":["turn:turn.example.com:3478"],"username":"u","credential":"p"}]`)

	config, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if config.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", config.HTTP.Port)
	}
	if len(config.HTTP.AllowedOrigins) != 2 || config.HTTP.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected origins: %v", config.HTTP.AllowedOrigins)
	}
	if config.WebSocket.PingInterval != 10*time.Second {
		t.Errorf("Expected 10s, got %v", config.WebSocket.PingInterval)
	}
	if config.WebSocket.MaxMessageBytes != 1024 {
		t.Errorf("Expected 1024, got %d", config.WebSocket.MaxMessageBytes)
	}
	if config.Queue.RolePolicy != "permissive" {
		t.Errorf("Expected permissive, got %s", config.Queue.RolePolicy)
	}
	if config.Relay.MaxPerMinute != 0 {
		t.Errorf("Expected relay limit disabled, got %d", config.Relay.MaxPerMinute)
	}
	if !config.Log.Development {
		t.Error("Expected development logging")
	}
	if len(config.ICE.Servers) != 1 || config.ICE.Servers[0].Username != "u" {
		t.Errorf("Unexpected ICE servers: %+v", config.ICE.Servers)
	}
}

func TestConfig_LoadFromEnvDisablesDatabase(t *testing.T) {
	t.Setenv("INTERVIEWHUB_DATABASE_PATH", "")

	config, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if config.Database.Enabled() {
		t.Errorf("Expected database disabled, got path %q", config.Database.Path)
	}
}

func TestConfig_LoadFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"INTERVIEWHUB_HTTP_PORT", "eighty"},
		{"INTERVIEWHUB_WEBSOCKET_READ_TIMEOUT", "soon"},
		{"INTERVIEWHUB_LOG_DEVELOPMENT", "maybe"},
		{"INTERVIEWHUB_RECORDINGS_MAX_BYTES", "1GB"},
		{"INTERVIEWHUB_ICE_SERVERS", "stun:stun.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.name, tt.value)
			_, err := LoadFromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.name) {
				t.Fatalf("Expected error naming %s, got %v", tt.name, err)
			}
		})
	}
}

func TestConfig_LoadDotEnv(t *testing.T) {
	// Register cleanup for both variables, then leave them unset for godotenv.
	t.Setenv("INTERVIEWHUB_LOG_LEVEL", "")
	t.Setenv("INTERVIEWHUB_HTTP_HOST", "127.0.0.1")
	os.Unsetenv("INTERVIEWHUB_LOG_LEVEL")

	path := filepath.Join(t.TempDir(), ".env")
	content := "INTERVIEWHUB_LOG_LEVEL=debug\nINTERVIEWHUB_HTTP_HOST=10.0.0.1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}

	config, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if config.Log.Level != "debug" {
		t.Errorf("Expected level from .env, got %s", config.Log.Level)
	}
	if config.HTTP.Host != "127.0.0.1" {
		t.Errorf("Existing variable should win over .env, got %s", config.HTTP.Host)
	}
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := writeFile(t, `{
		"http": {"port": 3000, "read_timeout": "15s", "allowed_origins": ["https://app.example"]},
		"websocket": {"ping_interval": "20s", "read_timeout": "45s", "buffer_size": 50},
		"database": {"path": "/var/lib/interviewhub/events.db", "write_buffer": 32},
		"queue": {"role_policy": "permissive"},
		"relay": {"max_per_minute": 0, "cleanup_interval": "2m"},
		"recordings": {"dir": "/srv/recordings", "max_bytes": 1048576},
		"ice": {"servers": [{"urls": ["stun:a.example:3478", "turns:b.example:5349"]}]},
		"log": {"level": "warn", "development": true}
	}`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.HTTP.Port != 3000 || config.HTTP.ReadTimeout != 15*time.Second {
		t.Errorf("Unexpected HTTP config: %+v", config.HTTP)
	}
	if config.HTTP.WriteTimeout != 30*time.Second {
		t.Errorf("Absent field should keep default, got %v", config.HTTP.WriteTimeout)
	}
	if config.WebSocket.PingInterval != 20*time.Second || config.WebSocket.BufferSize != 50 {
		t.Errorf("Unexpected WebSocket config: %+v", config.WebSocket)
	}
	if config.Database.Path != "/var/lib/interviewhub/events.db" || config.Database.WriteBuffer != 32 {
		t.Errorf("Unexpected database config: %+v", config.Database)
	}
	if config.Queue.RolePolicy != "permissive" {
		t.Errorf("Expected permissive, got %s", config.Queue.RolePolicy)
	}
	if config.Relay.MaxPerMinute != 0 || config.Relay.CleanupInterval != 2*time.Minute {
		t.Errorf("Unexpected relay config: %+v", config.Relay)
	}
	if config.Recordings.Dir != "/srv/recordings" || config.Recordings.MaxBytes != 1<<20 {
		t.Errorf("Unexpected recordings config: %+v", config.Recordings)
	}
	if len(config.ICE.Servers) != 1 || len(config.ICE.Servers[0].URLs) != 2 {
		t.Errorf("Unexpected ICE servers: %+v", config.ICE.Servers)
	}
	if config.Log.Level != "warn" || !config.Log.Development {
		t.Errorf("Unexpected log config: %+v", config.Log)
	}
}

func TestConfig_LoadFromFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid json", `{"http": {`, "failed to parse"},
		{"bad duration", `{"websocket": {"ping_interval": "often"}}`, "websocket.ping_interval"},
		{"invalid result", `{"queue": {"role_policy": "nobody"}}`, "invalid configuration"},
		{"bad ice url", `{"ice": {"servers": [{"urls": ["udp://x"]}]}}`, "unsupported URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeFile(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestConfig_LoadFromFileDisablesDatabase(t *testing.T) {
	config, err := LoadFromFile(writeFile(t, `{"database": {"path": ""}}`))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Database.Enabled() {
		t.Error("Explicit empty path should disable the database")
	}
}

func TestConfig_LoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("INTERVIEWHUB_HTTP_PORT", "9000")
	t.Setenv("INTERVIEWHUB_HTTP_HOST", "127.0.0.1")
	t.Setenv("INTERVIEWHUB_LOG_LEVEL", "debug")

	path := writeFile(t, `{"http": {"port": 7000}}`)

	config, err := LoadConfigWithPrecedence(path)
	if err != nil {
		t.Fatalf("LoadConfigWithPrecedence failed: %v", err)
	}

	if config.HTTP.Port != 7000 {
		t.Errorf("File should override env, got port %d", config.HTTP.Port)
	}
	if config.HTTP.Host != "127.0.0.1" {
		t.Errorf("Env should fill what the file omits, got host %s", config.HTTP.Host)
	}
	if config.Log.Level != "debug" {
		t.Errorf("Expected debug from env, got %s", config.Log.Level)
	}
	if config.WebSocket.BufferSize != 100 {
		t.Errorf("Expected default buffer size, got %d", config.WebSocket.BufferSize)
	}
}

func TestConfig_LoadConfigWithPrecedenceErrors(t *testing.T) {
	if _, err := LoadConfigWithPrecedence(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Named but missing file should fail")
	}

	t.Setenv("INTERVIEWHUB_QUEUE_ROLE_POLICY", "nobody")
	if _, err := LoadConfigWithPrecedence(""); err == nil {
		t.Error("Invalid env result should fail validation")
	}
}
