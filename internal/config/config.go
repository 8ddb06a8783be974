package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap/zapcore"

	"interviewhub/internal/lifecycle"
	dbconfig "interviewhub/pkg/database"
)

// EnvPrefix is prepended to every environment variable the service reads.
const EnvPrefix = "INTERVIEWHUB_"

// Config is the complete service configuration.
type Config struct {
	HTTP       *HTTPConfig       `json:"http"`
	WebSocket  *WebSocketConfig  `json:"websocket"`
	Database   *DatabaseConfig   `json:"database"`
	Queue      *QueueConfig      `json:"queue"`
	Relay      *RelayConfig      `json:"relay"`
	Recordings *RecordingsConfig `json:"recordings"`
	ICE        *ICEConfig        `json:"ice"`
	Log        *LogConfig        `json:"log"`
}

type HTTPConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	// AllowedOrigins applies to CORS and the WebSocket upgrade. Empty allows any origin.
	AllowedOrigins []string `json:"allowed_origins"`
}

type WebSocketConfig struct {
	PingInterval    time.Duration `json:"ping_interval"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	BufferSize      int           `json:"buffer_size"`
	MaxMessageBytes int64         `json:"max_message_bytes"`
}

// DatabaseConfig configures the event log and recording index. An empty
// Path disables both.
type DatabaseConfig struct {
	Path           string `json:"path"`
	MaxConnections int    `json:"max_connections"`
	WriteBuffer    int    `json:"write_buffer"`
}

type QueueConfig struct {
	RolePolicy string `json:"role_policy"`
}

type RelayConfig struct {
	// MaxPerMinute bounds relay messages per connection. 0 disables the limit.
	MaxPerMinute    int           `json:"max_per_minute"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type RecordingsConfig struct {
	Dir      string `json:"dir"`
	MaxBytes int64  `json:"max_bytes"`
}

type ICEConfig struct {
	Servers []webrtc.ICEServer `json:"servers"`
}

type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// DefaultConfig returns settings suitable for a single-instance deployment.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:    30 * time.Second,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    5 * time.Second,
			BufferSize:      100,
			MaxMessageBytes: 64 * 1024,
		},
		Database: &DatabaseConfig{
			Path:           "./data/interviewhub.db",
			MaxConnections: 10,
			WriteBuffer:    256,
		},
		Queue: &QueueConfig{
			RolePolicy: string(lifecycle.PolicyEnforceHost),
		},
		Relay: &RelayConfig{
			MaxPerMinute:    600,
			CleanupInterval: time.Minute,
		},
		Recordings: &RecordingsConfig{
			Dir:      "./data/recordings",
			MaxBytes: 512 << 20,
		},
		ICE: &ICEConfig{
			Servers: []webrtc.ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		},
		Log: &LogConfig{
			Level: "info",
		},
	}
}

// Addr returns the listen address.
func (h *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// Enabled reports whether persistence is configured.
func (d *DatabaseConfig) Enabled() bool {
	return d.Path != ""
}

// Store converts the section into the storage layer's configuration.
func (d *DatabaseConfig) Store() *dbconfig.Config {
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = d.Path
	cfg.MaxConnections = d.MaxConnections
	cfg.WriteBuffer = d.WriteBuffer
	return cfg
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return errors.New("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return errors.New("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return errors.New("HTTP write timeout must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("HTTP shutdown timeout must be positive")
	}

	if c.WebSocket == nil {
		return errors.New("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return errors.New("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return errors.New("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return errors.New("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return errors.New("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return errors.New("WebSocket max message size must be positive")
	}

	if c.Database == nil {
		return errors.New("database configuration is required")
	}
	if c.Database.Enabled() {
		if err := c.Database.Store().Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if c.Queue == nil {
		return errors.New("queue configuration is required")
	}
	if _, err := lifecycle.ParsePolicy(c.Queue.RolePolicy); err != nil {
		return fmt.Errorf("queue: %w", err)
	}

	if c.Relay == nil {
		return errors.New("relay configuration is required")
	}
	if c.Relay.MaxPerMinute < 0 {
		return errors.New("relay max per minute cannot be negative")
	}
	if c.Relay.CleanupInterval <= 0 {
		return errors.New("relay cleanup interval must be positive")
	}

	if c.Recordings == nil {
		return errors.New("recordings configuration is required")
	}
	if c.Recordings.Dir == "" {
		return errors.New("recordings directory cannot be empty")
	}
	if c.Recordings.MaxBytes <= 0 {
		return errors.New("recordings max bytes must be positive")
	}

	if c.ICE == nil {
		return errors.New("ICE configuration is required")
	}
	if err := validateICEServers(c.ICE.Servers); err != nil {
		return err
	}

	if c.Log == nil {
		return errors.New("log configuration is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	return nil
}

func validateICEServers(servers []webrtc.ICEServer) error {
	for i, server := range servers {
		if len(server.URLs) == 0 {
			return fmt.Errorf("ICE server %d has no URLs", i)
		}
		for _, url := range server.URLs {
			if !strings.HasPrefix(url, "stun:") && !strings.HasPrefix(url, "turn:") && !strings.HasPrefix(url, "turns:") {
				return fmt.Errorf("ICE server %d: unsupported URL %q", i, url)
			}
		}
	}
	return nil
}

// LoadDotEnv exports the variables from the given files (".env" when none
// are named) into the process environment. Missing files are ignored and
// variables that are already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadFromEnv overlays INTERVIEWHUB_* variables on the defaults.
func LoadFromEnv() (*Config, error) {
	config := DefaultConfig()
	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(c *Config) error {
	env := envReader{}

	env.str("HTTP_HOST", &c.HTTP.Host)
	env.integer("HTTP_PORT", &c.HTTP.Port)
	env.duration("HTTP_READ_TIMEOUT", &c.HTTP.ReadTimeout)
	env.duration("HTTP_WRITE_TIMEOUT", &c.HTTP.WriteTimeout)
	env.duration("HTTP_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout)
	env.list("HTTP_ALLOWED_ORIGINS", &c.HTTP.AllowedOrigins)

	env.duration("WEBSOCKET_PING_INTERVAL", &c.WebSocket.PingInterval)
	env.duration("WEBSOCKET_READ_TIMEOUT", &c.WebSocket.ReadTimeout)
	env.duration("WEBSOCKET_WRITE_TIMEOUT", &c.WebSocket.WriteTimeout)
	env.integer("WEBSOCKET_BUFFER_SIZE", &c.WebSocket.BufferSize)
	env.integer64("WEBSOCKET_MAX_MESSAGE_BYTES", &c.WebSocket.MaxMessageBytes)

	// Set but empty disables the database.
	if path, ok := os.LookupEnv(EnvPrefix + "DATABASE_PATH"); ok {
		c.Database.Path = path
	}
	env.integer("DATABASE_MAX_CONNECTIONS", &c.Database.MaxConnections)
	env.integer("DATABASE_WRITE_BUFFER", &c.Database.WriteBuffer)

	env.str("QUEUE_ROLE_POLICY", &c.Queue.RolePolicy)

	env.integer("RELAY_MAX_PER_MINUTE", &c.Relay.MaxPerMinute)
	env.duration("RELAY_CLEANUP_INTERVAL", &c.Relay.CleanupInterval)

	env.str("RECORDINGS_DIR", &c.Recordings.Dir)
	env.integer64("RECORDINGS_MAX_BYTES", &c.Recordings.MaxBytes)

	if raw := os.Getenv(EnvPrefix + "ICE_SERVERS"); raw != "" {
		var servers []webrtc.ICEServer
		if err := json.Unmarshal([]byte(raw), &servers); err != nil {
			env.fail("ICE_SERVERS", err)
		} else {
			c.ICE.Servers = servers
		}
	}

	env.str("LOG_LEVEL", &c.Log.Level)
	env.boolean("LOG_DEVELOPMENT", &c.Log.Development)

	return env.err
}

// envReader records the first malformed variable and keeps going.
type envReader struct {
	err error
}

func (e *envReader) lookup(name string) (string, bool) {
	value := os.Getenv(EnvPrefix + name)
	return value, value != ""
}

func (e *envReader) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
	}
}

func (e *envReader) str(name string, dst *string) {
	if value, ok := e.lookup(name); ok {
		*dst = value
	}
}

func (e *envReader) list(name string, dst *[]string) {
	value, ok := e.lookup(name)
	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (e *envReader) integer(name string, dst *int) {
	if value, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) integer64(name string, dst *int64) {
	if value, ok := e.lookup(name); ok {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if value, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if value, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = d
	}
}

// ConfigFile is the on-disk JSON layout. Durations are strings such as "30s"
// and absent fields keep the value they overlay.
type ConfigFile struct {
	HTTP       *HTTPConfigFile       `json:"http"`
	WebSocket  *WebSocketConfigFile  `json:"websocket"`
	Database   *DatabaseConfigFile   `json:"database"`
	Queue      *QueueConfig          `json:"queue"`
	Relay      *RelayConfigFile      `json:"relay"`
	Recordings *RecordingsConfigFile `json:"recordings"`
	ICE        *ICEConfig            `json:"ice"`
	Log        *LogConfigFile        `json:"log"`
}

type HTTPConfigFile struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ReadTimeout     string   `json:"read_timeout"`
	WriteTimeout    string   `json:"write_timeout"`
	ShutdownTimeout string   `json:"shutdown_timeout"`
	AllowedOrigins  []string `json:"allowed_origins"`
}

type WebSocketConfigFile struct {
	PingInterval    string `json:"ping_interval"`
	ReadTimeout     string `json:"read_timeout"`
	WriteTimeout    string `json:"write_timeout"`
	BufferSize      int    `json:"buffer_size"`
	MaxMessageBytes int64  `json:"max_message_bytes"`
}

type DatabaseConfigFile struct {
	Path           *string `json:"path"`
	MaxConnections int     `json:"max_connections"`
	WriteBuffer    int     `json:"write_buffer"`
}

type RelayConfigFile struct {
	MaxPerMinute    *int   `json:"max_per_minute"`
	CleanupInterval string `json:"cleanup_interval"`
}

type RecordingsConfigFile struct {
	Dir      string `json:"dir"`
	MaxBytes int64  `json:"max_bytes"`
}

type LogConfigFile struct {
	Level       string `json:"level"`
	Development *bool  `json:"development"`
}

// LoadFromFile overlays a JSON file on the defaults and validates the result.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, path); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

func applyFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	durations := durationParser{path: path}

	if f := file.HTTP; f != nil {
		if f.Host != "" {
			c.HTTP.Host = f.Host
		}
		if f.Port > 0 {
			c.HTTP.Port = f.Port
		}
		durations.parse("http.read_timeout", f.ReadTimeout, &c.HTTP.ReadTimeout)
		durations.parse("http.write_timeout", f.WriteTimeout, &c.HTTP.WriteTimeout)
		durations.parse("http.shutdown_timeout", f.ShutdownTimeout, &c.HTTP.ShutdownTimeout)
		if f.AllowedOrigins != nil {
			c.HTTP.AllowedOrigins = f.AllowedOrigins
		}
	}

	if f := file.WebSocket; f != nil {
		durations.parse("websocket.ping_interval", f.PingInterval, &c.WebSocket.PingInterval)
		durations.parse("websocket.read_timeout", f.ReadTimeout, &c.WebSocket.ReadTimeout)
		durations.parse("websocket.write_timeout", f.WriteTimeout, &c.WebSocket.WriteTimeout)
		if f.BufferSize > 0 {
			c.WebSocket.BufferSize = f.BufferSize
		}
		if f.MaxMessageBytes > 0 {
			c.WebSocket.MaxMessageBytes = f.MaxMessageBytes
		}
	}

	if f := file.Database; f != nil {
		if f.Path != nil {
			c.Database.Path = *f.Path
		}
		if f.MaxConnections > 0 {
			c.Database.MaxConnections = f.MaxConnections
		}
		if f.WriteBuffer > 0 {
			c.Database.WriteBuffer = f.WriteBuffer
		}
	}

	if f := file.Queue; f != nil && f.RolePolicy != "" {
		c.Queue.RolePolicy = f.RolePolicy
	}

	if f := file.Relay; f != nil {
		if f.MaxPerMinute != nil {
			c.Relay.MaxPerMinute = *f.MaxPerMinute
		}
		durations.parse("relay.cleanup_interval", f.CleanupInterval, &c.Relay.CleanupInterval)
	}

	if f := file.Recordings; f != nil {
		if f.Dir != "" {
			c.Recordings.Dir = f.Dir
		}
		if f.MaxBytes > 0 {
			c.Recordings.MaxBytes = f.MaxBytes
		}
	}

	if f := file.ICE; f != nil && f.Servers != nil {
		c.ICE.Servers = f.Servers
	}

	if f := file.Log; f != nil {
		if f.Level != "" {
			c.Log.Level = f.Level
		}
		if f.Development != nil {
			c.Log.Development = *f.Development
		}
	}

	return durations.err
}

type durationParser struct {
	path string
	err  error
}

func (p *durationParser) parse(field, value string, dst *time.Duration) {
	if value == "" || p.err != nil {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.err = fmt.Errorf("invalid %s in %s: %w", field, p.path, err)
		return
	}
	*dst = d
}

// LoadConfigWithPrecedence resolves configuration as file > environment >
// defaults. An empty path skips the file.
func LoadConfigWithPrecedence(path string) (*Config, error) {
	config, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := applyFile(config, path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
