// Package config loads the outclaw daemon configuration. Files are JSON by
// default; a .yaml/.yml extension switches the decoder.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all outclaw configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Queue limits
	Queue QueueConfig `json:"queue" yaml:"queue"`

	// Durable store backend
	Store StoreConfig `json:"store" yaml:"store"`

	// MQTT broker used for connectivity detection
	MQTT MQTTConfig `json:"mqtt" yaml:"mqtt"`

	// Periodic sync trigger
	Sync SyncConfig `json:"sync" yaml:"sync"`

	// Dispatcher settings
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch"`
}

type ServerConfig struct {
	DataDir    string `json:"dataDir" yaml:"dataDir"`
	ListenAddr string `json:"listenAddr" yaml:"listenAddr"`
	LogLevel   string `json:"logLevel" yaml:"logLevel"`
	// AuthSecretEnv names the environment variable holding the local API
	// bearer secret. Empty leaves the API unauthenticated.
	AuthSecretEnv string `json:"authSecretEnv,omitempty" yaml:"authSecretEnv,omitempty"`
}

type QueueConfig struct {
	MaxPending  int `json:"maxPending" yaml:"maxPending"`
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"`
}

type StoreConfig struct {
	Backend string `json:"backend" yaml:"backend"` // "file" or "sqlite"
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

type MQTTConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

type SyncConfig struct {
	Kind       string `json:"kind" yaml:"kind"` // "interval" or "cron"
	IntervalMs int64  `json:"intervalMs,omitempty" yaml:"intervalMs,omitempty"`
	Expr       string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

type DispatchConfig struct {
	BaseURL        string `json:"baseUrl" yaml:"baseUrl"`
	RoutesPath     string `json:"routesPath" yaml:"routesPath"`
	DeviceID       string `json:"deviceId" yaml:"deviceId"`
	JWTSecretEnv   string `json:"jwtSecretEnv,omitempty" yaml:"jwtSecretEnv,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// DefaultConfig returns the configuration used when a field is absent from
// the file.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			DataDir:    "./data",
			ListenAddr: "127.0.0.1:8720",
			LogLevel:   "info",
		},
		Queue: QueueConfig{
			MaxPending:  100,
			MaxAttempts: 5,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    1883,
		},
		Sync: SyncConfig{
			Kind:       "interval",
			IntervalMs: 60_000,
		},
		Dispatch: DispatchConfig{
			RoutesPath:     "routes.toml",
			TimeoutSeconds: 30,
		},
	}
}

// Load reads config from a JSON or YAML file and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Server.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store.backend must be \"file\" or \"sqlite\", got %q", c.Store.Backend)
	}

	switch c.Sync.Kind {
	case "interval":
		if c.Sync.IntervalMs <= 0 {
			return fmt.Errorf("sync.intervalMs must be positive")
		}
	case "cron":
		if c.Sync.Expr == "" {
			return fmt.Errorf("sync.expr required for cron schedule")
		}
	case "":
		// No periodic trigger: sync runs only on reconnect or manual request.
	default:
		return fmt.Errorf("unknown sync.kind: %s (use interval or cron)", c.Sync.Kind)
	}

	if c.Queue.MaxPending < 0 || c.Queue.MaxAttempts < 0 {
		return fmt.Errorf("queue limits must not be negative")
	}

	if c.Dispatch.BaseURL == "" {
		return fmt.Errorf("dispatch.baseUrl is required")
	}
	if c.Dispatch.DeviceID == "" {
		return fmt.Errorf("dispatch.deviceId is required")
	}

	return nil
}

// StorePath returns the configured store location, defaulting into the data
// directory.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Backend == "sqlite" {
		return filepath.Join(c.Server.DataDir, "outclaw.db")
	}
	return c.Server.DataDir
}

// JWTSecret resolves the dispatcher signing secret from the configured
// environment variable. Nil (no signing) when unset.
func (c *Config) JWTSecret() []byte {
	return secretFromEnv(c.Dispatch.JWTSecretEnv)
}

// APIAuthSecret resolves the local API bearer secret. Nil (open API) when
// unset.
func (c *Config) APIAuthSecret() []byte {
	return secretFromEnv(c.Server.AuthSecretEnv)
}

func secretFromEnv(name string) []byte {
	if name == "" {
		return nil
	}
	s := os.Getenv(name)
	if s == "" {
		return nil
	}
	return []byte(s)
}
