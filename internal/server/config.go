package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/triadsync/internal/auth"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/store"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config represents the complete server configuration
type Config struct {
	Server  *ServerSettings `hcl:"server,block"`
	Store   *StoreSettings  `hcl:"store,block"`
	Timings *TimingSettings `hcl:"timings,block"`
	Auth    *AuthSettings   `hcl:"auth,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// StoreSettings selects the document store backend
type StoreSettings struct {
	Backend      string `hcl:"backend,optional"`
	RedisURL     string `hcl:"redis_url,optional"`
	Namespace    string `hcl:"namespace,optional"`
	// SnapshotFile persists the memory backend across restarts
	SnapshotFile string `hcl:"snapshot_file,optional"`
}

// TimingSettings overrides match durations
type TimingSettings struct {
	CountdownMs       int `hcl:"countdown_ms,optional"`
	RoundEndMs        int `hcl:"round_end_ms,optional"`
	EmptyGraceSeconds int `hcl:"empty_grace_seconds,optional"`
}

// AuthSettings enables token checks on store connections
type AuthSettings struct {
	URL         string `hcl:"url,optional"`
	AdminSecret string `hcl:"admin_secret,optional"`
	// JWTSecret verifies signed participant tokens locally instead of
	// calling URL
	JWTSecret string `hcl:"jwt_secret,optional"`
	// FailOpen admits connections while the auth service is unreachable
	FailOpen bool `hcl:"fail_open,optional"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	t := match.DefaultTimings()
	return &Config{
		Server: &ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Store: &StoreSettings{
			Backend:   BackendMemory,
			Namespace: "triad",
		},
		Timings: &TimingSettings{
			CountdownMs:       int(t.Countdown.Milliseconds()),
			RoundEndMs:        int(t.RoundEnd.Milliseconds()),
			EmptyGraceSeconds: int(t.EmptyGrace / time.Second),
		},
	}
}

// LoadConfig loads server configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Server == nil {
		c.Server = def.Server
	}
	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = def.Server.LogLevel
	}

	if c.Store == nil {
		c.Store = def.Store
	}
	if c.Store.Backend == "" {
		c.Store.Backend = def.Store.Backend
	}
	if c.Store.Namespace == "" {
		c.Store.Namespace = def.Store.Namespace
	}

	if c.Timings == nil {
		c.Timings = def.Timings
	}
	if c.Timings.CountdownMs == 0 {
		c.Timings.CountdownMs = def.Timings.CountdownMs
	}
	if c.Timings.RoundEndMs == 0 {
		c.Timings.RoundEndMs = def.Timings.RoundEndMs
	}
	if c.Timings.EmptyGraceSeconds == 0 {
		c.Timings.EmptyGraceSeconds = def.Timings.EmptyGraceSeconds
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store: redis backend needs redis_url")
		}
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}

	if c.Timings.CountdownMs < 0 || c.Timings.RoundEndMs < 0 || c.Timings.EmptyGraceSeconds < 0 {
		return fmt.Errorf("timings must not be negative")
	}

	if c.Auth != nil && c.Auth.URL == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth: needs url or jwt_secret")
	}
	return nil
}

// Address returns the full listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// MatchTimings converts the timings block.
func (c *Config) MatchTimings() match.Timings {
	return match.Timings{
		Countdown:  time.Duration(c.Timings.CountdownMs) * time.Millisecond,
		RoundEnd:   time.Duration(c.Timings.RoundEndMs) * time.Millisecond,
		EmptyGrace: time.Duration(c.Timings.EmptyGraceSeconds) * time.Second,
	}
}

// OpenBackend builds the configured store backend. The returned close
// function releases it.
func (c *Config) OpenBackend(ctx context.Context) (store.Backend, func() error, error) {
	switch c.Store.Backend {
	case BackendRedis:
		b, err := store.NewRedisBackend(ctx, c.Store.RedisURL, c.Store.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		if c.Store.SnapshotFile == "" {
			return store.NewMemoryBackend(), func() error { return nil }, nil
		}
		b, err := store.LoadMemoryBackend(c.Store.SnapshotFile)
		if err != nil {
			return nil, nil, err
		}
		return b, func() error { return b.SaveFile(c.Store.SnapshotFile) }, nil
	}
}

// AdminSecret returns the secret guarding admin routes, empty when they are
// disabled.
func (c *Config) AdminSecret() string {
	if c.Auth == nil {
		return ""
	}
	return c.Auth.AdminSecret
}

// Validator builds the connection validator, nil when auth is disabled.
func (c *Config) Validator() auth.Validator {
	switch {
	case c.Auth == nil:
		return nil
	case c.Auth.JWTSecret != "":
		return auth.NewJWTValidator(c.Auth.JWTSecret)
	case c.Auth.URL != "":
		return auth.NewHTTPValidator(c.Auth.URL, c.Auth.AdminSecret)
	default:
		return nil
	}
}
