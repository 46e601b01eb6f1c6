package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/njchilds90/gonewton"
)

// Config holds all gonewton configuration.
type Config struct {
	// HTTP tool server
	Server ServerConfig `yaml:"server"`

	// Session storage and idle eviction
	Store StoreConfig `yaml:"store"`

	// Default Newton parameters for a fresh session
	Newton gonewton.Params `yaml:"newton"`

	// Plot sampling and chart size
	Plot   gonewton.PlotOptions `yaml:"plot"`
	Render RenderConfig         `yaml:"render"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string `yaml:"addr"`
	ReadHeaderTimeout string `yaml:"read_header_timeout"`
	ReadTimeout       string `yaml:"read_timeout"`
	WriteTimeout      string `yaml:"write_timeout"`
	IdleTimeout       string `yaml:"idle_timeout"`
	ShutdownTimeout   string `yaml:"shutdown_timeout"`
	MaxBodyBytes      int64  `yaml:"max_body_bytes"`
}

// StoreConfig selects the session backend.
type StoreConfig struct {
	Backend       string `yaml:"backend"` // memory, sqlite
	DatabasePath  string `yaml:"database_path"`
	SessionTTL    string `yaml:"session_ttl"`
	SweepInterval string `yaml:"sweep_interval"`
}

// RenderConfig sizes PNG charts.
type RenderConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`   // empty = stderr
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: "5s",
			ReadTimeout:       "15s",
			WriteTimeout:      "15s",
			IdleTimeout:       "60s",
			ShutdownTimeout:   "10s",
			MaxBodyBytes:      1 << 20,
		},
		Store: StoreConfig{
			Backend:       "memory",
			DatabasePath:  filepath.Join(".newton", "sessions.db"),
			SessionTTL:    "30m",
			SweepInterval: "1m",
		},
		Newton: gonewton.DefaultParams(),
		Plot:   gonewton.DefaultPlotOptions(),
		Render: RenderConfig{Width: 800, Height: 600},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML config file. A missing file yields the defaults; an empty
// path skips the file entirely. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if addr := os.Getenv("NEWTON_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("NEWTON_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if backend := os.Getenv("NEWTON_STORE"); backend != "" {
		c.Store.Backend = backend
	}
	if path := os.Getenv("NEWTON_DB_PATH"); path != "" {
		c.Store.DatabasePath = path
	}
	if ttl := os.Getenv("NEWTON_SESSION_TTL"); ttl != "" {
		c.Store.SessionTTL = ttl
	}
	if v := os.Getenv("NEWTON_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NEWTON_MAX_ITERATIONS %q: %w", v, err)
		}
		c.Newton.MaxIterations = n
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is empty")
	}
	for name, v := range map[string]string{
		"server.read_header_timeout": c.Server.ReadHeaderTimeout,
		"server.read_timeout":        c.Server.ReadTimeout,
		"server.write_timeout":       c.Server.WriteTimeout,
		"server.idle_timeout":        c.Server.IdleTimeout,
		"server.shutdown_timeout":    c.Server.ShutdownTimeout,
		"store.session_ttl":          c.Store.SessionTTL,
		"store.sweep_interval":       c.Store.SweepInterval,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.DatabasePath == "" {
			return fmt.Errorf("store.database_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid store backend: %s (valid: memory, sqlite)", c.Store.Backend)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %s (valid: json, console)", c.Logging.Format)
	}
	if err := c.Newton.Validate(); err != nil {
		return fmt.Errorf("newton: %w", err)
	}
	if err := c.Plot.Validate(); err != nil {
		return err
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render size must be positive, got %dx%d", c.Render.Width, c.Render.Height)
	}
	return nil
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// GetSessionTTL returns the idle TTL; zero disables eviction.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Store.SessionTTL, 30*time.Minute)
}

func (c *Config) GetSweepInterval() time.Duration {
	return parseDuration(c.Store.SweepInterval, time.Minute)
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func (c *Config) GetReadHeaderTimeout() time.Duration {
	return parseDuration(c.Server.ReadHeaderTimeout, 5*time.Second)
}

func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 15*time.Second)
}

func (c *Config) GetIdleTimeout() time.Duration {
	return parseDuration(c.Server.IdleTimeout, 60*time.Second)
}
