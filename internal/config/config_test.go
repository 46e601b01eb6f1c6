package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/gonewton"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, gonewton.DefaultParams(), cfg.Newton)
	assert.Equal(t, gonewton.DefaultPlotOptions(), cfg.Plot)
	assert.Equal(t, 30*time.Minute, cfg.GetSessionTTL())
	assert.Equal(t, time.Minute, cfg.GetSweepInterval())
	assert.Equal(t, 10*time.Second, cfg.GetShutdownTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EmptyPathSkipsFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "newton.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:9000"
	cfg.Store.Backend = "sqlite"
	cfg.Newton.Function = "cos(x) - x"
	cfg.Newton.Derivative = ""
	cfg.Newton.X0 = 1
	cfg.Plot.Samples = 200
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_PartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newton.yaml")
	yaml := `
newton:
  function: "x**3 - x - 2"
  x0: 1.5
store:
  session_ttl: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x**3 - x - 2", cfg.Newton.Function)
	assert.Equal(t, 1.5, cfg.Newton.X0)
	assert.Equal(t, gonewton.DefaultTolerance, cfg.Newton.Tolerance)
	assert.Equal(t, 5*time.Minute, cfg.GetSessionTTL())
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newton.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NEWTON_ADDR", ":9999")
	t.Setenv("NEWTON_LOG_LEVEL", "debug")
	t.Setenv("NEWTON_STORE", "sqlite")
	t.Setenv("NEWTON_DB_PATH", "/tmp/n.db")
	t.Setenv("NEWTON_SESSION_TTL", "2h")
	t.Setenv("NEWTON_MAX_ITERATIONS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/n.db", cfg.Store.DatabasePath)
	assert.Equal(t, 2*time.Hour, cfg.GetSessionTTL())
	assert.Equal(t, 7, cfg.Newton.MaxIterations)
}

func TestLoad_BadMaxIterationsEnv(t *testing.T) {
	t.Setenv("NEWTON_MAX_ITERATIONS", "lots")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEWTON_MAX_ITERATIONS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, true},
		{"bad duration", func(c *Config) { c.Store.SessionTTL = "soon" }, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, true},
		{"sqlite without path", func(c *Config) { c.Store.Backend = "sqlite"; c.Store.DatabasePath = "" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"zero tolerance", func(c *Config) { c.Newton.Tolerance = 0 }, true},
		{"empty function", func(c *Config) { c.Newton.Function = "" }, true},
		{"inverted plot window", func(c *Config) { c.Plot.YMin = 20 }, true},
		{"zero render size", func(c *Config) { c.Render.Width = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationGettersFallBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.ReadTimeout = "garbage"
	cfg.Store.SweepInterval = ""
	assert.Equal(t, 15*time.Second, cfg.GetReadTimeout())
	assert.Equal(t, time.Minute, cfg.GetSweepInterval())
}
