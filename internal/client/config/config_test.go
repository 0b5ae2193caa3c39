package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.SetPath(path)
	cfg.DataDir = filepath.Join(t.TempDir(), "cache")
	cfg.ServerURL = "http://localhost:9000"
	cfg.SyncInterval = Duration(5 * time.Minute)
	cfg.ForceFullRefresh = true
	require.NoError(t, cfg.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	assert.Equal(t, "http://localhost:9000", loaded.ServerURL)
	assert.Equal(t, Duration(5*time.Minute), loaded.SyncInterval)
	assert.True(t, loaded.ForceFullRefresh)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data_dir": "/tmp/newscache"}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/newscache", cfg.DataDir)
	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval)
}

func TestDurationJSON(t *testing.T) {
	t.Run("string form", func(t *testing.T) {
		var d Duration
		require.NoError(t, d.UnmarshalJSON([]byte(`"15m"`)))
		assert.Equal(t, 15*time.Minute, d.Std())
	})

	t.Run("nanosecond integer form", func(t *testing.T) {
		var d Duration
		require.NoError(t, d.UnmarshalJSON([]byte(`60000000000`)))
		assert.Equal(t, time.Minute, d.Std())
	})

	t.Run("garbage", func(t *testing.T) {
		var d Duration
		assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
	})

	t.Run("marshal", func(t *testing.T) {
		data, err := Duration(90 * time.Second).MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, `"1m30s"`, string(data))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"empty server url", func(c *Config) { c.ServerURL = "" }},
		{"bad server scheme", func(c *Config) { c.ServerURL = "ftp://example.com" }},
		{"not a url", func(c *Config) { c.ServerURL = "::::" }},
		{"empty control plane addr", func(c *Config) { c.ControlPlaneAddr = "" }},
		{"zero interval", func(c *Config) { c.SyncInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
