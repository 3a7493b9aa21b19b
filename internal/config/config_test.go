package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 50.0, cfg.Layout.HeaderMargin)
	assert.Equal(t, 50.0, cfg.Layout.FooterMargin)
	assert.Equal(t, 10.0, cfg.Layout.LineTolerance)
	assert.Equal(t, 0.5, cfg.Layout.TableOverlapThreshold)
	assert.True(t, cfg.Layout.SkipHeaderFooter)
	assert.Equal(t, 6.0, cfg.Font.MinSize)
	assert.Equal(t, 72.0, cfg.Font.MaxSize)
	assert.Equal(t, 0.9, cfg.Font.ShrinkFactor)
	assert.Equal(t, 0.75, cfg.Font.ScaleFactor)
	assert.Equal(t, "Helvetica", cfg.Font.DefaultFamily)
	assert.Equal(t, "overlay", cfg.Render.Mode)
	assert.Equal(t, DefaultMissingPlaceholder, cfg.Render.MissingPlaceholder)
	assert.Equal(t, 180*time.Second, cfg.Translator.Timeout)
	assert.Equal(t, 10000, cfg.Pipeline.MaxSegments)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfigManager(t *testing.T) {
	t.Run("with custom path", func(t *testing.T) {
		customPath := filepath.Join(t.TempDir(), "custom.yaml")
		cm, err := NewConfigManager(customPath)
		require.NoError(t, err)
		assert.Equal(t, customPath, cm.GetConfigPath())
	})

	t.Run("with empty path searches defaults", func(t *testing.T) {
		cm, err := NewConfigManager("")
		require.NoError(t, err)
		assert.NotNil(t, cm.GetConfig())
	})
}

func TestConfigManager_LoadMissingFileUsesDefaults(t *testing.T) {
	cm, err := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	require.NoError(t, cm.Load())
	assert.Equal(t, DefaultModel, cm.GetConfig().Translator.Model)
}

func TestConfigManager_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
layout:
  header_margin: 36
  line_tolerance: 8
font:
  min_size: 5
  families:
    zh-tw: MingLiU
render:
  mode: side_by_side
translator:
  timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cm, err := NewConfigManager(path)
	require.NoError(t, err)
	require.NoError(t, cm.Load())

	cfg := cm.GetConfig()
	assert.Equal(t, 36.0, cfg.Layout.HeaderMargin)
	assert.Equal(t, 50.0, cfg.Layout.FooterMargin, "unset keys keep defaults")
	assert.Equal(t, 8.0, cfg.Layout.LineTolerance)
	assert.Equal(t, 5.0, cfg.Font.MinSize)
	assert.Equal(t, "MingLiU", cfg.Font.Families["zh-tw"])
	assert.Equal(t, "side_by_side", cfg.Render.Mode)
	assert.Equal(t, 30*time.Second, cfg.Translator.Timeout)
}

func TestConfigManager_LoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("font:\n  shrink_factor: 1.5\n"), 0644))

	cm, err := NewConfigManager(path)
	require.NoError(t, err)

	err = cm.Load()
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrConfig))
}

func TestConfigManager_LoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layout: [unterminated"), 0644))

	cm, err := NewConfigManager(path)
	require.NoError(t, err)
	assert.Error(t, cm.Load())
}

func TestConfigManager_EnvOverride(t *testing.T) {
	t.Setenv("TRANSLATE_TOOL_LAYOUT_HEADER_MARGIN", "72")
	t.Setenv(EnvOpenAIAPIKey, "sk-test")

	cm, err := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cm.Load())

	assert.Equal(t, 72.0, cm.GetConfig().Layout.HeaderMargin)
	assert.Equal(t, "sk-test", cm.GetConfig().Translator.APIKey)
}

func TestConfigManager_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cm, err := NewConfigManager(path)
	require.NoError(t, err)
	cfg := Default()
	cfg.Layout.HeaderMargin = 42
	cfg.Render.Mode = "inline"
	cfg.Translator.Timeout = 45 * time.Second
	cm.SetConfig(cfg)
	require.NoError(t, cm.Save())

	_, err = os.Stat(path)
	require.NoError(t, err, "Save must create parent directories")

	reloaded, err := NewConfigManager(path)
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 42.0, reloaded.GetConfig().Layout.HeaderMargin)
	assert.Equal(t, "inline", reloaded.GetConfig().Render.Mode)
	assert.Equal(t, 45*time.Second, reloaded.GetConfig().Translator.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative margin", func(c *Config) { c.Layout.HeaderMargin = -1 }},
		{"zero tolerance", func(c *Config) { c.Layout.LineTolerance = 0 }},
		{"overlap above one", func(c *Config) { c.Layout.TableOverlapThreshold = 1.5 }},
		{"min above max", func(c *Config) { c.Font.MinSize = 80 }},
		{"shrink of one", func(c *Config) { c.Font.ShrinkFactor = 1 }},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.True(t, types.IsCode(cfg.Validate(), types.ErrConfig))
		})
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "debug"
	cfg.Log.File = "/tmp/x.log"
	cfg.Log.MaxSizeMB = 2

	lc := cfg.LoggerConfig()
	assert.Equal(t, logger.LevelDebug, lc.Level)
	assert.Equal(t, "/tmp/x.log", lc.LogFilePath)
	assert.Equal(t, int64(2*1024*1024), lc.MaxFileSize)
}
