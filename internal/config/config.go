// Package config provides configuration management for the translation tool.
// Values come from built-in defaults, an optional config file, and
// TRANSLATE_TOOL_* environment variables, in increasing precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

const (
	// DefaultConfigFileName is the file searched in the home and working directories
	DefaultConfigFileName = ".translate-tool"
	// EnvPrefix is the prefix of environment overrides, e.g. TRANSLATE_TOOL_LAYOUT_HEADER_MARGIN
	EnvPrefix = "TRANSLATE_TOOL"
	// EnvOpenAIAPIKey is the environment variable name for OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default chat model used for translation
	DefaultModel = "gpt-4o-mini"
	// DefaultMissingPlaceholder is shown where a translation could not be obtained
	DefaultMissingPlaceholder = "[Translation missing]"
)

// LayoutConfig drives extraction and region classification.
type LayoutConfig struct {
	HeaderMargin          float64 `mapstructure:"header_margin" json:"header_margin"`
	FooterMargin          float64 `mapstructure:"footer_margin" json:"footer_margin"`
	LineTolerance         float64 `mapstructure:"line_tolerance" json:"line_tolerance"`
	TitleFontSize         float64 `mapstructure:"title_font_size" json:"title_font_size"`
	TableOverlapThreshold float64 `mapstructure:"table_overlap_threshold" json:"table_overlap_threshold"`
	MinTextLength         int     `mapstructure:"min_text_length" json:"min_text_length"`
	SkipHeaderFooter      bool    `mapstructure:"skip_header_footer" json:"skip_header_footer"`
	TextLayerMinChars     int     `mapstructure:"text_layer_min_chars" json:"text_layer_min_chars"`
	DetectTables          bool    `mapstructure:"detect_tables" json:"detect_tables"`
}

// FontConfig drives font selection and the fit loop.
type FontConfig struct {
	DefaultFamily string            `mapstructure:"default_family" json:"default_family"`
	MinSize       float64           `mapstructure:"min_size" json:"min_size"`
	MaxSize       float64           `mapstructure:"max_size" json:"max_size"`
	ScaleFactor   float64           `mapstructure:"scale_factor" json:"scale_factor"`
	ShrinkFactor  float64           `mapstructure:"shrink_factor" json:"shrink_factor"`
	LineSpacing   float64           `mapstructure:"line_spacing" json:"line_spacing"`
	Dirs          []string          `mapstructure:"dirs" json:"dirs"`
	Families      map[string]string `mapstructure:"families" json:"families"` // language tag -> family
	Files         map[string]string `mapstructure:"files" json:"files"`       // family -> font file
}

// RenderConfig controls output composition.
type RenderConfig struct {
	Mode               string  `mapstructure:"mode" json:"mode"`
	DrawMask           bool    `mapstructure:"draw_mask" json:"draw_mask"`
	MaskMargin         float64 `mapstructure:"mask_margin" json:"mask_margin"`
	MaskColor          string  `mapstructure:"mask_color" json:"mask_color"`
	TextColor          string  `mapstructure:"text_color" json:"text_color"`
	Wrap               bool    `mapstructure:"wrap" json:"wrap"`
	ShowMissing        bool    `mapstructure:"show_missing" json:"show_missing"`
	MissingPlaceholder string  `mapstructure:"missing_placeholder" json:"missing_placeholder"`
}

// TranslatorConfig configures the chat-model translation adapter.
type TranslatorConfig struct {
	APIKey         string        `mapstructure:"api_key" json:"api_key"`
	BaseURL        string        `mapstructure:"base_url" json:"base_url"`
	Model          string        `mapstructure:"model" json:"model"`
	SourceLanguage string        `mapstructure:"source_language" json:"source_language"`
	ContextWindow  int           `mapstructure:"context_window" json:"context_window"`
	MaxRetries     int           `mapstructure:"max_retries" json:"max_retries"`
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout"`
	// CacheFile persists translations between runs; empty disables it.
	CacheFile string `mapstructure:"cache_file" json:"cache_file"`
}

// PipelineConfig configures job level behaviour.
type PipelineConfig struct {
	Concurrency   int      `mapstructure:"concurrency" json:"concurrency"`
	MaxSegments   int      `mapstructure:"max_segments" json:"max_segments"`
	MaxTextLength int      `mapstructure:"max_text_length" json:"max_text_length"`
	EnableOCR     bool     `mapstructure:"enable_ocr" json:"enable_ocr"`
	OCRLanguages  []string `mapstructure:"ocr_languages" json:"ocr_languages"`
	WorkDir       string   `mapstructure:"work_dir" json:"work_dir"`
}

// LogConfig mirrors logger.Config in file form.
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level"`
	File       string `mapstructure:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	Console    bool   `mapstructure:"console" json:"console"`
}

// Config is the complete application configuration.
type Config struct {
	Layout     LayoutConfig     `mapstructure:"layout" json:"layout"`
	Font       FontConfig       `mapstructure:"font" json:"font"`
	Render     RenderConfig     `mapstructure:"render" json:"render"`
	Translator TranslatorConfig `mapstructure:"translator" json:"translator"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" json:"pipeline"`
	Log        LogConfig        `mapstructure:"log" json:"log"`
}

// LoggerConfig converts the log section into a logger.Config.
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	lc.LogFilePath = c.Log.File
	if c.Log.MaxSizeMB > 0 {
		lc.MaxFileSize = int64(c.Log.MaxSizeMB) * 1024 * 1024
	}
	if c.Log.MaxBackups > 0 {
		lc.MaxBackups = c.Log.MaxBackups
	}
	if lvl, err := logger.ParseLevel(c.Log.Level); err == nil {
		lc.Level = lvl
	}
	lc.EnableConsole = c.Log.Console
	return lc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("layout.header_margin", 50.0)
	v.SetDefault("layout.footer_margin", 50.0)
	v.SetDefault("layout.line_tolerance", 10.0)
	v.SetDefault("layout.title_font_size", 16.0)
	v.SetDefault("layout.table_overlap_threshold", 0.5)
	v.SetDefault("layout.min_text_length", 1)
	v.SetDefault("layout.skip_header_footer", true)
	v.SetDefault("layout.text_layer_min_chars", 20)
	v.SetDefault("layout.detect_tables", true)

	v.SetDefault("font.default_family", "Helvetica")
	v.SetDefault("font.min_size", 6.0)
	v.SetDefault("font.max_size", 72.0)
	v.SetDefault("font.scale_factor", 0.75)
	v.SetDefault("font.shrink_factor", 0.9)
	v.SetDefault("font.line_spacing", 1.2)
	v.SetDefault("font.dirs", defaultFontDirs())
	v.SetDefault("font.families", map[string]string{})
	v.SetDefault("font.files", map[string]string{})

	v.SetDefault("render.mode", "overlay")
	v.SetDefault("render.draw_mask", true)
	v.SetDefault("render.mask_margin", 0.5)
	v.SetDefault("render.mask_color", "#FFFFFF")
	v.SetDefault("render.text_color", "#000000")
	v.SetDefault("render.wrap", true)
	v.SetDefault("render.show_missing", true)
	v.SetDefault("render.missing_placeholder", DefaultMissingPlaceholder)

	v.SetDefault("translator.base_url", DefaultBaseURL)
	v.SetDefault("translator.model", DefaultModel)
	v.SetDefault("translator.source_language", "auto")
	v.SetDefault("translator.context_window", 4000)
	v.SetDefault("translator.max_retries", 3)
	v.SetDefault("translator.timeout", 180*time.Second)
	v.SetDefault("translator.cache_file", "")

	v.SetDefault("pipeline.concurrency", 2)
	v.SetDefault("pipeline.max_segments", 10000)
	v.SetDefault("pipeline.max_text_length", 100000)
	v.SetDefault("pipeline.enable_ocr", true)
	v.SetDefault("pipeline.ocr_languages", []string{"eng"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.console", true)
}

func defaultFontDirs() []string {
	dirs := []string{"fonts", "/usr/share/fonts", "/usr/local/share/fonts", "/Library/Fonts", `C:\Windows\Fonts`}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".fonts"), filepath.Join(home, ".local", "share", "fonts"))
	}
	return dirs
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("translator.api_key", EnvPrefix+"_TRANSLATOR_API_KEY", EnvOpenAIAPIKey)
	_ = v.BindEnv("translator.base_url", EnvPrefix+"_TRANSLATOR_BASE_URL", EnvOpenAIBaseURL)
	return v
}

// Default returns the built-in configuration with environment overrides applied.
func Default() *Config {
	cfg := &Config{}
	if err := newViper().Unmarshal(cfg); err != nil {
		// defaults are static; a failure here is a programming error
		panic(fmt.Sprintf("config: decoding defaults: %v", err))
	}
	return cfg
}

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	v          *viper.Viper
	config     *Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, the manager searches $HOME and the working directory
// for .translate-tool.{yaml,toml,json}.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		v:          v,
		config:     Default(),
	}, nil
}

// Load reads the config file if present. A missing file is not an error.
func (m *ConfigManager) Load() error {
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
		default:
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		m.configPath = m.v.ConfigFileUsed()
		logger.Info("configuration loaded", logger.String("path", m.configPath))
	}

	cfg := &Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Save writes the current configuration to the config path. The encoding
// follows the file extension (yaml, toml or json).
func (m *ConfigManager) Save() error {
	path := m.configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		path = filepath.Join(home, DefaultConfigFileName+".yaml")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	// round-trip through JSON so the map keys match the mapstructure names
	data, err := json.Marshal(m.config)
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}
	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}
	if d, ok := settings["translator"].(map[string]interface{}); ok {
		d["timeout"] = m.config.Translator.Timeout.String()
	}

	out := viper.New()
	if err := out.MergeConfigMap(settings); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to encode config", err)
	}
	if err := out.WriteConfigAs(path); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", path))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	m.configPath = path
	logger.Info("configuration saved", logger.String("path", path))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *Config {
	if m.config == nil {
		return Default()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// Viper exposes the underlying viper instance so the CLI can bind flags.
func (m *ConfigManager) Viper() *viper.Viper {
	return m.v
}

// Validate checks value ranges that would otherwise break the pipeline.
func (c *Config) Validate() error {
	var problems []string
	if c.Layout.HeaderMargin < 0 || c.Layout.FooterMargin < 0 {
		problems = append(problems, "margins must be non-negative")
	}
	if c.Layout.LineTolerance <= 0 {
		problems = append(problems, "line_tolerance must be positive")
	}
	if c.Layout.TableOverlapThreshold <= 0 || c.Layout.TableOverlapThreshold > 1 {
		problems = append(problems, "table_overlap_threshold must be in (0, 1]")
	}
	if c.Font.MinSize <= 0 || c.Font.MaxSize < c.Font.MinSize {
		problems = append(problems, "font sizes must satisfy 0 < min_size <= max_size")
	}
	if c.Font.ShrinkFactor <= 0 || c.Font.ShrinkFactor >= 1 {
		problems = append(problems, "shrink_factor must be in (0, 1)")
	}
	if c.Font.ScaleFactor <= 0 {
		problems = append(problems, "scale_factor must be positive")
	}
	if c.Pipeline.Concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}
	if len(problems) > 0 {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid configuration", strings.Join(problems, "; "), nil)
	}
	return nil
}
