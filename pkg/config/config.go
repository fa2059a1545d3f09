// Package config provides configuration loading and management.
//
// Values are resolved in three layers: Defaults, then an optional YAML file,
// then FRAMEGRAB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/user/framegrab/pkg/extractor"
	"github.com/user/framegrab/pkg/grabber"
	"github.com/user/framegrab/pkg/keyframes"
	"github.com/user/framegrab/pkg/ports"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "FRAMEGRAB_"

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("config: invalid value")

// Backend names accepted by BackendConfig.Name.
const (
	BackendAuto   = "auto"
	BackendLibav  = "libav"
	BackendFFmpeg = "ffmpeg"
)

// Log formats accepted by LogConfig.Format.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config represents the full configuration for framegrab.
type Config struct {
	Extraction ExtractionConfig `yaml:"extraction" envPrefix:"EXTRACT_"`
	Grabber    GrabberConfig    `yaml:"grabber" envPrefix:"GRABBER_"`
	Backend    BackendConfig    `yaml:"backend" envPrefix:"BACKEND_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
	Metrics    MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
	Sheet      SheetConfig      `yaml:"sheet" envPrefix:"SHEET_"`
}

// ExtractionConfig configures the random-access engine.
type ExtractionConfig struct {
	MinKeyframeInterval int    `yaml:"min_keyframe_interval" env:"MIN_KEYFRAME_INTERVAL"`
	SeekRetries         int    `yaml:"seek_retries" env:"SEEK_RETRIES"`
	FrameCountSource    string `yaml:"frame_count_source" env:"FRAME_COUNT_SOURCE"`
}

// GrabberConfig configures the 16-bit grayscale facade.
type GrabberConfig struct {
	ConvertTo16Bit bool   `yaml:"convert_to_16bit" env:"CONVERT_TO_16BIT"`
	CameraModel    string `yaml:"camera_model" env:"CAMERA_MODEL"`
	// CameraType overrides the type derived from CameraModel.
	CameraType string `yaml:"camera_type" env:"CAMERA_TYPE"`
}

// BackendConfig selects the decode capability.
type BackendConfig struct {
	Name       string `yaml:"name" env:"NAME"`
	FFmpegPath string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Textfile receives the registry in text exposition format on exit.
	Textfile string `yaml:"textfile" env:"TEXTFILE"`
}

// SheetConfig configures contact sheet rendering.
type SheetConfig struct {
	Columns    int         `yaml:"columns" env:"COLUMNS"`
	ThumbWidth int         `yaml:"thumb_width" env:"THUMB_WIDTH"`
	Gap        int         `yaml:"gap" env:"GAP"`
	Padding    int         `yaml:"padding" env:"PADDING"`
	Workers    int         `yaml:"workers" env:"WORKERS"`
	Labels     bool        `yaml:"labels" env:"LABELS"`
	Theme      ThemeConfig `yaml:"theme" envPrefix:"THEME_"`
}

// ThemeConfig represents theming options.
type ThemeConfig struct {
	BackgroundColor string `yaml:"background_color" env:"BACKGROUND_COLOR"`
	TextColor       string `yaml:"text_color" env:"TEXT_COLOR"`
	BorderColor     string `yaml:"border_color" env:"BORDER_COLOR"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Extraction: ExtractionConfig{
			MinKeyframeInterval: keyframes.DefaultMinInterval,
			SeekRetries:         extractor.DefaultSeekRetryCount,
			FrameCountSource:    string(extractor.FrameCountFromDuration),
		},
		Grabber: GrabberConfig{
			ConvertTo16Bit: true,
		},
		Backend: BackendConfig{
			Name: BackendAuto,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatConsole,
		},
		Sheet: SheetConfig{
			Columns:    4,
			ThumbWidth: 240,
			Gap:        8,
			Padding:    16,
			Workers:    4,
			Labels:     true,
			Theme: ThemeConfig{
				BackgroundColor: "#1a1a2e",
				TextColor:       "#ffffff",
				BorderColor:     "#333355",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overrides cfg with any FRAMEGRAB_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Load resolves the full configuration. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	switch extractor.FrameCountSource(c.Extraction.FrameCountSource) {
	case extractor.FrameCountFromDuration, extractor.FrameCountFromPackets:
	default:
		return fmt.Errorf("%w: frame_count_source %q", ErrInvalid, c.Extraction.FrameCountSource)
	}
	switch c.Backend.Name {
	case BackendAuto, BackendLibav, BackendFFmpeg:
	default:
		return fmt.Errorf("%w: backend %q", ErrInvalid, c.Backend.Name)
	}
	switch c.Log.Format {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
	}
	if _, err := grabber.ParseCameraType(c.Grabber.CameraType); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Extraction.MinKeyframeInterval < 1 {
		return fmt.Errorf("%w: min_keyframe_interval %d", ErrInvalid, c.Extraction.MinKeyframeInterval)
	}
	if c.Extraction.SeekRetries < 1 {
		return fmt.Errorf("%w: seek_retries %d", ErrInvalid, c.Extraction.SeekRetries)
	}
	if c.Sheet.Columns < 1 || c.Sheet.ThumbWidth < 1 || c.Sheet.Workers < 1 {
		return fmt.Errorf("%w: sheet columns, thumb_width and workers must be positive", ErrInvalid)
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c Config) LogLevel() ports.LogLevel {
	return ports.ParseLogLevel(c.Log.Level)
}

// ExtractorOptions converts Config to extractor.Options.
func (c Config) ExtractorOptions(log ports.Logger, observer ports.Observer) extractor.Options {
	return extractor.Options{
		MinKeyframeInterval: c.Extraction.MinKeyframeInterval,
		SeekRetryCount:      c.Extraction.SeekRetries,
		FrameCountSource:    extractor.FrameCountSource(c.Extraction.FrameCountSource),
		Logger:              log,
		Observer:            observer,
	}
}

// ParseColor parses a hex color string to color.Color.
func ParseColor(hex string) color.Color {
	if len(hex) == 0 {
		return color.Black
	}

	if hex[0] == '#' {
		hex = hex[1:]
	}

	if len(hex) != 6 {
		return color.Black
	}

	return color.RGBA{
		R: hexByte(hex[0], hex[1]),
		G: hexByte(hex[2], hex[3]),
		B: hexByte(hex[4], hex[5]),
		A: 255,
	}
}

func hexByte(hi, lo byte) uint8 {
	return hexValue(hi)<<4 | hexValue(lo)
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
