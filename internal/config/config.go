package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. CAPTUREWAV_AUDIO_MIX_RATE
const EnvPrefix = "CAPTUREWAV"

const (
	MinMixRate = 8000
	MaxMixRate = 384000
)

type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

type AudioConfig struct {
	MixRate       int     `mapstructure:"mix_rate" yaml:"mix_rate"`
	BufferMs      int     `mapstructure:"buffer_ms" yaml:"buffer_ms"`
	Source        string  `mapstructure:"source" yaml:"source"` // "tone", "stdin", "pipewire", "pulse"
	Target        string  `mapstructure:"target" yaml:"target"` // pipewire node, empty = default source
	BlockFrames   int     `mapstructure:"block_frames" yaml:"block_frames"`
	ToneHz        float64 `mapstructure:"tone_hz" yaml:"tone_hz"`
	ToneAmplitude float64 `mapstructure:"tone_amplitude" yaml:"tone_amplitude"`
}

type OutputConfig struct {
	SavePath string `mapstructure:"save_path" yaml:"save_path"`
}

type CaptureConfig struct {
	IdleWait      time.Duration `mapstructure:"idle_wait" yaml:"idle_wait"`
	HeaderRefresh time.Duration `mapstructure:"header_refresh" yaml:"header_refresh"` // 0 = after every drain
	JoinTimeout   time.Duration `mapstructure:"join_timeout" yaml:"join_timeout"`
}

// MarshalYAML writes durations the way they are read back
func (c CaptureConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{
		"idle_wait":      c.IdleWait.String(),
		"header_refresh": c.HeaderRefresh.String(),
		"join_timeout":   c.JoinTimeout.String(),
	}, nil
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

var defaults = map[string]interface{}{
	"audio.mix_rate":         44100,
	"audio.buffer_ms":        1500,
	"audio.source":           "tone",
	"audio.target":           "",
	"audio.block_frames":     512,
	"audio.tone_hz":          440.0,
	"audio.tone_amplitude":   0.5,
	"output.save_path":       "~/Audio/capturewav/recording",
	"capture.idle_wait":      "500us",
	"capture.header_refresh": "0s",
	"capture.join_timeout":   "5s",
	"log.level":              "info",
	"log.file":               "",
	"log.max_size_mb":        10,
	"log.max_backups":        3,
	"log.compress":           false,
	"server.port":            "8080",
}

var validSources = []string{"tone", "stdin", "pipewire", "pulse"}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfigFile returns $HOME/.config/capturewav.yaml
func DefaultConfigFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "capturewav.yaml"
	}
	return filepath.Join(homeDir, ".config", "capturewav.yaml")
}

// Default returns the built-in configuration
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("invalid built-in configuration: %v", err))
	}
	return cfg
}

// Load reads configFile on top of the defaults and applies CAPTUREWAV_*
// environment overrides. A missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := newViper()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Output.SavePath = ExpandPath(cfg.Output.SavePath)
	cfg.Log.File = ExpandPath(cfg.Log.File)
	return &cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	if c.Audio.MixRate < MinMixRate || c.Audio.MixRate > MaxMixRate {
		return fmt.Errorf("audio.mix_rate must be between %d and %d, got %d", MinMixRate, MaxMixRate, c.Audio.MixRate)
	}
	if c.Audio.BufferMs <= 0 {
		return fmt.Errorf("audio.buffer_ms must be positive, got %d", c.Audio.BufferMs)
	}
	if c.Audio.BlockFrames <= 0 {
		return fmt.Errorf("audio.block_frames must be positive, got %d", c.Audio.BlockFrames)
	}
	if !contains(validSources, strings.ToLower(c.Audio.Source)) {
		return fmt.Errorf("audio.source '%s' is not supported (valid: %s)", c.Audio.Source, strings.Join(validSources, ", "))
	}
	if strings.TrimSpace(c.Output.SavePath) == "" {
		return fmt.Errorf("output.save_path is required")
	}
	if c.Capture.IdleWait <= 0 {
		return fmt.Errorf("capture.idle_wait must be positive, got %s", c.Capture.IdleWait)
	}
	if c.Capture.HeaderRefresh < 0 {
		return fmt.Errorf("capture.header_refresh cannot be negative, got %s", c.Capture.HeaderRefresh)
	}
	if c.Capture.JoinTimeout < 0 {
		return fmt.Errorf("capture.join_timeout cannot be negative, got %s", c.Capture.JoinTimeout)
	}
	if !contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("log.level '%s' is not supported (valid: %s)", c.Log.Level, strings.Join(validLogLevels, ", "))
	}
	return nil
}

// UpdateSavePath updates output.save_path in the config file, creating the
// file if needed
func UpdateSavePath(configFile, savePath string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Separate viper instance so that defaults are not written out
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}

	v.Set("output.save_path", savePath)

	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// ExpandPath replaces a leading ~/ with the user home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
