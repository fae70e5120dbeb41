// Package config loads voicechat settings from a YAML file and
// VOICECHAT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Session SessionConfig `mapstructure:"session"`
	History HistoryConfig `mapstructure:"history"`
	Hotkey  HotkeyConfig  `mapstructure:"hotkey"`
	Log     LogConfig     `mapstructure:"log"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type AudioConfig struct {
	Encoding   string `mapstructure:"encoding" validate:"oneof=opus flac wav"`
	SampleRate int    `mapstructure:"sample_rate" validate:"oneof=8000 12000 16000 24000 48000"`
	Device     string `mapstructure:"device"`
	Beep       bool   `mapstructure:"beep"`
}

type SessionConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=10ms"`
	TempDir      string        `mapstructure:"temp_dir"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Limit   int    `mapstructure:"limit" validate:"gte=0"`
}

type HotkeyConfig struct {
	Hybrid    bool          `mapstructure:"hybrid"`
	LongPress time.Duration `mapstructure:"long_press" validate:"min=50ms"`
}

type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Debug bool   `mapstructure:"debug"`
}

// DefaultPath is where Load looks when no file is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "voicechat", "config.yaml")
}

func setDefault(v *viper.Viper) {
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", time.Duration(0))

	v.SetDefault("audio.encoding", "opus")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.beep", true)

	v.SetDefault("session.poll_interval", 100*time.Millisecond)
	v.SetDefault("session.temp_dir", os.TempDir())

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.limit", 50)

	v.SetDefault("hotkey.hybrid", false)
	v.SetDefault("hotkey.long_press", 350*time.Millisecond)

	v.SetDefault("log.dir", "")
	v.SetDefault("log.debug", false)
}

// New returns a viper instance with defaults and environment binding.
// path may be empty, in which case DefaultPath is tried and a missing
// file is not an error.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefault(v)

	v.SetEnvPrefix("VOICECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return v, nil
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}
