// internal/config/config.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"allora/internal/completion"
	"allora/internal/prompt"
	"allora/internal/splice"
)

// Replace policies for the first chunk of a completion.
const (
	ReplaceAuto   = "auto"
	ReplaceAlways = "always"
	ReplaceNever  = "never"
)

type EndpointConfig struct {
	URL    string `yaml:"url" toml:"url"`
	API    string `yaml:"api" toml:"api"` // openai, legacy
	APIKey string `yaml:"api_key,omitempty" toml:"api_key"`
	Model  string `yaml:"model,omitempty" toml:"model"`
}

type GenerationConfig struct {
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
	TopP        float64 `yaml:"top_p" toml:"top_p"`
	Stream      bool    `yaml:"stream" toml:"stream"`
	Stop        string  `yaml:"stop" toml:"stop"`
}

type KeyboardConfig struct {
	Placeholder string `yaml:"placeholder" toml:"placeholder"`
	Replace     string `yaml:"replace" toml:"replace"` // auto, always, never
}

type Config struct {
	Endpoint   EndpointConfig   `yaml:"endpoint" toml:"endpoint"`
	Generation GenerationConfig `yaml:"generation" toml:"generation"`
	Keyboard   KeyboardConfig   `yaml:"keyboard" toml:"keyboard"`
	Defaults   struct {
		Timeout       int `yaml:"timeout" toml:"timeout"` // seconds
		RetryAttempts int `yaml:"retry_attempts" toml:"retry_attempts"`
		RetryDelay    int `yaml:"retry_delay" toml:"retry_delay"` // milliseconds
	} `yaml:"defaults" toml:"defaults"`
	History struct {
		Enabled bool   `yaml:"enabled" toml:"enabled"`
		Path    string `yaml:"path,omitempty" toml:"path"`
	} `yaml:"history" toml:"history"`
	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"` // text, json
		File   string `yaml:"file,omitempty" toml:"file"`
	} `yaml:"log" toml:"log"`
}

// Load reads the config at Path, or returns defaults if there is none.
func Load() (*Config, error) {
	cfg, err := LoadFile(Path())
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// LoadFile reads a YAML config, or TOML when path ends in .toml.
// Environment variables in the file are expanded.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := defaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	req := completion.DefaultRequestConfig()

	cfg := &Config{}
	cfg.Endpoint.URL = req.Endpoint
	cfg.Endpoint.API = string(req.API)
	cfg.Generation.MaxTokens = req.MaxTokens
	cfg.Generation.Temperature = req.Temperature
	cfg.Generation.TopP = req.TopP
	cfg.Generation.Stream = req.Stream
	cfg.Generation.Stop = req.Stop
	cfg.Keyboard.Placeholder = splice.DefaultPlaceholder
	cfg.Keyboard.Replace = ReplaceAuto
	cfg.Defaults.Timeout = 120
	cfg.Defaults.RetryAttempts = 1
	cfg.Defaults.RetryDelay = 1000
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Endpoint.API == "" {
		cfg.Endpoint.API = string(completion.APIOpenAI)
	}
	if cfg.Keyboard.Replace == "" {
		cfg.Keyboard.Replace = ReplaceAuto
	}
	if cfg.Defaults.Timeout == 0 {
		cfg.Defaults.Timeout = 120
	}
	if cfg.Defaults.RetryAttempts == 0 {
		cfg.Defaults.RetryAttempts = 1
	}
	if cfg.Defaults.RetryDelay == 0 {
		cfg.Defaults.RetryDelay = 1000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate reports the first setting that makes requests impossible.
func (c *Config) Validate() error {
	if err := c.RequestConfig().Validate(); err != nil {
		return err
	}
	switch c.Keyboard.Replace {
	case ReplaceAuto, ReplaceAlways, ReplaceNever:
	default:
		return &completion.ConfigError{
			Field: "keyboard.replace",
			Value: c.Keyboard.Replace,
			Err:   errors.New("must be auto, always or never"),
		}
	}
	return nil
}

// RequestConfig returns the per-request knobs.
func (c *Config) RequestConfig() completion.RequestConfig {
	return completion.RequestConfig{
		Endpoint:    c.Endpoint.URL,
		API:         completion.API(c.Endpoint.API),
		APIKey:      c.Endpoint.APIKey,
		Model:       c.Endpoint.Model,
		MaxTokens:   c.Generation.MaxTokens,
		Temperature: c.Generation.Temperature,
		TopP:        c.Generation.TopP,
		Stream:      c.Generation.Stream,
		Stop:        c.Generation.Stop,
	}
}

// ReplaceAll reports whether a completion for mode replaces the text
// before the cursor.
func (c *Config) ReplaceAll(mode prompt.Mode) bool {
	return ReplaceAllFor(c.Keyboard.Replace, mode)
}

// ReplaceAllFor applies a replace policy to mode. Unknown policies behave
// like auto.
func ReplaceAllFor(policy string, mode prompt.Mode) bool {
	switch policy {
	case ReplaceAlways:
		return true
	case ReplaceNever:
		return false
	default:
		return mode.ReplacesText()
	}
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Defaults.Timeout) * time.Second
}

func (c *Config) Retry() completion.RetryConfig {
	return completion.RetryConfig{
		MaxAttempts: c.Defaults.RetryAttempts,
		BaseDelay:   time.Duration(c.Defaults.RetryDelay) * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// HistoryPath returns the history database path.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "allora", "history.db")
}

// LogPath returns the log file used while the terminal UI owns the screen.
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), "allora", "allora.log")
}

// Path returns the config file location.
// Resolution order: $ALLORA_CONFIG > $XDG_CONFIG_HOME/allora > user config dir.
func Path() string {
	if p := os.Getenv("ALLORA_CONFIG"); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "allora", "config.yaml")
	}
	configDir, _ := os.UserConfigDir()
	if configDir == "" {
		configDir = os.ExpandEnv("$HOME/.config")
	}
	return filepath.Join(configDir, "allora", "config.yaml")
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}
