package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.loop/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	// APIBaseURL is the backend REST base, including the /api path.
	APIBaseURL string `toml:"api_base_url"`
	// SocketURL is the websocket endpoint on the same origin.
	SocketURL string `toml:"socket_url"`

	HTTPTimeoutMS    int `toml:"http_timeout_ms"`
	TypingDebounceMS int `toml:"typing_debounce_ms"`
	ChatPageSize     int `toml:"chat_page_size"`
	MessagePageSize  int `toml:"message_page_size"`
}

// Default returns a config with the stock backend endpoints and tunables.
func Default() *Config {
	return &Config{
		APIBaseURL:       "http://localhost:5000/api",
		SocketURL:        "ws://localhost:5000/socket",
		HTTPTimeoutMS:    15000,
		TypingDebounceMS: 3000,
		ChatPageSize:     10,
		MessagePageSize:  20,
	}
}

// Load reads config from the given path, fills unset fields with defaults
// and applies LOOP_API_URL / LOOP_SOCKET_URL environment overrides.
// Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// HTTPTimeout returns the gateway request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// TypingDebounce returns the trailing stop_typing debounce interval.
func (c *Config) TypingDebounce() time.Duration {
	return time.Duration(c.TypingDebounceMS) * time.Millisecond
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.APIBaseURL == "" {
		c.APIBaseURL = d.APIBaseURL
	}
	if c.SocketURL == "" {
		c.SocketURL = d.SocketURL
	}
	if c.HTTPTimeoutMS <= 0 {
		c.HTTPTimeoutMS = d.HTTPTimeoutMS
	}
	if c.TypingDebounceMS <= 0 {
		c.TypingDebounceMS = d.TypingDebounceMS
	}
	if c.ChatPageSize <= 0 {
		c.ChatPageSize = d.ChatPageSize
	}
	if c.MessagePageSize <= 0 {
		c.MessagePageSize = d.MessagePageSize
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOOP_API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("LOOP_SOCKET_URL"); v != "" {
		c.SocketURL = v
	}
}
