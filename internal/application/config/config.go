// ABOUTME: YAML and JSONC configuration parsing and validation
// ABOUTME: Defines upstream stream, reconnect, HTTP listen, logging, and UI settings
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	ParserChunk = "chunk"
	ParserLine  = "line"
)

type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Source     SourceConfig     `yaml:"source"`
	Stream     StreamConfig     `yaml:"stream"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Bus        BusConfig        `yaml:"bus"`
	Logging    LoggingConfig    `yaml:"logging"`
	UI         UIConfig         `yaml:"ui"`
}

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type SourceConfig struct {
	URL              string            `yaml:"url"`
	RequestHeaders   map[string]string `yaml:"request_headers"`
	ConnectTimeoutMs int               `yaml:"connect_timeout_ms"`
}

type StreamConfig struct {
	// Parser is "chunk" (each read parsed on its own) or "line"
	// (frames reassembled across reads).
	Parser          string `yaml:"parser"`
	ReadBufferBytes int    `yaml:"read_buffer_bytes"`
	BackoffMs       int    `yaml:"backoff_ms"`
}

type SupervisorConfig struct {
	Restart bool `yaml:"restart"`
}

type BusConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type UIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ThemeColor string `yaml:"theme_color"`
}

func Default() *Config {
	return &Config{
		Listen: ListenConfig{Host: "127.0.0.1", Port: 8000},
		Source: SourceConfig{
			URL:              "https://startend.xyz/current/stream",
			ConnectTimeoutMs: 10000,
		},
		Stream: StreamConfig{
			Parser:          ParserChunk,
			ReadBufferBytes: 8192,
			BackoffMs:       5000,
		},
		Supervisor: SupervisorConfig{Restart: true},
		Bus:        BusConfig{SubscriberBuffer: 16},
		Logging:    LoggingConfig{Level: "info"},
		UI:         UIConfig{ThemeColor: "#7dcfff"},
	}
}

// Load reads path over the defaults. Files ending in .json or .jsonc may
// carry comments and trailing commas.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Source.URL == "" {
		errs = append(errs, errors.New("source.url is required"))
	}
	if c.Stream.BackoffMs <= 0 {
		errs = append(errs, fmt.Errorf("stream.backoff_ms must be positive, got %d", c.Stream.BackoffMs))
	}
	if c.Stream.Parser != ParserChunk && c.Stream.Parser != ParserLine {
		errs = append(errs, fmt.Errorf("stream.parser must be %q or %q, got %q", ParserChunk, ParserLine, c.Stream.Parser))
	}
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port out of range: %d", c.Listen.Port))
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Stream.BackoffMs) * time.Millisecond
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Source.ConnectTimeoutMs) * time.Millisecond
}

// Addr is the host:port the HTTP surface listens on. Port 0 disables it.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Listen.Host, c.Listen.Port)
}

func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", l.Level)
	}
}
