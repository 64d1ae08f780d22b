// Package config loads searchchat settings from ~/.searchchat/config.toml,
// a local .env file and the process environment.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL      = "https://api.deepseek.com"
	DefaultModel        = "deepseek-chat"
	DefaultSystemPrompt = "你是一个联网助手。请回答用户问题。"
	DefaultMaxRounds    = 5
	DefaultMaxResults   = 3
	DefaultAddr         = "0.0.0.0"
	DefaultPort         = 8000
)

// Config is the on-disk configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Server    ServerConfig    `toml:"server"`
	Chat      ChatConfig      `toml:"chat"`
	ToolHost  ToolHostConfig  `toml:"toolhost"`
	Search    SearchConfig    `toml:"search"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// LLMConfig selects the chat-completions backend.
type LLMConfig struct {
	Provider   string `toml:"provider"` // "openai" (any compatible API) or "azure"
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"`
	APIVersion string `toml:"api_version,omitempty"` // azure only
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	Port int    `toml:"port"`
}

// ChatConfig controls the orchestrator loop.
type ChatConfig struct {
	MaxRounds    int    `toml:"max_rounds"`
	SystemPrompt string `toml:"system_prompt"`
}

// ToolHostConfig is the command spawned as the MCP tool subprocess.
// An empty command means "this binary, toolhost subcommand".
type ToolHostConfig struct {
	Command string   `toml:"command,omitempty"`
	Args    []string `toml:"args,omitempty"`
}

type SearchConfig struct {
	MaxResults int    `toml:"max_results"`
	Endpoint   string `toml:"endpoint,omitempty"`
	Region     string `toml:"region,omitempty"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// TelemetryConfig enables OpenTelemetry spans for the chat loop. Spans are
// logged at debug level.
type TelemetryConfig struct {
	Tracing bool `toml:"tracing"`
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			BaseURL:  DefaultBaseURL,
			Model:    DefaultModel,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
			Port: DefaultPort,
		},
		Chat: ChatConfig{
			MaxRounds:    DefaultMaxRounds,
			SystemPrompt: DefaultSystemPrompt,
		},
		Search: SearchConfig{
			MaxResults: DefaultMaxResults,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dir returns the config directory. SEARCHCHAT_HOME overrides ~/.searchchat.
func Dir() string {
	if d := os.Getenv("SEARCHCHAT_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".searchchat"
	}
	return filepath.Join(home, ".searchchat")
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file (if any), then applies .env and environment
// overrides. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(Path()); err == nil {
		if _, err := toml.DecodeFile(Path(), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", Path(), err)
		}
	}

	// .env is optional; existing environment variables win.
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// Save writes the config to Path() with owner-only permissions.
func (c *Config) Save() error {
	if err := os.MkdirAll(Dir(), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(Path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Addr, strconv.Itoa(c.Server.Port))
}

func (c *Config) applyEnv() {
	for _, name := range []string{"DEEPSEEK_API_KEY", "OPENAI_API_KEY", "API_KEY"} {
		if v := os.Getenv(name); v != "" {
			c.LLM.APIKey = v
			break
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		c.LLM.Model = v
	}
}

func (c *Config) fillDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == "openai" {
		c.LLM.BaseURL = DefaultBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.Port <= 0 {
		c.Server.Port = DefaultPort
	}
	if c.Chat.MaxRounds <= 0 {
		c.Chat.MaxRounds = DefaultMaxRounds
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = DefaultSystemPrompt
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = DefaultMaxResults
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
