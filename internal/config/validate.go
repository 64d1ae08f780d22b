package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is returned when no usable model API key is configured.
var ErrMissingAPIKey = errors.New("API key not set: add DEEPSEEK_API_KEY to .env or set llm.api_key")

// placeholderKeys are values shipped in example .env files.
var placeholderKeys = map[string]bool{
	"":                  true,
	"sk-":               true,
	"your-api-key-here": true,
}

// Validate checks that the config has all required fields.
func (c *Config) Validate() error {
	if placeholderKeys[strings.TrimSpace(c.LLM.APIKey)] {
		return ErrMissingAPIKey
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url is required")
		}
	case "azure":
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url (Azure endpoint) is required for provider %q", c.LLM.Provider)
		}
		if c.LLM.APIVersion == "" {
			return fmt.Errorf("llm.api_version is required for provider %q", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("llm.provider must be one of: openai, azure")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Chat.MaxRounds < 1 {
		return fmt.Errorf("chat.max_rounds must be at least 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}

// Redact returns a copy of the config with API keys masked for display.
func (c *Config) Redact() *Config {
	copy := *c
	copy.LLM.APIKey = redactKey(c.LLM.APIKey)
	return &copy
}

func redactKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
