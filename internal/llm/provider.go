// Package llm connects the chat orchestrator to OpenAI-compatible
// chat-completions APIs (DeepSeek, OpenAI, Kimi, Azure OpenAI, vLLM, etc.).
package llm

import (
	"errors"
	"fmt"

	"github.com/clawplaza/searchchat/internal/chat"
	"github.com/clawplaza/searchchat/internal/config"
)

// ErrNoChoices is returned when the API response has no choices.
var ErrNoChoices = errors.New("LLM returned empty choices")

// Provider is a model service with a display name.
type Provider interface {
	chat.Completer
	// Name returns the provider name for display.
	Name() string
}

// NewProvider creates a provider based on the config.
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "azure":
		return NewAzure(cfg.BaseURL, cfg.APIVersion, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
