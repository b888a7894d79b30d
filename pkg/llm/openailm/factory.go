package openailm

import (
	"log/slog"
	"time"

	"crucible/pkg/config"
	"crucible/pkg/llm"
)

// OpenAIFactory handles creation of OpenAI Clients
type OpenAIFactory struct{}

// Create implements ProviderFactory
func (f *OpenAIFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.Engine, error) {
	var engines []llm.Engine

	// Local OpenAI-compatible servers accept any key
	apiKey := "not-needed"
	if len(cfg.APIKeys) > 0 && cfg.APIKeys[0] != "" {
		apiKey = cfg.APIKeys[0]
	}

	for _, model := range cfg.Models {
		client := NewClient(cfg.Type, apiKey, model, cfg.BaseURL, cfg.Options)
		if sys != nil {
			client.SetDebug(sys.DebugRequests)
			client.SetTimeout(time.Duration(sys.LLMTimeoutMs) * time.Millisecond)
		}
		slog.Info("OpenAI client initialized", "provider", cfg.Type, "model", model, "base_url", cfg.BaseURL)
		engines = append(engines, client)
	}
	return engines, nil
}

func init() {
	llm.RegisterProvider("openai", &OpenAIFactory{})
	llm.RegisterProvider("llamacpp", &OpenAIFactory{})
}
