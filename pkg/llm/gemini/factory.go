package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"crucible/pkg/config"
	"crucible/pkg/llm"
)

// GeminiFactory handles creation of Gemini Clients
type GeminiFactory struct{}

// Create implements ProviderFactory
func (f *GeminiFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.Engine, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("gemini group needs at least one api key")
	}
	if sys == nil {
		sys = config.DefaultSystemConfig()
	}

	// Determine thinking mode from unified options
	useThought := false
	if effort, ok := cfg.Options["thinking_effort"].(string); ok && effort != "" && effort != "off" {
		useThought = true
	}

	var engines []llm.Engine
	// Cartesian Product: Models x Keys (prioritize models)
	for _, model := range cfg.Models {
		for _, key := range cfg.APIKeys {
			client, err := NewGeminiClient(context.Background(), key, model, cfg.BaseURL, useThought, cfg.Options)
			if err != nil {
				slog.Error("Failed to create Gemini client", "model", model, "error", err)
				continue
			}
			client.SetDebug(sys.DebugRequests)
			client.SetTimeout(time.Duration(sys.LLMTimeoutMs) * time.Millisecond)
			engines = append(engines, client)
		}
	}
	return engines, nil
}

func init() {
	llm.RegisterProvider("gemini", &GeminiFactory{})
}
