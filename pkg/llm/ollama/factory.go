package ollama

import (
	"log/slog"
	"time"

	"crucible/pkg/config"
	"crucible/pkg/llm"
)

// OllamaFactory handles creation of Ollama Clients
type OllamaFactory struct{}

// Create implements ProviderFactory. An empty base_url falls back to the
// system default.
func (f *OllamaFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.Engine, error) {
	if sys == nil {
		sys = config.DefaultSystemConfig()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sys.OllamaDefaultURL
	}
	timeout := time.Duration(sys.LLMTimeoutMs) * time.Millisecond

	var engines []llm.Engine
	for _, model := range cfg.Models {
		client, err := NewOllamaClient(model, baseURL, timeout, cfg.Options)
		if err != nil {
			slog.Error("Failed to create Ollama client", "model", model, "error", err)
			continue
		}
		client.SetDebug(sys.DebugRequests)
		engines = append(engines, client)
	}
	return engines, nil
}

func init() {
	llm.RegisterProvider("ollama", &OllamaFactory{})
}
