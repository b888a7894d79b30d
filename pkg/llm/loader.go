package llm

import (
	"fmt"
	"log/slog"
	"time"

	"crucible/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// NewFromConfig builds the process-wide engine from the 'llm' config section.
// Several models are wrapped in a FallbackEngine using the system retry settings.
func NewFromConfig(rawLLM jsoniter.RawMessage, system *config.SystemConfig) (Engine, error) {
	if len(rawLLM) == 0 {
		return nil, fmt.Errorf("missing 'llm' config")
	}
	if system == nil {
		system = config.DefaultSystemConfig()
	}

	var groups []ProviderGroupConfig
	if err := json.Unmarshal(rawLLM, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse 'llm' config: %w", err)
	}

	var engines []Engine
	for _, group := range groups {
		slog.Info("Loading LLM group", "type", group.Type, "models", len(group.Models))

		factory, ok := GetProviderFactory(group.Type)
		if !ok {
			slog.Warn("Unknown provider type", "type", group.Type)
			continue
		}

		created, err := factory.Create(group, system)
		if err != nil {
			slog.Warn("Failed to create engines", "type", group.Type, "error", err)
			continue
		}
		engines = append(engines, created...)
	}

	if len(engines) == 0 {
		return nil, fmt.Errorf("no LLM engines could be initialized")
	}

	slog.Info("LLM engines initialized", "count", len(engines))

	if len(engines) == 1 {
		return engines[0], nil
	}

	return &FallbackEngine{
		Engines:    engines,
		MaxRetries: system.MaxRetries,
		RetryDelay: time.Duration(system.RetryDelayMs) * time.Millisecond,
	}, nil
}
