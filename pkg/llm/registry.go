package llm

import (
	"crucible/pkg/config"
)

// ProviderGroupConfig is the configuration of one group of models served by
// the same provider.
type ProviderGroupConfig struct {
	Type    string         `json:"type"`
	APIKeys []string       `json:"api_keys,omitempty"`
	Models  []string       `json:"models"`
	BaseURL string         `json:"base_url,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// ProviderFactory builds engines for a provider group.
type ProviderFactory interface {
	// Create builds one engine per configured model.
	Create(groupConfig ProviderGroupConfig, systemConfig *config.SystemConfig) ([]Engine, error)
}

var providerRegistry = make(map[string]ProviderFactory)

// RegisterProvider registers a provider factory, usually from init().
func RegisterProvider(name string, factory ProviderFactory) {
	providerRegistry[name] = factory
}

// GetProviderFactory looks up a provider factory by name.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	f, ok := providerRegistry[name]
	return f, ok
}
