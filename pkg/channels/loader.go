package channels

import (
	"log/slog"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoadFromConfig resolves a factory for every configured channel and
// returns the created channels, sorted by name. Unknown or broken entries
// are logged and skipped.
func LoadFromConfig(configs map[string]jsoniter.RawMessage, deps Deps) []Channel {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	var loaded []Channel
	for _, name := range names {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name)
			continue
		}

		channel, err := factory.Create(configs[name], deps)
		if err != nil {
			slog.Error("Failed to create channel", "name", name, "error", err)
			continue
		}

		// If Create returns nil (e.g., disabled in config), skip
		if channel == nil {
			continue
		}

		loaded = append(loaded, channel)
		slog.Info("Channel registered", "name", name)
	}
	return loaded
}

// Enabled is the common "enabled" switch every channel config may carry.
// A missing key means enabled.
func Enabled(rawConfig jsoniter.RawMessage) bool {
	if len(rawConfig) == 0 {
		return true
	}
	var c struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(rawConfig, &c); err != nil || c.Enabled == nil {
		return true
	}
	return *c.Enabled
}
