package web

import (
	"fmt"

	"crucible/pkg/channels"

	jsoniter "github.com/json-iterator/go"
)

// WebFactory creates the WebSocket front-end.
type WebFactory struct{}

// Create implements channels.ChannelFactory.
func (f *WebFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (channels.Channel, error) {
	if !channels.Enabled(rawConfig) {
		return nil, nil
	}

	cfg := WebConfig{Port: 8080}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse web config: %w", err)
		}
	}

	return NewWebChannel(cfg, deps), nil
}

func init() {
	channels.RegisterChannel("web", &WebFactory{})
}
