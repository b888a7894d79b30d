// Package gateway owns the lifecycle of the active front-end channels.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"crucible/pkg/channels"
)

// GatewayManager starts and stops every registered channel together.
type GatewayManager struct {
	channels map[string]channels.Channel
	started  []string
	mu       sync.RWMutex
}

// NewGatewayManager creates an empty manager.
func NewGatewayManager() *GatewayManager {
	return &GatewayManager{
		channels: make(map[string]channels.Channel),
	}
}

// Register adds a channel, replacing any channel with the same ID.
func (g *GatewayManager) Register(c channels.Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
}

// GetChannel returns the channel with the given ID.
func (g *GatewayManager) GetChannel(id string) (channels.Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// IDs lists the registered channel IDs in order.
func (g *GatewayManager) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.channels))
	for id := range g.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartAll starts every channel in ID order. On the first failure the
// channels already started are stopped again.
func (g *GatewayManager) StartAll(ctx context.Context) error {
	ids := g.IDs()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range ids {
		slog.Info("Starting channel", "channel", id)
		if err := g.channels[id].Start(ctx); err != nil {
			g.stopLocked()
			return fmt.Errorf("failed to start channel %s: %w", id, err)
		}
		g.started = append(g.started, id)
	}
	return nil
}

// StopAll stops the started channels in reverse order.
func (g *GatewayManager) StopAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
}

func (g *GatewayManager) stopLocked() {
	for i := len(g.started) - 1; i >= 0; i-- {
		id := g.started[i]
		slog.Info("Stopping channel", "channel", id)
		if err := g.channels[id].Stop(); err != nil {
			slog.Warn("Error stopping channel", "channel", id, "error", err)
		}
	}
	g.started = nil
}
