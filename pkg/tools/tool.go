package tools

import (
	"context"
	"sort"
	"sync"

	"crucible/pkg/llm"
)

// Tool is a capability the engine can invoke. Schema describes it to the
// engine; Execute runs it with already validated and coerced arguments.
type Tool interface {
	Schema() llm.ToolSchema
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ToolRegistry is the inventory of tools available to the engine. It is
// filled at startup and only read afterwards.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool, replacing any tool with the same name.
func (tr *ToolRegistry) Register(tool Tool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.tools[tool.Schema().Name] = tool
}

// Unregister removes a tool.
func (tr *ToolRegistry) Unregister(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.tools, name)
}

// Get retrieves a tool by name.
func (tr *ToolRegistry) Get(name string) (Tool, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	tool, ok := tr.tools[name]
	return tool, ok
}

// GetAll returns every registered tool sorted by name.
func (tr *ToolRegistry) GetAll() []Tool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	tools := make([]Tool, 0, len(tr.tools))
	for _, tool := range tr.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Schema().Name < tools[j].Schema().Name
	})
	return tools
}

// Schemas returns the schemas of every registered tool sorted by name.
func (tr *ToolRegistry) Schemas() []llm.ToolSchema {
	all := tr.GetAll()
	schemas := make([]llm.ToolSchema, len(all))
	for i, t := range all {
		schemas[i] = t.Schema()
	}
	return schemas
}
