// Package mcpserver exposes the registered tools to MCP clients over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"crucible/pkg/llm"
	"crucible/pkg/tools"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	serverName    = "crucible"
	serverVersion = "1.0.0"
)

// Dispatcher resolves tool calls. *tools.Dispatcher implements it.
type Dispatcher interface {
	Schemas() []llm.ToolSchema
	Dispatch(ctx context.Context, name, rawArguments string) tools.Outcome
}

type MCPServer struct {
	server     *server.MCPServer
	dispatcher Dispatcher
	ctx        context.Context
}

// NewMCPServer registers every tool the dispatcher knows. Calls are routed
// through the dispatcher, so validation and error reporting match the chat
// path.
func NewMCPServer(ctx context.Context, dispatcher Dispatcher) *MCPServer {
	s := &MCPServer{
		server: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(true),
			server.WithLogging(),
		),
		dispatcher: dispatcher,
		ctx:        ctx,
	}

	for _, schema := range dispatcher.Schemas() {
		s.server.AddTool(toMCPTool(schema), s.handler(schema.Name))
		slog.Info("MCP tool registered", "tool", schema.Name)
	}

	s.server.AddNotificationHandler(func(notification mcp.JSONRPCNotification) {
		slog.Debug("Received MCP notification", "method", notification.Method)
	})

	return s
}

func toMCPTool(schema llm.ToolSchema) mcp.Tool {
	js := schema.JSONSchema()
	props, _ := js["properties"].(map[string]any)
	return mcp.Tool{
		Name:        schema.Name,
		Description: schema.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   schema.RequiredParameters(),
		},
	}
}

func (s *MCPServer) handler(name string) func(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	return func(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
		return s.call(name, arguments)
	}
}

func (s *MCPServer) call(name string, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if arguments == nil {
		arguments = map[string]interface{}{}
	}
	raw, err := json.Marshal(arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}

	outcome := s.dispatcher.Dispatch(s.ctx, name, string(raw))
	slog.Info("MCP tool call", "tool", name, "success", outcome.Success)

	return &mcp.CallToolResult{
		Content: []interface{}{
			mcp.TextContent{
				Type: "text",
				Text: outcome.Serialize(),
			},
		},
	}, nil
}

// Serve blocks serving JSON-RPC on stdin/stdout.
func (s *MCPServer) Serve() error {
	slog.Info("Starting MCP server")
	if err := server.ServeStdio(s.server); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("MCP server stopped")
	return nil
}
