package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"crucible/pkg/agent"
	"crucible/pkg/channels"
	_ "crucible/pkg/channels/autoload" // registers front-ends
	"crucible/pkg/channels/terminal"
	"crucible/pkg/config"
	"crucible/pkg/gateway"
	"crucible/pkg/llm"
	_ "crucible/pkg/llm/autoload" // registers engine providers
	"crucible/pkg/material"
	"crucible/pkg/mcpserver"
	"crucible/pkg/monitor"
	"crucible/pkg/tools"
)

func main() {
	configPath := flag.String("config", "config.json", "application config file")
	systemPath := flag.String("system", "system.json", "engine settings file")
	mcpMode := flag.Bool("mcp", false, "serve the tools over MCP stdio instead of chatting")
	flag.Parse()

	if err := run(*configPath, *systemPath, *mcpMode); err != nil {
		fmt.Fprintf(os.Stderr, "crucible: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, systemPath string, mcpMode bool) error {
	// --- 0. Config ---
	cfg, sys, err := config.Load(configPath, systemPath)
	if err != nil {
		return err
	}
	monitor.SetupSlog(sys.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 1. Tools ---
	classifier, err := material.LoadClassifier(cfg.Material.ReferencesFile)
	if err != nil {
		return fmt.Errorf("failed to load material references: %w", err)
	}
	registry := tools.NewToolRegistry()
	registry.Register(tools.NewIdentifyMaterialTool(classifier))
	dispatcher := tools.NewDispatcher(registry)

	if mcpMode {
		return mcpserver.NewMCPServer(ctx, dispatcher).Serve()
	}

	// --- 2. Engine ---
	engine, err := llm.NewFromConfig(cfg.LLM, sys)
	if err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	// --- 3. Orchestrator ---
	// Tool activity is printed by the terminal channel for its own session.
	opts := append(agent.FromSystemConfig(sys), agent.WithSystemPrompt(cfg.Prompt()))
	orchestrator := agent.New(engine, dispatcher, opts...)

	go watchPrompt(ctx, configPath, orchestrator)

	// --- 4. Front-ends ---
	deps := channels.Deps{
		Chat:     orchestrator,
		Sessions: llm.NewSessionManager(),
		System:   sys,
		Shutdown: stop,
	}
	gw := gateway.NewGatewayManager()
	for _, ch := range channels.LoadFromConfig(cfg.Channels, deps) {
		gw.Register(ch)
	}
	if len(gw.IDs()) == 0 {
		gw.Register(terminal.New(os.Stdin, os.Stdout, deps))
	}

	if err := gw.StartAll(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Stopping services...")
	gw.StopAll()
	slog.Info("Bye!")
	return nil
}

// watchPrompt swaps the system prompt whenever config.json changes.
func watchPrompt(ctx context.Context, configPath string, o *agent.Orchestrator) {
	for range config.WatchConfig(ctx, config.DefaultDebounce, configPath) {
		cfg, err := config.LoadApp(configPath)
		if err != nil {
			slog.Warn("Ignoring invalid config change", "error", err)
			continue
		}
		if prompt := cfg.Prompt(); prompt != o.SystemPrompt() {
			o.SetSystemPrompt(prompt)
			slog.Info("System prompt reloaded")
		}
	}
}
