package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultSystemPrompt is the instruction prepended to every request when
// config.json does not set one.
const DefaultSystemPrompt = `You are CRUCIBLE, a material science assistant that helps identify materials from spectroscopic data.

Your main capability is identifying materials using Raman spectroscopy data. You have access to a tool called 'identify_material' that requires three parameters:
- peak_1: First Raman peak in cm^-1
- peak_2: Second Raman peak in cm^-1
- formation_energy: Formation energy in eV/atom

When users provide this data, use the tool to identify the material. If data is missing, politely ask for it.

Be concise, scientific, and helpful. Explain your identifications briefly.`

// DefaultFallbackMessage is returned when the tool cycle cap is reached
// without a direct answer.
const DefaultFallbackMessage = "I had trouble processing that request. Could you rephrase?"

// Config is the application configuration stored in config.json.
type Config struct {
	// Channels maps a front-end name ("web") to its raw configuration.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// LLM holds the provider groups in raw JSON; package llm parses it.
	LLM jsoniter.RawMessage `json:"llm"`
	// SystemPrompt is the instruction prepended to every engine request.
	SystemPrompt string `json:"system_prompt"`
	// Material configures the identification function.
	Material MaterialConfig `json:"material"`
}

// MaterialConfig configures the reference classifier.
type MaterialConfig struct {
	// ReferencesFile points to a YAML reference table. Empty uses the
	// table embedded in the binary.
	ReferencesFile string `json:"references_file"`
}

// Validate checks the mandatory fields.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return fmt.Errorf("mandatory 'llm' configuration is missing or empty")
	}
	return nil
}

// Prompt returns the configured system prompt or the default one.
func (c *Config) Prompt() string {
	if c.SystemPrompt == "" {
		return DefaultSystemPrompt
	}
	return c.SystemPrompt
}

// SystemConfig holds engine-level parameters stored in system.json.
type SystemConfig struct {
	// MaxToolCycles caps the engine calls made for one user message.
	MaxToolCycles int `json:"max_tool_cycles"`
	// MaxRetries is the number of attempts per provider on transient errors.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the base wait between retries.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs bounds one engine call. Enforced by the engine clients.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// OllamaDefaultURL is used when an ollama group has no base_url.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// DebugRequests dumps raw engine requests/responses under debug/.
	DebugRequests bool `json:"debug_requests"`
	// LogLevel is one of "debug", "info", "warn", "error". Default: "info".
	LogLevel string `json:"log_level"`
	// EnableTools toggles tool calling. When false the engine only answers.
	EnableTools bool `json:"enable_tools"`
	// FallbackMessage overrides DefaultFallbackMessage.
	FallbackMessage string `json:"fallback_message"`
}

// DefaultSystemConfig returns safe defaults, used when system.json is
// missing or corrupt.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxToolCycles:    3,
		MaxRetries:       3,
		RetryDelayMs:     500,
		LLMTimeoutMs:     120000,
		OllamaDefaultURL: "http://localhost:11434",
		LogLevel:         "info",
		EnableTools:      true,
		FallbackMessage:  DefaultFallbackMessage,
	}
}

// Load reads the application config (mandatory) and the system config
// (optional, defaults on any failure).
func Load(appPath, systemPath string) (*Config, *SystemConfig, error) {
	cfg, err := LoadApp(appPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, LoadSystemConfig(systemPath), nil
}

// LoadApp reads and validates the application config.
func LoadApp(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file '%s' not found. please create one", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSystemConfig loads system settings, returning defaults if it fails.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultSystemConfig()
	}
	if cfg.MaxToolCycles <= 0 {
		cfg.MaxToolCycles = 3
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = DefaultFallbackMessage
	}
	return cfg
}
