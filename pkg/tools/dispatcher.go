package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"crucible/pkg/llm"
)

// Dispatcher resolves tool invocations against a registry. It is stateless
// and safe to share across sessions; failures come back as Outcomes and
// never escape as errors or panics.
type Dispatcher struct {
	registry *ToolRegistry
}

// NewDispatcher creates a dispatcher backed by registry.
func NewDispatcher(registry *ToolRegistry) *Dispatcher {
	if registry == nil {
		registry = NewToolRegistry()
	}
	return &Dispatcher{registry: registry}
}

// Schemas returns the schemas shown to the engine.
func (d *Dispatcher) Schemas() []llm.ToolSchema {
	return d.registry.Schemas()
}

// Dispatch looks the tool up, parses and checks rawArguments, and only then
// runs the tool.
func (d *Dispatcher) Dispatch(ctx context.Context, name, rawArguments string) (out Outcome) {
	tool, ok := d.registry.Get(name)
	if !ok {
		slog.WarnContext(ctx, "Unknown tool call", "name", name)
		return Failed(name, ErrUnknownTool, fmt.Errorf("no tool named %q is registered", name))
	}

	args, err := ParseArguments(rawArguments)
	if err != nil {
		slog.WarnContext(ctx, "Failed to parse tool arguments", "name", name, "error", err)
		return Failed(name, ErrArgumentParse, err)
	}

	schema := tool.Schema()
	if err := CheckArguments(schema, args); err != nil {
		slog.WarnContext(ctx, "Rejected tool arguments", "name", name, "error", err)
		return Outcome{Success: false, Error: err.Error(), Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Tool execution panicked", "name", name, "panic", r)
			out = Failed(name, ErrToolExecution, fmt.Errorf("panic: %v", r))
		}
	}()

	slog.InfoContext(ctx, "Executing tool", "name", name, "args", args)
	result, err := tool.Execute(ctx, args)
	if err != nil {
		slog.WarnContext(ctx, "Tool execution error", "name", name, "error", err)
		return Failed(name, ErrToolExecution, err)
	}
	return Succeeded(result)
}

// ParseArguments decodes the serialized arguments into a mapping. An empty
// payload or JSON null is an empty mapping.
func ParseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// CheckArguments verifies required keys in schema order, then coerces typed
// parameters in place. Numeric strings are accepted for number parameters.
func CheckArguments(schema llm.ToolSchema, args map[string]any) error {
	for _, key := range schema.RequiredParameters() {
		if _, ok := args[key]; !ok {
			return &ToolError{Tool: schema.Name, Kind: ErrMissingArgument, Err: errors.New(key)}
		}
	}

	for _, p := range schema.Parameters {
		v, ok := args[p.Name]
		if !ok {
			continue
		}
		coerced, err := coerce(p.Type, v)
		if err != nil {
			return &ToolError{Tool: schema.Name, Kind: ErrArgumentType, Err: fmt.Errorf("%s: %w", p.Name, err)}
		}
		args[p.Name] = coerced
	}
	return nil
}

func coerce(typ string, v any) (any, error) {
	switch typ {
	case llm.TypeNumber:
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, fmt.Errorf("expected number but got %q", n)
			}
			f = parsed
		default:
			return nil, fmt.Errorf("expected number but got %T", v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("expected finite number but got %v", f)
		}
		return f, nil
	case llm.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string but got %T", v)
	default:
		return v, nil
	}
}
