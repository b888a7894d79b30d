package llm

// Parameter type constants for ParameterSpec.Type.
const (
	TypeNumber = "number"
	TypeString = "string"
)

// ToolSchema describes a callable tool to the engine. It is registered once
// at startup and read-only afterwards.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterSpec `json:"parameters"`
}

// ParameterSpec describes one argument of a tool.
type ParameterSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "number" or "string"
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// RequiredParameters returns the names of the required arguments in
// declaration order.
func (s ToolSchema) RequiredParameters() []string {
	var names []string
	for _, p := range s.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Parameter looks up an argument by name.
func (s ToolSchema) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// JSONSchema renders the parameters as a JSON Schema object, the shape every
// provider accepts for function parameters.
func (s ToolSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	for _, p := range s.Parameters {
		props[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
	}
	required := s.RequiredParameters()
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// FunctionDefinition renders the schema in the OpenAI function-calling
// format ({"type":"function","function":{...}}).
func (s ToolSchema) FunctionDefinition() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters":  s.JSONSchema(),
		},
	}
}
