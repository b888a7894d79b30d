package tools

import (
	"context"

	"crucible/pkg/llm"
	"crucible/pkg/material"
)

// IdentifyMaterialName is the registered name of the identification tool.
const IdentifyMaterialName = "identify_material"

// Argument names of identify_material.
const (
	ArgPeak1           = "peak_1"
	ArgPeak2           = "peak_2"
	ArgFormationEnergy = "formation_energy"
)

// IdentifyMaterialTool exposes a material.Identifier to the engine.
type IdentifyMaterialTool struct {
	identifier material.Identifier
}

// NewIdentifyMaterialTool wraps identifier.
func NewIdentifyMaterialTool(identifier material.Identifier) *IdentifyMaterialTool {
	return &IdentifyMaterialTool{identifier: identifier}
}

// Schema implements Tool.
func (t *IdentifyMaterialTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{
		Name: IdentifyMaterialName,
		Description: "Identify a material based on its Raman spectroscopy peaks and " +
			"formation energy. Returns the predicted material name with confidence score.",
		Parameters: []llm.ParameterSpec{
			{
				Name:        ArgPeak1,
				Type:        llm.TypeNumber,
				Description: "First Raman peak in wavenumbers (cm^-1), typically 100-2000.",
				Required:    true,
			},
			{
				Name:        ArgPeak2,
				Type:        llm.TypeNumber,
				Description: "Second Raman peak in wavenumbers (cm^-1), typically 100-2000.",
				Required:    true,
			},
			{
				Name: ArgFormationEnergy,
				Type: llm.TypeNumber,
				Description: "Formation energy in eV/atom, typically -15 to 0. " +
					"Negative values indicate stable compounds.",
				Required: true,
			},
		},
	}
}

// Execute implements Tool. Arguments arrive coerced to float64 by the dispatcher.
func (t *IdentifyMaterialTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	peak1, _ := args[ArgPeak1].(float64)
	peak2, _ := args[ArgPeak2].(float64)
	energy, _ := args[ArgFormationEnergy].(float64)

	return t.identifier.Identify(ctx, peak1, peak2, energy)
}
