// Package material identifies a material from two Raman peaks and its
// formation energy.
package material

import (
	"context"
	"errors"
)

// ErrOutOfRange is returned for inputs outside the physical ranges the
// classifier accepts.
var ErrOutOfRange = errors.New("input out of range")

// Valid input ranges.
const (
	MinPeak            = 0.0    // exclusive, cm^-1
	MaxPeak            = 4000.0 // inclusive, cm^-1
	MinFormationEnergy = -20.0  // eV/atom
	MaxFormationEnergy = 5.0    // eV/atom
)

// Identification is the result of one classification.
type Identification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Identifier classifies a measurement.
type Identifier interface {
	Identify(ctx context.Context, peak1, peak2, formationEnergy float64) (Identification, error)
}
