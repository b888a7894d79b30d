package material

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed references.yaml
var defaultReferences []byte

// Feature scales: a 50 cm^-1 peak shift weighs as much as 1 eV/atom.
const (
	peakScale   = 50.0
	energyScale = 1.0
)

// Reference is one known material signature.
type Reference struct {
	Label           string     `yaml:"label"`
	Peaks           [2]float64 `yaml:"peaks"`
	FormationEnergy float64    `yaml:"formation_energy"`
}

type referenceFile struct {
	References []Reference `yaml:"references"`
}

// Classifier is a nearest-neighbour Identifier over a reference table.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	refs []Reference
}

// NewClassifier builds a classifier over refs.
func NewClassifier(refs []Reference) (*Classifier, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("material: empty reference table")
	}
	cp := make([]Reference, len(refs))
	for i, r := range refs {
		if r.Label == "" {
			return nil, fmt.Errorf("material: reference #%d has no label", i+1)
		}
		if err := checkRange(r.Peaks[0], r.Peaks[1], r.FormationEnergy); err != nil {
			return nil, fmt.Errorf("material: reference %q: %w", r.Label, err)
		}
		cp[i] = r
	}
	return &Classifier{refs: cp}, nil
}

// NewDefaultClassifier builds a classifier over the embedded table.
func NewDefaultClassifier() (*Classifier, error) {
	refs, err := ParseReferences(defaultReferences)
	if err != nil {
		return nil, err
	}
	return NewClassifier(refs)
}

// LoadClassifier builds a classifier from a YAML file, or from the embedded
// table when path is empty.
func LoadClassifier(path string) (*Classifier, error) {
	if path == "" {
		return NewDefaultClassifier()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("material: read references: %w", err)
	}
	refs, err := ParseReferences(data)
	if err != nil {
		return nil, err
	}
	return NewClassifier(refs)
}

// ParseReferences decodes a YAML reference table.
func ParseReferences(data []byte) ([]Reference, error) {
	var f referenceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("material: parse references: %w", err)
	}
	return f.References, nil
}

// Identify implements Identifier.
func (c *Classifier) Identify(ctx context.Context, peak1, peak2, formationEnergy float64) (Identification, error) {
	if err := ctx.Err(); err != nil {
		return Identification{}, err
	}
	if err := checkRange(peak1, peak2, formationEnergy); err != nil {
		return Identification{}, err
	}

	lo, hi := ordered(peak1, peak2)
	best, bestDist := "", math.Inf(1)
	for _, r := range c.refs {
		rlo, rhi := ordered(r.Peaks[0], r.Peaks[1])
		d := math.Sqrt(sq((lo-rlo)/peakScale) + sq((hi-rhi)/peakScale) + sq((formationEnergy-r.FormationEnergy)/energyScale))
		if d < bestDist {
			best, bestDist = r.Label, d
		}
	}

	return Identification{
		Label:      best,
		Confidence: math.Round(math.Exp(-bestDist)*1000) / 1000,
	}, nil
}

// Labels returns the known material labels, sorted.
func (c *Classifier) Labels() []string {
	labels := make([]string, len(c.refs))
	for i, r := range c.refs {
		labels[i] = r.Label
	}
	sort.Strings(labels)
	return labels
}

func checkRange(peak1, peak2, energy float64) error {
	for _, p := range []float64{peak1, peak2} {
		if math.IsNaN(p) || p <= MinPeak || p > MaxPeak {
			return fmt.Errorf("%w: peak %v cm^-1 outside (%v, %v]", ErrOutOfRange, p, MinPeak, MaxPeak)
		}
	}
	if math.IsNaN(energy) || energy < MinFormationEnergy || energy > MaxFormationEnergy {
		return fmt.Errorf("%w: formation energy %v eV/atom outside [%v, %v]", ErrOutOfRange, energy, MinFormationEnergy, MaxFormationEnergy)
	}
	return nil
}

func ordered(a, b float64) (float64, float64) {
	if a > b {
		return b, a
	}
	return a, b
}

func sq(x float64) float64 { return x * x }
