package material

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultClassifierIdentifiesReferences(t *testing.T) {
	c, err := NewDefaultClassifier()
	require.NoError(t, err)

	tests := []struct {
		name       string
		p1, p2, fe float64
		want       string
	}{
		{"ceria", 465, 610, -11.2, "Ceria (CeO2)"},
		{"anatase", 144, 399, -9.8, "Anatase (TiO2)"},
		{"silicon", 520, 950, 0.0, "Silicon (Si)"},
		{"swapped peaks", 610, 465, -11.2, "Ceria (CeO2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Identify(context.Background(), tt.p1, tt.p2, tt.fe)
			require.NoError(t, err)
			require.Equal(t, tt.want, got.Label)
			require.Equal(t, 1.0, got.Confidence)
		})
	}
}

func TestConfidenceDropsWithDistance(t *testing.T) {
	c, err := NewClassifier([]Reference{{Label: "A", Peaks: [2]float64{100, 200}, FormationEnergy: -1}})
	require.NoError(t, err)

	got, err := c.Identify(context.Background(), 150, 200, -1)
	require.NoError(t, err)
	require.Equal(t, "A", got.Label)
	require.Equal(t, math.Round(math.Exp(-1)*1000)/1000, got.Confidence)
}

func TestIdentifyRejectsOutOfRange(t *testing.T) {
	c, err := NewDefaultClassifier()
	require.NoError(t, err)

	for _, in := range [][3]float64{
		{0, 610, -11.2},
		{465, 5000, -11.2},
		{465, 610, -30},
		{465, 610, 6},
		{math.NaN(), 610, -1},
	} {
		_, err := c.Identify(context.Background(), in[0], in[1], in[2])
		require.ErrorIs(t, err, ErrOutOfRange, "input %v", in)
	}
}

func TestIdentifyHonoursCancelledContext(t *testing.T) {
	c, err := NewDefaultClassifier()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Identify(ctx, 465, 610, -11.2)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadClassifierFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
references:
  - label: Only
    peaks: [300, 400]
    formation_energy: -2
`), 0644))

	c, err := LoadClassifier(path)
	require.NoError(t, err)
	require.Equal(t, []string{"Only"}, c.Labels())

	_, err = LoadClassifier(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNewClassifierValidates(t *testing.T) {
	_, err := NewClassifier(nil)
	require.Error(t, err)

	_, err = NewClassifier([]Reference{{Peaks: [2]float64{1, 2}}})
	require.Error(t, err)

	_, err = NewClassifier([]Reference{{Label: "bad", Peaks: [2]float64{-1, 2}}})
	require.ErrorIs(t, err, ErrOutOfRange)
}
