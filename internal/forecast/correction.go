package forecast

import (
	"fmt"
	"math"

	"github.com/angelmondragon/abcxyz-forecast/pkg/mlmodel"
)

const (
	reconEpsilon = 1e-3
	reconClip    = 2.0
)

// Reconstruct turns a residual estimate into a prediction:
// (baseline+ε)·exp(clip(γ·r̂, −2, 2)) − ε, floored at zero.
func Reconstruct(baseline, residual, gamma float64) float64 {
	scaled := gamma * residual
	if math.IsNaN(scaled) {
		scaled = 0
	}
	scaled = math.Max(-reconClip, math.Min(reconClip, scaled))
	return nonNegative((baseline+reconEpsilon)*math.Exp(scaled) - reconEpsilon)
}

// Corrector applies the frozen model to baselines.
type Corrector struct {
	artifact *mlmodel.Artifact
}

// NewCorrector wraps a loaded artifact after checking its column list.
func NewCorrector(artifact *mlmodel.Artifact) (*Corrector, error) {
	if artifact == nil {
		return nil, fmt.Errorf("model artifact required")
	}
	if err := CheckColumns(artifact.Maps.Columns); err != nil {
		return nil, err
	}
	return &Corrector{artifact: artifact}, nil
}

// Correct predicts one residual per row and reconstructs the corrected values.
func (c *Corrector) Correct(rows []FeatureRow, baselines []float64) ([]float64, error) {
	if len(rows) != len(baselines) {
		return nil, fmt.Errorf("%d feature rows for %d baselines", len(rows), len(baselines))
	}
	records := make([]mlmodel.Record, len(rows))
	for i := range rows {
		records[i] = rows[i]
	}
	residuals, err := c.artifact.Predict(records)
	if err != nil {
		return nil, err
	}
	if len(residuals) != len(rows) {
		return nil, fmt.Errorf("model returned %d predictions for %d rows", len(residuals), len(rows))
	}
	gamma := c.artifact.Gamma()
	out := make([]float64, len(rows))
	for i := range rows {
		out[i] = Reconstruct(baselines[i], residuals[i], gamma)
	}
	return out, nil
}

// Maps exposes the artifact's aggregate maps.
func (c *Corrector) Maps() mlmodel.FeatureMaps {
	return c.artifact.Maps
}

// Info describes the loaded model.
func (c *Corrector) Info() ModelInfo {
	return ModelInfo{
		Version:    c.artifact.Meta.Version,
		Gamma:      c.artifact.Gamma(),
		GlobalMean: c.artifact.Maps.GlobalMean,
		Columns:    append([]string(nil), c.artifact.Maps.Columns...),
	}
}
