package drift

import (
	"math"

	"github.com/truthlens/backend/internal/dataset"
	"github.com/truthlens/backend/internal/stats"
)

const (
	// MinRows is the smallest dataset drift is assessed on. Smaller batches
	// report a clean score; volume is judged by the governance gate.
	MinRows = 10
	// Threshold is the relative mean shift above which a feature has drifted.
	Threshold = 0.20

	penaltyPerUnit = 10.0
)

// Metric describes one drifted feature. Score is the relative mean shift
// rounded to two decimals.
type Metric struct {
	Feature       string  `json:"feature"`
	Score         float64 `json:"score"`
	DriftDetected bool    `json:"driftDetected"`
}

// Report is the drift score plus every feature that moved past Threshold.
type Report struct {
	Score           int      `json:"score"`
	DriftedFeatures []Metric `json:"driftedFeatures"`
}

// Analyzer compares the two halves of a dataset.
type Analyzer struct{}

// NewAnalyzer returns a stateless drift Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze compares the first half of the rows (reference) with the second
// half (current) feature by feature. A feature is compared when its first-row
// value is numeric or missing; within it any non-numeric or missing cell reads as 0.
func (a *Analyzer) Analyze(ds *dataset.Dataset) Report {
	if ds.Len() < MinRows {
		return Report{Score: 100, DriftedFeatures: []Metric{}}
	}

	reference, current := ds.Split(ds.Len() / 2)
	first := ds.Row(0)

	drifted := []Metric{}
	penalty := 0.0
	for _, key := range ds.Keys() {
		v := first.Get(key)
		if _, ok := v.Float64(); !ok && !v.IsMissing() {
			continue
		}

		change := relativeShift(columnMean(reference, key), columnMean(current, key))
		if change > Threshold {
			drifted = append(drifted, Metric{
				Feature:       key,
				Score:         stats.Round(change, 2),
				DriftDetected: true,
			})
			penalty += change * penaltyPerUnit
		}
	}

	return Report{
		Score:           int(stats.Round(stats.Clamp(100-penalty, 0, 100), 0)),
		DriftedFeatures: drifted,
	}
}

func columnMean(ds *dataset.Dataset, key string) float64 {
	col := ds.Column(key)
	values := make([]float64, len(col))
	for i, v := range col {
		values[i] = v.FloatOrZero()
	}
	return stats.Mean(values)
}

// relativeShift is |ref-cur| / |ref|, with a denominator of 1 when ref is 0.
func relativeShift(ref, cur float64) float64 {
	denominator := math.Abs(ref)
	if ref == 0 {
		denominator = 1
	}
	return math.Abs(ref-cur) / denominator
}
