package quality

import (
	"github.com/truthlens/backend/internal/dataset"
	"github.com/truthlens/backend/internal/stats"
)

const (
	// MinOutlierSamples is the column size a feature needs before outliers are counted.
	MinOutlierSamples = 5
	// OutlierZScore is the z-score magnitude above which a value is an outlier.
	OutlierZScore = 3.0

	missingWeight = 200.0
	outlierWeight = 500.0
)

// Metrics summarises the integrity of a dataset.
type Metrics struct {
	Score         int `json:"score"`
	MissingValues int `json:"missingValues"`
	Outliers      int `json:"outliers"`
	TotalRows     int `json:"totalRows"`
}

// Analyzer scores dataset integrity from missing cells and outliers.
type Analyzer struct{}

// NewAnalyzer returns a stateless quality Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze counts missing cells and z-score outliers over the first row's
// features. Non-numeric text is skipped, not reported. An empty dataset, or
// one whose first row has no features, yields the zero Metrics.
func (a *Analyzer) Analyze(ds *dataset.Dataset) Metrics {
	if ds.Len() == 0 {
		return Metrics{}
	}

	keys := ds.Keys()
	if len(keys) == 0 {
		return Metrics{TotalRows: ds.Len()}
	}

	missing := 0
	columns := make([][]float64, len(keys))
	for i := 0; i < ds.Len(); i++ {
		row := ds.Row(i)
		for k, key := range keys {
			v := row.Get(key)
			if v.IsMissing() {
				missing++
				continue
			}
			if f, ok := v.Float64(); ok {
				columns[k] = append(columns[k], f)
			}
		}
	}

	outliers := 0
	for _, col := range columns {
		outliers += countOutliers(col)
	}

	cells := float64(ds.Len() * len(keys))
	missingRatio := float64(missing) / cells
	outlierRatio := float64(outliers) / cells
	score := stats.Clamp(100-missingRatio*missingWeight-outlierRatio*outlierWeight, 0, 100)

	return Metrics{
		Score:         int(stats.Round(score, 0)),
		MissingValues: missing,
		Outliers:      outliers,
		TotalRows:     ds.Len(),
	}
}

func countOutliers(col []float64) int {
	if len(col) <= MinOutlierSamples {
		return 0
	}
	mean, sd := stats.MeanStdDev(col)
	if !(sd > 0) {
		return 0
	}
	n := 0
	for _, v := range col {
		if stats.ZScore(v, mean, sd) > OutlierZScore {
			n++
		}
	}
	return n
}
