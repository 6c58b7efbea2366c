// Package stats provides the descriptive statistics the quality and drift
// analyzers share. All functions are pure.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean is the arithmetic mean. It is NaN for an empty slice; callers guard
// against empty columns.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// StdDev is the population standard deviation (divides by N).
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	_, std := stat.PopMeanStdDev(values, nil)
	return std
}

// MeanStdDev returns both moments in one pass over the mean.
func MeanStdDev(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(values, nil)
}

// ZScore is |v-mean|/std. Callers must ensure std > 0.
func ZScore(v, mean, std float64) float64 {
	return math.Abs(stat.StdScore(v, mean, std))
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	if places <= 0 {
		return math.Round(v)
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
