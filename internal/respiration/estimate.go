package respiration

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// madScale converts a median absolute deviation into a consistent estimate
// of the standard deviation for normally distributed data.
const madScale = 0.6744897501960817

// modeBins is the histogram resolution used for the empirical mode.
const modeBins = 200

// ExclusionMetric names one of the center/dispersion strategies used by the
// outlier filter.
type ExclusionMetric string

const (
	// MedianBased uses the median and the scaled median absolute deviation.
	MedianBased ExclusionMetric = "median"
	// MeanBased uses the arithmetic mean and population standard deviation.
	MeanBased ExclusionMetric = "mean"
	// ModeBased pairs the empirical mode with the scaled median absolute
	// deviation.
	ModeBased ExclusionMetric = "mode"
)

// ParseExclusionMetric accepts the canonical names plus the short aliases
// "med" and "mod".
func ParseExclusionMetric(s string) (ExclusionMetric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "median", "med":
		return MedianBased, nil
	case "mean":
		return MeanBased, nil
	case "mode", "mod":
		return ModeBased, nil
	default:
		return "", fmt.Errorf("unknown exclusion metric %q (want median, mean or mode)", s)
	}
}

// Spread is a center/dispersion pair.
type Spread struct {
	Center     float64
	Dispersion float64
}

// Lower returns the one-sided exclusion bound Center - Dispersion*coeff.
func (s Spread) Lower(coeff float64) float64 {
	return s.Center - s.Dispersion*coeff
}

// Estimator computes a Spread from a non-empty population.
type Estimator interface {
	Estimate(values []float64) Spread
}

// EstimatorFunc adapts a function to the Estimator interface.
type EstimatorFunc func(values []float64) Spread

// Estimate calls f(values).
func (f EstimatorFunc) Estimate(values []float64) Spread { return f(values) }

var estimators = map[ExclusionMetric]Estimator{
	MedianBased: EstimatorFunc(func(v []float64) Spread {
		med, mad := MedianMAD(v)
		return Spread{Center: med, Dispersion: mad}
	}),
	MeanBased: EstimatorFunc(func(v []float64) Spread {
		mean, std := stat.PopMeanStdDev(v, nil)
		return Spread{Center: mean, Dispersion: std}
	}),
	ModeBased: EstimatorFunc(func(v []float64) Spread {
		_, mad := MedianMAD(v)
		return Spread{Center: EmpiricalMode(v, modeBins), Dispersion: mad}
	}),
}

// Estimator returns the strategy registered for m.
func (m ExclusionMetric) Estimator() (Estimator, error) {
	e, ok := estimators[m]
	if !ok {
		return nil, fmt.Errorf("unknown exclusion metric %q", string(m))
	}
	return e, nil
}

// Quantile returns the p-quantile (0 <= p <= 1) of values using linear
// interpolation between closest ranks, the definition used by most array
// libraries. values is not modified. Returns NaN for empty input.
func Quantile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return quantileSorted(sorted, p)
}

func quantileSorted(sorted []float64, p float64) float64 {
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	h := p * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Median returns the median of values (mean of the two middle values for
// even lengths).
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// MedianMAD returns the median and the median absolute deviation scaled to be
// comparable with a standard deviation.
func MedianMAD(values []float64) (median, mad float64) {
	median = Median(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - median)
	}
	return median, Median(dev) / madScale
}

// EmpiricalMode estimates the density peak of values as the left edge of the
// most populated bin of an equal-width histogram spanning [min, max].
func EmpiricalMode(values []float64, bins int) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi || bins < 1 {
		return lo
	}
	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	// The last bin is closed on the right.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)
	return dividers[floats.MaxIdx(counts)]
}
