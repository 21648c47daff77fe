package respiration

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BaselineMode selects how the reference level for crossings is computed.
type BaselineMode string

const (
	BaselineMean        BaselineMode = "mean"
	BaselineMedian      BaselineMode = "median"
	BaselineDensityPeak BaselineMode = "mode"
	BaselineZero        BaselineMode = "zero"
	BaselineManual      BaselineMode = "manual"
)

// ParseBaselineMode accepts mean, median, mode, zero and manual. The empty
// string means mean.
func ParseBaselineMode(s string) (BaselineMode, error) {
	switch m := BaselineMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return BaselineMean, nil
	case BaselineMean, BaselineMedian, BaselineDensityPeak, BaselineZero, BaselineManual:
		return m, nil
	default:
		return "", fmt.Errorf("unknown baseline mode %q", s)
	}
}

// DetectOptions parameterise EstimateBaseline and DetectCycles.
type DetectOptions struct {
	// BaselineMode defaults to BaselineMean. A non-nil Baseline overrides
	// every mode.
	BaselineMode BaselineMode
	Baseline     *float64

	// EpsilonFactor1 scales the deep-crossing confirmation threshold.
	EpsilonFactor1 float64
	// EpsilonFactor2 scales the nominal inspiration-onset threshold.
	EpsilonFactor2 float64

	// RefineOnDerivative moves each inspiration onset to the last
	// second-derivative inflection found shortly before it.
	RefineOnDerivative bool
}

// DefaultDetectOptions returns the parameters the detector was tuned with.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		BaselineMode:   BaselineMean,
		EpsilonFactor1: 10,
		EpsilonFactor2: 5,
	}
}

// Baseline holds the reference level and derived hysteresis thresholds.
type Baseline struct {
	Level   float64 // crossing level for expiration onsets
	P10     float64 // 10th percentile of the signal
	Epsilon float64 // (Level - P10) / 100
	Low     float64 // deep-crossing confirmation threshold
	Mid     float64 // inspiration-onset threshold
}

// EstimateBaseline computes the reference level of signal and the two
// hysteresis thresholds below it.
func EstimateBaseline(signal []float64, opts DetectOptions) (Baseline, error) {
	if err := checkSignal(signal); err != nil {
		return Baseline{}, err
	}

	level, err := baselineLevel(signal, opts)
	if err != nil {
		return Baseline{}, err
	}

	b := Baseline{Level: level, P10: Quantile(signal, 0.10)}
	b.Epsilon = (b.Level - b.P10) / 100
	if !(b.Epsilon > 0) {
		return Baseline{}, fmt.Errorf("baseline %.6g not above 10th percentile %.6g: %w", b.Level, b.P10, ErrDegenerateInput)
	}
	b.Low = b.Level - b.Epsilon*opts.EpsilonFactor1
	b.Mid = b.Level - b.Epsilon*opts.EpsilonFactor2
	return b, nil
}

func baselineLevel(signal []float64, opts DetectOptions) (float64, error) {
	if opts.Baseline != nil {
		return *opts.Baseline, nil
	}
	switch opts.BaselineMode {
	case "", BaselineMean:
		return stat.Mean(signal, nil), nil
	case BaselineMedian:
		return Median(signal), nil
	case BaselineDensityPeak:
		return EmpiricalMode(signal, modeBins), nil
	case BaselineZero:
		return 0, nil
	case BaselineManual:
		return 0, fmt.Errorf("baseline mode manual requires a baseline value")
	default:
		return 0, fmt.Errorf("unknown baseline mode %q", opts.BaselineMode)
	}
}

// checkSignal rejects inputs whose percentile or mean would be undefined.
func checkSignal(signal []float64) error {
	if len(signal) < 2 {
		return fmt.Errorf("signal has %d samples, need at least 2: %w", len(signal), ErrDegenerateInput)
	}
	if floats.HasNaN(signal) {
		return fmt.Errorf("signal contains NaN: %w", ErrDegenerateInput)
	}
	lo, hi := floats.Min(signal), floats.Max(signal)
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return fmt.Errorf("signal contains Inf: %w", ErrDegenerateInput)
	}
	if lo == hi {
		return fmt.Errorf("signal is constant (%.6g): %w", lo, ErrDegenerateInput)
	}
	return nil
}
