package respiration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinCyclesForStatistics is the smallest population the exclusion
// statistics are computed over. Below it median/MAD and the empirical mode
// carry no information about what a typical cycle looks like.
const MinCyclesForStatistics = 3

// FilterOptions parameterise FilterCycles.
type FilterOptions struct {
	Metric ExclusionMetric
	// MetricCoeff scales the dispersion for the amplitude screen.
	MetricCoeff float64
	// InspiCoeff scales the dispersion for the inspiration-duration screen.
	InspiCoeff float64
	// RateBounds is [min, max] in breaths per second. Only the upper bound
	// is enforced: cycles shorter than 1/RateBounds[1] seconds are dropped.
	RateBounds [2]float64
	// Sink, when set, receives the exclusion report of every call.
	Sink DiagnosticsSink
}

// DefaultFilterOptions returns median-based screening with the coefficients
// the filter was tuned with.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		Metric:      MedianBased,
		MetricCoeff: 3,
		InspiCoeff:  2,
		RateBounds:  [2]float64{0.1, 0.35},
	}
}

// Validate checks that the options describe a usable filter.
func (o FilterOptions) Validate() error {
	if _, err := o.Metric.Estimator(); err != nil {
		return err
	}
	if o.MetricCoeff < 0 || math.IsNaN(o.MetricCoeff) {
		return fmt.Errorf("metric coefficient must be non-negative, got %v", o.MetricCoeff)
	}
	if o.InspiCoeff < 0 || math.IsNaN(o.InspiCoeff) {
		return fmt.Errorf("inspiration coefficient must be non-negative, got %v", o.InspiCoeff)
	}
	lo, hi := o.RateBounds[0], o.RateBounds[1]
	if !(hi > 0) || lo < 0 || lo > hi {
		return fmt.Errorf("rate bounds must satisfy 0 <= min <= max, max > 0; got [%v, %v]", lo, hi)
	}
	return nil
}

// FilterResult is the output of FilterCycles.
type FilterResult struct {
	Cycles CycleTable
	Keep   KeepMask
	Report *ExclusionReport
}

// FilterCycles screens candidate cycles in four stages.
//
//   - A: cycles whose log inspiration duration falls below
//     center - dispersion*InspiCoeff are removed.
//   - B: each survivor gets an amplitude metric, the log of the summed
//     absolute deviation from the segment mean up to the next survivor.
//   - C: survivors spaced closer than 1/RateBounds[1] seconds from the next
//     survivor are removed. The last survivor has no successor to measure and
//     is removed too.
//   - D: remaining cycles whose amplitude metric falls below
//     center - dispersion*MetricCoeff are masked out.
//
// Only low tails are screened. The final row is always masked out because
// its boundaries are not a fully observed breath.
func FilterCycles(signal []float64, cycles CycleTable, sampleRate float64, opts FilterOptions) (*FilterResult, error) {
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter options: %w", err)
	}
	if err := checkSignal(signal); err != nil {
		return nil, err
	}
	if len(cycles) < MinCyclesForStatistics {
		return nil, fmt.Errorf("%d candidate cycles, need %d: %w", len(cycles), MinCyclesForStatistics, ErrInsufficientCycles)
	}
	if err := cycles.Validate(len(signal)); err != nil {
		return nil, err
	}
	est, _ := opts.Metric.Estimator()

	rep := &ExclusionReport{
		Signal:     signal,
		SampleRate: sampleRate,
		Metric:     opts.Metric,
		Candidates: append(CycleTable(nil), cycles...),
	}

	// Stage A
	rep.InspiLogDurations = make([]float64, len(cycles))
	for i, c := range cycles {
		rep.InspiLogDurations[i] = math.Log(float64(c.Expiration - c.Inspiration))
	}
	rep.InspiSpread = est.Estimate(rep.InspiLogDurations)
	rep.InspiThreshold = rep.InspiSpread.Lower(opts.InspiCoeff)
	for i, d := range rep.InspiLogDurations {
		if d < rep.InspiThreshold {
			rep.InspiExcluded = append(rep.InspiExcluded, i)
			Tracef("cycle %v: short inspiration (log %.4f < %.4f)", cycles[i], d, rep.InspiThreshold)
			continue
		}
		rep.Survivors = append(rep.Survivors, cycles[i])
	}

	// Stage B
	starts := rep.Survivors.Inspirations()
	rep.AmplitudeMetrics = make([]float64, len(starts))
	for i, start := range starts {
		stop := len(signal)
		if i+1 < len(starts) {
			stop = starts[i+1]
		}
		rep.AmplitudeMetrics[i] = amplitudeMetric(signal[start:stop])
	}

	// Stage C
	rep.MinDuration = 1 / opts.RateBounds[1]
	var kept []int
	if len(starts) > 0 {
		rep.Durations = make([]float64, len(starts)-1)
	}
	for i := range rep.Durations {
		rep.Durations[i] = float64(starts[i+1]-starts[i]) / sampleRate
		if rep.Durations[i] < rep.MinDuration {
			rep.DurationExcluded = append(rep.DurationExcluded, i)
			Tracef("cycle %v: too short (%.3fs < %.3fs)", rep.Survivors[i], rep.Durations[i], rep.MinDuration)
			continue
		}
		kept = append(kept, i)
	}
	if len(kept) < MinCyclesForStatistics {
		return nil, fmt.Errorf("%d cycles left after duration screen, need %d: %w", len(kept), MinCyclesForStatistics, ErrInsufficientCycles)
	}

	final := make(CycleTable, len(kept))
	population := make([]float64, len(kept))
	for j, i := range kept {
		final[j] = rep.Survivors[i]
		population[j] = rep.AmplitudeMetrics[i]
	}
	for j := 0; j+1 < len(final); j++ {
		final[j].NextInspiration = final[j+1].Inspiration
	}

	// Stage D
	rep.MetricSpread = est.Estimate(population)
	rep.MetricThreshold = rep.MetricSpread.Lower(opts.MetricCoeff)
	keep := make(KeepMask, len(final))
	for j, m := range population {
		keep[j] = true
		if m < rep.MetricThreshold {
			keep[j] = false
			rep.MetricExcluded = append(rep.MetricExcluded, j)
			Tracef("cycle %v: low amplitude (log %.4f < %.4f)", final[j], m, rep.MetricThreshold)
		}
	}
	keep[len(keep)-1] = false

	rep.Final = final
	rep.Keep = keep
	Diagf("filter %s: %d candidates, %d short inspirations, %d short cycles, %d low amplitude, %d kept",
		opts.Metric, len(cycles), len(rep.InspiExcluded), len(rep.DurationExcluded), len(rep.MetricExcluded), keep.Count())

	if opts.Sink != nil {
		if err := opts.Sink.RecordExclusion(rep); err != nil {
			return nil, fmt.Errorf("diagnostics sink: %w", err)
		}
	}
	return &FilterResult{Cycles: final, Keep: keep, Report: rep}, nil
}

// amplitudeMetric is the log of the summed absolute deviation of seg from
// its mean. A perfectly flat segment is floored at the smallest positive
// float so the metric stays finite.
func amplitudeMetric(seg []float64) float64 {
	if len(seg) == 0 {
		return math.Log(math.SmallestNonzeroFloat64)
	}
	mean := stat.Mean(seg, nil)
	var sum float64
	for _, v := range seg {
		sum += math.Abs(v - mean)
	}
	return math.Log(math.Max(sum, math.SmallestNonzeroFloat64))
}
