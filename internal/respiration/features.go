package respiration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// CycleFeatures describes one breath. Times are in seconds, volumes in
// signal units times seconds, amplitudes in signal units.
type CycleFeatures struct {
	InspiIndex     int
	ExpiIndex      int
	NextInspiIndex int

	InspiTime     float64
	ExpiTime      float64
	NextInspiTime float64

	CycleDuration float64
	InspiDuration float64
	ExpiDuration  float64
	CycleFreq     float64

	InspiVolume float64
	ExpiVolume  float64
	TotalVolume float64

	InspiAmplitude float64
	ExpiAmplitude  float64
	TotalAmplitude float64

	Select bool
}

// FeatureTable is one CycleFeatures per final cycle.
type FeatureTable []CycleFeatures

// SelectedCount returns how many rows are selected for analysis.
func (t FeatureTable) SelectedCount() int {
	n := 0
	for _, f := range t {
		if f.Select {
			n++
		}
	}
	return n
}

// ComputeFeatures derives per-cycle timing, volume and amplitude features.
// Deviations are measured from baseline; with nil the raw sample values are
// used. keep must be aligned with cycles.
func ComputeFeatures(signal []float64, sampleRate float64, cycles CycleTable, keep KeepMask, baseline *float64) (FeatureTable, error) {
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}
	if len(keep) != len(cycles) {
		return nil, fmt.Errorf("keep mask has %d entries for %d cycles: %w", len(keep), len(cycles), ErrDegenerateInput)
	}
	if err := cycles.Validate(len(signal)); err != nil {
		return nil, err
	}

	level := 0.0
	if baseline != nil {
		level = *baseline
	}

	out := make(FeatureTable, len(cycles))
	for i, c := range cycles {
		f := CycleFeatures{
			InspiIndex:     c.Inspiration,
			ExpiIndex:      c.Expiration,
			NextInspiIndex: c.NextInspiration,
			InspiTime:      float64(c.Inspiration) / sampleRate,
			ExpiTime:       float64(c.Expiration) / sampleRate,
			NextInspiTime:  float64(c.NextInspiration) / sampleRate,
			Select:         keep[i],
		}
		f.CycleDuration = f.NextInspiTime - f.InspiTime
		f.InspiDuration = f.ExpiTime - f.InspiTime
		f.ExpiDuration = f.NextInspiTime - f.ExpiTime
		f.CycleFreq = 1 / f.CycleDuration

		inspi := signal[c.Inspiration:c.Expiration]
		expi := signal[c.Expiration:c.NextInspiration]
		f.InspiVolume = phaseVolume(inspi, level, sampleRate)
		f.ExpiVolume = phaseVolume(expi, level, sampleRate)
		f.TotalVolume = f.InspiVolume + f.ExpiVolume
		f.InspiAmplitude = phaseAmplitude(inspi, level)
		f.ExpiAmplitude = phaseAmplitude(expi, level)
		f.TotalAmplitude = f.InspiAmplitude + f.ExpiAmplitude

		out[i] = f
	}
	return out, nil
}

func phaseVolume(seg []float64, level, sampleRate float64) float64 {
	return math.Abs(floats.Sum(seg)-level*float64(len(seg))) / sampleRate
}

func phaseAmplitude(seg []float64, level float64) float64 {
	var peak float64
	for _, v := range seg {
		peak = math.Max(peak, math.Abs(v-level))
	}
	return peak
}
