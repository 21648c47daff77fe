// Package testutil provides shared test utilities and fixtures.
//
// The signal builders lay breaths out as alternating half-waves: a positive
// lobe for expiration and a negative lobe for inspiration. Half-waves of the
// same length and amplitude are bit-identical, so cycles built from them
// produce identical durations and amplitude metrics.
package testutil

import "math"

// Breath is one synthetic cycle: a trough of Trough samples followed by a
// peak of Peak samples, both scaled by Amplitude.
type Breath struct {
	Trough    int
	Peak      int
	Amplitude float64
}

// Regular returns n identical breaths with the given half-wave length.
func Regular(n, half int) []Breath {
	out := make([]Breath, n)
	for i := range out {
		out[i] = Breath{Trough: half, Peak: half, Amplitude: 1}
	}
	return out
}

// HalfWave returns length samples of amplitude*sin(pi*k/length). A negative
// amplitude gives a trough.
func HalfWave(length int, amplitude float64) []float64 {
	out := make([]float64, length)
	for k := range out {
		out[k] = amplitude * math.Sin(math.Pi*float64(k)/float64(length))
	}
	return out
}

// BreathSignal renders breaths into one signal. A leading peak of lead
// samples is prepended so the first trough is entered from above baseline.
func BreathSignal(lead int, breaths []Breath) []float64 {
	signal := HalfWave(lead, 1)
	for _, b := range breaths {
		signal = append(signal, HalfWave(b.Trough, -b.Amplitude)...)
		signal = append(signal, HalfWave(b.Peak, b.Amplitude)...)
	}
	return signal
}

// Sine returns n samples of a unit sine with the given period in samples.
func Sine(n int, period float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * float64(i) / period)
	}
	return out
}

// ScaleRange multiplies signal[lo:hi] by factor in place.
func ScaleRange(signal []float64, lo, hi int, factor float64) {
	for i := lo; i < hi && i < len(signal); i++ {
		signal[i] *= factor
	}
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
