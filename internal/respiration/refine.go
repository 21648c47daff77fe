package respiration

import "gonum.org/v1/gonum/floats"

// refineWindowMs is how far before a threshold-crossing onset the
// derivative search may look.
const refineWindowMs = 10.0

// Gradient returns the first difference of x using central differences in
// the interior and one-sided differences at both edges. len(x) must be >= 2.
func Gradient(x []float64) []float64 {
	n := len(x)
	g := make([]float64, n)
	if n < 2 {
		return g
	}
	g[0] = x[1] - x[0]
	g[n-1] = x[n-1] - x[n-2]
	for i := 1; i < n-1; i++ {
		g[i] = (x[i+1] - x[i-1]) / 2
	}
	return g
}

// refineInspirations moves each inspiration onset paired with an expiration
// onset to the last falling zero crossing of the second derivative between
// the onset window start and the steepest descent. The window never starts
// at or before the previous expiration onset. inspi is modified in place and
// must be a private copy.
func refineInspirations(signal []float64, sampleRate float64, inspi, expi []int) {
	delta := int(refineWindowMs * sampleRate / 1000)
	d1 := Gradient(signal)
	d2 := Gradient(d1)

	for i := 0; i < len(expi) && i < len(inspi); i++ {
		i0 := inspi[i] - delta
		if i0 < 0 {
			i0 = 0
		}
		// Never move an onset back past the previous expiration.
		if i > 0 && i0 <= expi[i-1] {
			i0 = expi[i-1] + 1
		}
		if expi[i] <= i0 {
			continue
		}
		i1 := i0 + floats.MinIdx(signal[i0:expi[i]])
		if i1 == i0 {
			continue
		}
		i1 = i0 + floats.MinIdx(d1[i0:i1])
		if i1-i0 <= 2 {
			continue
		}
		i1 = i0 + floats.MinIdx(d2[i0:i1])
		if i1-i0 <= 2 {
			continue
		}
		seg := d2[i0:i1]
		for k := len(seg) - 2; k >= 0; k-- {
			if seg[k] >= 0 && seg[k+1] < 0 {
				Tracef("refined inspiration %d: %d -> %d", i, inspi[i], i0+k)
				inspi[i] = i0 + k
				break
			}
		}
	}
}
