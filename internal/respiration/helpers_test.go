package respiration

import (
	"github.com/banshee-data/respiration.report/internal/testutil"
)

const (
	testRate = 100.0 // Hz
	testHalf = 200   // samples per half-breath, 4 s cycles at testRate
)

// regularSignal returns n identical 4 s breaths preceded by a lead peak.
func regularSignal(n int) []float64 {
	return testutil.BreathSignal(testHalf, testutil.Regular(n, testHalf))
}

// regularCycles is what DetectCycles returns for regularSignal(n) with the
// default options: the mid threshold is crossed one sample into each trough
// and the mean is regained one sample into the following peak.
func regularCycles(n int) CycleTable {
	out := make(CycleTable, n-1)
	for j := range out {
		trough := testHalf + 2*testHalf*j
		out[j] = Cycle{
			Inspiration:     trough + 1,
			Expiration:      trough + testHalf + 1,
			NextInspiration: trough + 2*testHalf + 1,
		}
	}
	return out
}
