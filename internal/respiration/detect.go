package respiration

import "fmt"

// DetectCycles finds breathing cycles in signal by hysteresis thresholding
// around the baseline.
//
// Inspiration onsets are downward crossings of the mid threshold that are
// confirmed by a later crossing of the deeper low threshold. Expiration
// onsets are the first upward crossings of the baseline level after each
// inspiration. The returned table is chained: row i's NextInspiration is
// row i+1's Inspiration.
//
// ErrNoCyclesFound is returned when fewer than two inspiration onsets
// survive cleaning; ErrDegenerateInput when the signal cannot be measured.
func DetectCycles(signal []float64, sampleRate float64, opts DetectOptions) (CycleTable, error) {
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}
	b, err := EstimateBaseline(signal, opts)
	if err != nil {
		return nil, err
	}
	Diagf("baseline level=%.6g p10=%.6g low=%.6g mid=%.6g", b.Level, b.P10, b.Low, b.Mid)

	deep := DownCrossings(signal, b.Low)
	inspi := confirmedOnsets(DownCrossings(signal, b.Mid), deep)
	expi := followingEvents(UpCrossings(signal, b.Level), inspi)
	inspi, expi = dropSharedExpirations(inspi, expi)

	if len(inspi) == 0 {
		return nil, ErrNoCyclesFound
	}

	expi = between(expi, inspi[0], inspi[len(inspi)-1])

	if opts.RefineOnDerivative {
		refineInspirations(signal, sampleRate, inspi, expi)
	}

	if len(expi) != len(inspi)-1 {
		inspi = inspi[:len(inspi)-1]
	}
	if len(inspi) < 2 {
		return nil, ErrNoCyclesFound
	}

	n := len(inspi) - 1
	if len(expi) < n {
		n = len(expi)
	}
	cycles := make(CycleTable, n)
	for i := range cycles {
		cycles[i] = Cycle{Inspiration: inspi[i], Expiration: expi[i], NextInspiration: inspi[i+1]}
	}
	if err := cycles.Validate(len(signal)); err != nil {
		return nil, fmt.Errorf("boundaries misaligned after cleaning: %w", err)
	}
	Diagf("detected %d cycles from %d deep crossings", len(cycles), len(deep))
	return cycles, nil
}

// dropSharedExpirations removes the later of any two inspirations that map
// to the same expiration onset, along with the duplicate expiration.
func dropSharedExpirations(inspi, expi []int) ([]int, []int) {
	keepI := make([]int, 0, len(inspi))
	keepE := make([]int, 0, len(expi))
	for i := range inspi {
		if i < len(expi) && i > 0 && expi[i] == expi[i-1] {
			continue
		}
		keepI = append(keepI, inspi[i])
		if i < len(expi) {
			keepE = append(keepE, expi[i])
		}
	}
	return keepI, keepE
}

// between returns the values strictly inside (lo, hi).
func between(values []int, lo, hi int) []int {
	out := make([]int, 0, len(values))
	for _, v := range values {
		if v > lo && v < hi {
			out = append(out, v)
		}
	}
	return out
}
