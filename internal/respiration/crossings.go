package respiration

import "sort"

// DownCrossings returns every i where signal[i] >= threshold and
// signal[i+1] < threshold.
func DownCrossings(signal []float64, threshold float64) []int {
	var out []int
	for i := 0; i+1 < len(signal); i++ {
		if signal[i] >= threshold && signal[i+1] < threshold {
			out = append(out, i)
		}
	}
	return out
}

// UpCrossings returns every i where signal[i] < threshold and
// signal[i+1] >= threshold.
func UpCrossings(signal []float64, threshold float64) []int {
	var out []int
	for i := 0; i+1 < len(signal); i++ {
		if signal[i] < threshold && signal[i+1] >= threshold {
			out = append(out, i)
		}
	}
	return out
}

// confirmedOnsets keeps, for every deep crossing, the latest candidate onset
// strictly before it. Deep crossings with no earlier candidate are dropped.
// candidates must be sorted; the result is sorted and unique.
func confirmedOnsets(candidates, deep []int) []int {
	var out []int
	for _, d := range deep {
		k := sort.SearchInts(candidates, d)
		if k == 0 {
			continue
		}
		onset := candidates[k-1]
		if n := len(out); n > 0 && out[n-1] == onset {
			continue
		}
		out = append(out, onset)
	}
	return out
}

// followingEvents returns, for every onset, the first candidate strictly
// after it. Onsets with no later candidate contribute nothing, so the result
// may be shorter than onsets (only ever at its tail).
func followingEvents(candidates, onsets []int) []int {
	out := make([]int, 0, len(onsets))
	for _, o := range onsets {
		k := sort.Search(len(candidates), func(j int) bool { return candidates[j] > o })
		if k < len(candidates) {
			out = append(out, candidates[k])
		}
	}
	return out
}
