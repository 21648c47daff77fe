package respiration

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/respiration.report/internal/testutil"
)

// checkFilterInvariants asserts the structural guarantees every successful
// FilterCycles call makes.
func checkFilterInvariants(t *testing.T, cands CycleTable, res *FilterResult, n int) {
	t.Helper()
	require.NotEmpty(t, res.Cycles)
	require.Len(t, res.Keep, len(res.Cycles))
	assert.False(t, res.Keep[len(res.Keep)-1], "last row must be masked")
	require.NoError(t, res.Cycles.Validate(n))

	onsets := make(map[int]bool, len(cands))
	for _, c := range cands {
		onsets[c.Inspiration] = true
	}
	for i, c := range res.Cycles {
		assert.True(t, onsets[c.Inspiration], "row %d onset %d not a candidate", i, c.Inspiration)
		if i+1 < len(res.Cycles) {
			assert.Equal(t, res.Cycles[i+1].Inspiration, c.NextInspiration, "row %d not chained", i)
		}
	}
}

func TestFilterCycles_CleanSignal(t *testing.T) {
	t.Parallel()

	signal := regularSignal(10)
	cands := regularCycles(10)
	res, err := FilterCycles(signal, cands, testRate, DefaultFilterOptions())
	require.NoError(t, err)
	checkFilterInvariants(t, cands, res, len(signal))

	// The last candidate has no successor to time it against.
	assert.Empty(t, cmp.Diff(cands[:len(cands)-1], res.Cycles))
	want := KeepMask{true, true, true, true, true, true, true, false}
	assert.Equal(t, want, res.Keep)
	assert.Empty(t, res.Report.InspiExcluded)
	assert.Empty(t, res.Report.DurationExcluded)
	assert.Empty(t, res.Report.MetricExcluded)
}

func TestFilterCycles_ShortCycleRemoved(t *testing.T) {
	t.Parallel()

	// Breath 3 has a 0.5 s expiration, so its cycle lasts 2.5 s, below the
	// 1/0.35 s minimum. Its inspiration is as long as every other one.
	breaths := testutil.Regular(10, testHalf)
	breaths[3].Peak = 50
	signal := testutil.BreathSignal(testHalf, breaths)

	cands, err := DetectCycles(signal, testRate, DefaultDetectOptions())
	require.NoError(t, err)
	require.Len(t, cands, 9)
	glitch := cands[3]
	require.Equal(t, 250, glitch.NextInspiration-glitch.Inspiration)

	res, err := FilterCycles(signal, cands, testRate, DefaultFilterOptions())
	require.NoError(t, err)
	checkFilterInvariants(t, cands, res, len(signal))

	assert.Empty(t, res.Report.InspiExcluded)
	assert.Equal(t, []int{glitch.Inspiration}, res.Report.DurationExcludedOnsets())
	assert.NotContains(t, res.Cycles.Inspirations(), glitch.Inspiration)
	require.Len(t, res.Cycles, 7)
	assert.Equal(t, cands[4].Inspiration, res.Cycles[2].NextInspiration)
	assert.Equal(t, KeepMask{true, true, true, true, true, true, false}, res.Keep)
}

func TestFilterCycles_LowAmplitudeMasked(t *testing.T) {
	t.Parallel()

	for _, metric := range []ExclusionMetric{MedianBased, ModeBased} {
		t.Run(string(metric), func(t *testing.T) {
			signal := regularSignal(10)
			cands := regularCycles(10)
			// Flatten cycle 4 after detection so the boundaries stay put.
			testutil.ScaleRange(signal, cands[4].Inspiration, cands[5].Inspiration, 0.01)

			opts := DefaultFilterOptions()
			opts.Metric = metric
			res, err := FilterCycles(signal, cands, testRate, opts)
			require.NoError(t, err)
			checkFilterInvariants(t, cands, res, len(signal))

			require.Len(t, res.Cycles, 8)
			assert.Equal(t, cands[4].Inspiration, res.Cycles[4].Inspiration)
			assert.Equal(t, KeepMask{true, true, true, true, false, true, true, false}, res.Keep)
			assert.Equal(t, []int{cands[4].Inspiration}, res.Report.MetricExcludedOnsets())
		})
	}
}

func TestFilterCycles_ShortInspirationRemoved(t *testing.T) {
	t.Parallel()

	signal := regularSignal(10)
	cands := regularCycles(10)
	cands[5].Expiration = cands[5].Inspiration + 20

	res, err := FilterCycles(signal, cands, testRate, DefaultFilterOptions())
	require.NoError(t, err)
	checkFilterInvariants(t, cands, res, len(signal))

	assert.Equal(t, []int{5}, res.Report.InspiExcluded)
	assert.Equal(t, []int{cands[5].Inspiration}, res.Report.InspiExcludedOnsets())
	assert.NotContains(t, res.Cycles.Inspirations(), cands[5].Inspiration)
	// Cycle 4 now spans two breaths and is still kept.
	require.Len(t, res.Cycles, 7)
	assert.Equal(t, cands[6].Inspiration, res.Cycles[4].NextInspiration)
	assert.True(t, res.Keep[4])
}

func TestFilterCycles_InsufficientCycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		breaths int
		opts    func(*FilterOptions)
	}{
		{"two candidates", 3, nil},
		{"two left after duration screen", 4, nil},
		{"rate bound removes everything", 10, func(o *FilterOptions) { o.RateBounds = [2]float64{0.1, 0.2} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultFilterOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := FilterCycles(regularSignal(tt.breaths), regularCycles(tt.breaths), testRate, opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInsufficientCycles), "err = %v", err)
		})
	}
}

func TestFilterCycles_RejectsBadInput(t *testing.T) {
	t.Parallel()

	signal := regularSignal(6)
	cands := regularCycles(6)

	bad := append(CycleTable(nil), cands...)
	bad[2].Expiration = bad[2].Inspiration
	_, err := FilterCycles(signal, bad, testRate, DefaultFilterOptions())
	assert.True(t, errors.Is(err, ErrDegenerateInput), "err = %v", err)

	_, err = FilterCycles(signal, cands, 0, DefaultFilterOptions())
	assert.Error(t, err)

	opts := DefaultFilterOptions()
	opts.Metric = "trimmed"
	_, err = FilterCycles(signal, cands, testRate, opts)
	assert.Error(t, err)
}

func TestFilterCycles_Sink(t *testing.T) {
	t.Parallel()

	signal := regularSignal(8)
	cands := regularCycles(8)

	var got *ExclusionReport
	opts := DefaultFilterOptions()
	opts.Sink = DiagnosticsFunc(func(r *ExclusionReport) error {
		got = r
		return nil
	})
	res, err := FilterCycles(signal, cands, testRate, opts)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Same(t, res.Report, got)
	assert.Equal(t, res.Cycles, got.Final)
	assert.Equal(t, res.Keep, got.Keep)
	assert.InDelta(t, 1/0.35, got.MinDuration, 1e-12)
	assert.Len(t, got.Durations, len(got.Survivors)-1)
	assert.Equal(t, 2.0, got.Time(200))

	sinkErr := errors.New("disk full")
	opts.Sink = DiagnosticsFunc(func(*ExclusionReport) error { return sinkErr })
	_, err = FilterCycles(signal, cands, testRate, opts)
	assert.True(t, errors.Is(err, sinkErr), "err = %v", err)
}

func TestFilterOptionsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultFilterOptions().Validate())

	tests := map[string]func(*FilterOptions){
		"unknown metric":      func(o *FilterOptions) { o.Metric = "x" },
		"negative metric":     func(o *FilterOptions) { o.MetricCoeff = -1 },
		"negative inspi":      func(o *FilterOptions) { o.InspiCoeff = -1 },
		"zero upper bound":    func(o *FilterOptions) { o.RateBounds = [2]float64{0, 0} },
		"inverted bounds":     func(o *FilterOptions) { o.RateBounds = [2]float64{0.5, 0.3} },
		"negative lower rate": func(o *FilterOptions) { o.RateBounds = [2]float64{-0.1, 0.3} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			opts := DefaultFilterOptions()
			mutate(&opts)
			assert.Error(t, opts.Validate())
		})
	}
}

func TestAmplitudeMetric(t *testing.T) {
	t.Parallel()

	flat := amplitudeMetric([]float64{3, 3, 3})
	assert.False(t, math.IsNaN(flat) || math.IsInf(flat, 0), "flat segment must stay finite")
	assert.Less(t, flat, amplitudeMetric([]float64{0, 1}))
	assert.InDelta(t, 0.0, amplitudeMetric([]float64{0, 1}), 1e-12) // |-.5|+|.5| = 1
}
