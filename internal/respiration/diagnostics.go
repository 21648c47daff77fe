package respiration

// DiagnosticsSink receives the full exclusion report of a FilterCycles call.
// Implementations render or store it; the report and the signal it
// references must be treated as read-only.
type DiagnosticsSink interface {
	RecordExclusion(report *ExclusionReport) error
}

// DiagnosticsFunc adapts a function to DiagnosticsSink.
type DiagnosticsFunc func(report *ExclusionReport) error

// RecordExclusion calls f(report).
func (f DiagnosticsFunc) RecordExclusion(report *ExclusionReport) error { return f(report) }

// ExclusionReport records every intermediate of one FilterCycles call.
// Index slices refer to the table named in their comment.
type ExclusionReport struct {
	Signal     []float64
	SampleRate float64
	Metric     ExclusionMetric

	Candidates CycleTable

	// Stage A, indexed like Candidates.
	InspiLogDurations []float64
	InspiSpread       Spread
	InspiThreshold    float64
	InspiExcluded     []int

	// Candidates that passed stage A.
	Survivors CycleTable

	// Stages B and C, indexed like Survivors.
	AmplitudeMetrics []float64
	Durations        []float64 // seconds to the next survivor
	MinDuration      float64
	DurationExcluded []int

	// Stage D, indexed like Final.
	MetricSpread    Spread
	MetricThreshold float64
	MetricExcluded  []int

	Final CycleTable
	Keep  KeepMask
}

// InspiExcludedOnsets returns the sample indices of cycles removed by the
// inspiration-duration screen.
func (r *ExclusionReport) InspiExcludedOnsets() []int {
	return pick(r.Candidates, r.InspiExcluded)
}

// DurationExcludedOnsets returns the sample indices of cycles removed by the
// cycle-duration screen.
func (r *ExclusionReport) DurationExcludedOnsets() []int {
	return pick(r.Survivors, r.DurationExcluded)
}

// MetricExcludedOnsets returns the sample indices of final cycles masked out
// by the amplitude screen.
func (r *ExclusionReport) MetricExcludedOnsets() []int {
	return pick(r.Final, r.MetricExcluded)
}

func pick(t CycleTable, idx []int) []int {
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(t) {
			out = append(out, t[i].Inspiration)
		}
	}
	return out
}

// Time converts a sample index into seconds.
func (r *ExclusionReport) Time(i int) float64 {
	return float64(i) / r.SampleRate
}
