package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/respiration.report/internal/config"
	"github.com/banshee-data/respiration.report/internal/recording"
	"github.com/banshee-data/respiration.report/internal/respiration"
	"github.com/banshee-data/respiration.report/internal/testutil"
	"github.com/banshee-data/respiration.report/internal/timeutil"
)

type captureSink struct {
	reports []*Report
	err     error
}

func (c *captureSink) WriteReport(_ context.Context, rep *Report) error {
	c.reports = append(c.reports, rep)
	return c.err
}

func job(subject string, signal []float64) Job {
	return Job{
		Entry:  recording.Entry{Subject: subject, Condition: "rest", Path: subject + ".csv", SampleRate: 100},
		Signal: signal,
	}
}

func breaths(n int) []float64 {
	return testutil.BreathSignal(200, testutil.Regular(n, 200))
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	loadErr := errors.New("permission denied")
	jobs := []Job{
		job("S01", breaths(10)),
		job("S02", breaths(1)),
		job("S03", nil),
		job("S04", breaths(12)),
	}
	sink := &captureSink{}

	var mu sync.Mutex
	diagnosed := map[string]bool{}
	r := &Runner{
		Config:  config.EmptyCycleConfig(),
		Workers: 2,
		Load: func(j Job) ([]float64, error) {
			return nil, loadErr
		},
		Diagnostics: func(j Job) respiration.DiagnosticsSink {
			return respiration.DiagnosticsFunc(func(*respiration.ExclusionReport) error {
				mu.Lock()
				defer mu.Unlock()
				diagnosed[j.Subject] = true
				return nil
			})
		},
		Sinks: []ReportSink{sink},
	}

	rep, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, rep.Outcomes, 4)
	_, err = uuid.Parse(rep.RunID)
	assert.NoError(t, err)

	ok := rep.Outcomes[0]
	assert.Equal(t, StatusOK, ok.Status)
	assert.Equal(t, "S01", ok.Job.Subject)
	assert.Len(t, ok.Candidates, 9)
	assert.Len(t, ok.Features, len(ok.Result.Cycles))
	assert.Equal(t, 7, ok.Features.SelectedCount())
	assert.Equal(t, len(breaths(10)), ok.Samples)
	assert.Empty(t, ok.ErrText())

	skipped := rep.Outcomes[1]
	assert.Equal(t, StatusSkipped, skipped.Status)
	assert.True(t, errors.Is(skipped.Err, respiration.ErrNoCyclesFound), "err = %v", skipped.Err)

	failed := rep.Outcomes[2]
	assert.Equal(t, StatusFailed, failed.Status)
	assert.True(t, errors.Is(failed.Err, loadErr))
	assert.Contains(t, failed.ErrText(), "permission denied")

	assert.Equal(t, StatusOK, rep.Outcomes[3].Status)

	assert.Equal(t, map[Status]int{StatusOK: 2, StatusSkipped: 1, StatusFailed: 1}, rep.Counts())
	assert.True(t, rep.Failed())
	require.Len(t, sink.reports, 1)
	assert.Same(t, rep, sink.reports[0])
	assert.Equal(t, map[string]bool{"S01": true, "S04": true}, diagnosed)
}

func TestRunner_SkipsInsufficientCycles(t *testing.T) {
	t.Parallel()

	r := &Runner{}
	rep, err := r.Run(context.Background(), []Job{job("S01", breaths(4))})
	require.NoError(t, err)
	o := rep.Outcomes[0]
	assert.Equal(t, StatusSkipped, o.Status)
	assert.True(t, errors.Is(o.Err, respiration.ErrInsufficientCycles), "err = %v", o.Err)
	assert.Len(t, o.Candidates, 3)
	assert.False(t, rep.Failed())
}

func TestRunner_SubjectRateBounds(t *testing.T) {
	t.Parallel()

	// 4 s cycles are too fast for S02's 5 s minimum.
	cfg := config.EmptyCycleConfig()
	cfg.SubjectRespiScale = map[string][]float64{"S02": {0.05, 0.2}}

	r := &Runner{Config: cfg}
	rep, err := r.Run(context.Background(), []Job{job("S01", breaths(10)), job("S02", breaths(10))})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, rep.Outcomes[0].Status)
	assert.Equal(t, StatusSkipped, rep.Outcomes[1].Status)
}

func TestRunner_DiagnosticsErrorFailsJob(t *testing.T) {
	t.Parallel()

	r := &Runner{
		Diagnostics: func(Job) respiration.DiagnosticsSink {
			return respiration.DiagnosticsFunc(func(*respiration.ExclusionReport) error {
				return errors.New("disk full")
			})
		},
	}
	rep, err := r.Run(context.Background(), []Job{job("S01", breaths(10))})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rep.Outcomes[0].Status)
	assert.Contains(t, rep.Outcomes[0].ErrText(), "disk full")
}

func TestRunner_SinkError(t *testing.T) {
	t.Parallel()

	sinkErr := errors.New("database locked")
	later := &captureSink{}
	r := &Runner{Sinks: []ReportSink{&captureSink{err: sinkErr}, later}}
	rep, err := r.Run(context.Background(), []Job{job("S01", breaths(10))})
	assert.True(t, errors.Is(err, sinkErr), "err = %v", err)
	require.NotNil(t, rep)
	assert.Empty(t, later.reports, "sinks after a failure must not run")
}

func TestRunner_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &captureSink{}
	r := &Runner{Sinks: []ReportSink{sink}}
	_, err := r.Run(ctx, []Job{job("S01", breaths(10))})
	assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
	assert.Empty(t, sink.reports)
}

func TestRunner_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.EmptyCycleConfig()
	cfg.RespiScale = []float64{0.5, 0.1}
	_, err := (&Runner{Config: cfg}).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunner_NoLoader(t *testing.T) {
	t.Parallel()

	rep, err := (&Runner{}).Run(context.Background(), []Job{job("S01", nil)})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rep.Outcomes[0].Status)
}

func TestRunner_Clock(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(t0)
	clock.SetStep(250 * time.Millisecond)

	r := &Runner{Config: config.EmptyCycleConfig(), Workers: 1, Clock: clock}
	rep, err := r.Run(context.Background(), []Job{job("S01", breaths(6)), job("S02", breaths(6))})
	require.NoError(t, err)

	assert.Equal(t, t0, rep.Started)
	for _, o := range rep.Outcomes {
		assert.Equal(t, 250*time.Millisecond, o.Elapsed, o.Job.Subject)
	}
}
