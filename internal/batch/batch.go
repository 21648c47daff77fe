// Package batch runs the cycle pipeline over every recording in a manifest.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/respiration.report/internal/config"
	"github.com/banshee-data/respiration.report/internal/monitoring"
	"github.com/banshee-data/respiration.report/internal/recording"
	"github.com/banshee-data/respiration.report/internal/respiration"
	"github.com/banshee-data/respiration.report/internal/timeutil"
)

var logf = monitoring.Prefixed("[batch] ")

// Status classifies how a job ended.
type Status string

const (
	StatusOK Status = "ok"
	// StatusSkipped means the recording was read but holds no usable
	// breathing: too few cycles or a degenerate signal.
	StatusSkipped Status = "skipped"
	// StatusFailed means the job could not run: I/O or sink errors.
	StatusFailed Status = "failed"
)

// Job is one recording to process. Signal, when set, is used instead of
// loading Path.
type Job struct {
	recording.Entry
	Signal []float64
}

// Outcome is the result of one job. Candidates, Result and Features are set
// as far as the pipeline got.
type Outcome struct {
	Job        Job
	Status     Status
	Err        error
	Samples    int
	Candidates respiration.CycleTable
	Result     *respiration.FilterResult
	Features   respiration.FeatureTable
	Elapsed    time.Duration
}

// ErrText returns the error message or "".
func (o *Outcome) ErrText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Report collects the outcomes of one Run in job order.
type Report struct {
	RunID    string
	Started  time.Time
	Config   *config.CycleConfig
	Outcomes []Outcome
}

// Counts returns the number of outcomes per status.
func (r *Report) Counts() map[Status]int {
	out := map[Status]int{StatusOK: 0, StatusSkipped: 0, StatusFailed: 0}
	for _, o := range r.Outcomes {
		out[o.Status]++
	}
	return out
}

// Failed reports whether any job failed.
func (r *Report) Failed() bool {
	return r.Counts()[StatusFailed] > 0
}

// ReportSink consumes a finished report, e.g. the result store or the CSV
// exporter.
type ReportSink interface {
	WriteReport(ctx context.Context, rep *Report) error
}

// DiagnosticsFactory returns the exclusion diagnostics sink for a job, or
// nil for none.
type DiagnosticsFactory func(job Job) respiration.DiagnosticsSink

// Runner processes jobs concurrently.
type Runner struct {
	Config      *config.CycleConfig
	Workers     int                          // defaults to Config.GetWorkers()
	Load        func(Job) ([]float64, error) // required unless every job carries its Signal
	Diagnostics DiagnosticsFactory
	Sinks       []ReportSink
	Clock       timeutil.Clock // defaults to timeutil.RealClock
}

// Run processes every job and then hands the report to each sink in order.
// Per-job problems are recorded in the outcomes; the returned error is
// reserved for cancellation and sink failures.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Report, error) {
	cfg := r.Config
	if cfg == nil {
		cfg = config.EmptyCycleConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	workers := r.Workers
	if workers < 1 {
		workers = cfg.GetWorkers()
	}

	rep := &Report{
		RunID:    uuid.New().String(),
		Started:  r.clock().Now().UTC(),
		Config:   cfg,
		Outcomes: make([]Outcome, len(jobs)),
	}
	logf("run %s: %d recordings, %d workers", rep.RunID, len(jobs), workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep.Outcomes[i] = r.process(cfg, jobs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	c := rep.Counts()
	logf("run %s: %d ok, %d skipped, %d failed", rep.RunID, c[StatusOK], c[StatusSkipped], c[StatusFailed])

	for _, s := range r.Sinks {
		if err := s.WriteReport(ctx, rep); err != nil {
			return rep, fmt.Errorf("write report: %w", err)
		}
	}
	return rep, nil
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

func (r *Runner) process(cfg *config.CycleConfig, job Job) Outcome {
	clock := r.clock()
	start := clock.Now()
	out := Outcome{Job: job}
	out.Status, out.Err = r.pipeline(cfg, job, &out)
	switch out.Status {
	case StatusOK:
		respiration.Diagf("%s: %d of %d cycles selected", job.Key(), out.Features.SelectedCount(), len(out.Features))
	default:
		respiration.Opsf("%s %s: %v", job.Key(), out.Status, out.Err)
	}
	out.Elapsed = clock.Since(start)
	return out
}

func (r *Runner) pipeline(cfg *config.CycleConfig, job Job, out *Outcome) (Status, error) {
	signal := job.Signal
	if signal == nil {
		if r.Load == nil {
			return StatusFailed, errors.New("no signal and no loader")
		}
		var err error
		if signal, err = r.Load(job); err != nil {
			return classify(err), err
		}
	}
	out.Samples = len(signal)

	cycles, err := respiration.DetectCycles(signal, job.SampleRate, cfg.DetectOptions())
	if err != nil {
		return classify(err), fmt.Errorf("detect: %w", err)
	}
	out.Candidates = cycles

	opts := cfg.FilterOptions(job.Subject)
	if r.Diagnostics != nil {
		opts.Sink = r.Diagnostics(job)
	}
	res, err := respiration.FilterCycles(signal, cycles, job.SampleRate, opts)
	if err != nil {
		return classify(err), fmt.Errorf("filter: %w", err)
	}
	out.Result = res

	feats, err := respiration.ComputeFeatures(signal, job.SampleRate, res.Cycles, res.Keep, cfg.DetectOptions().Baseline)
	if err != nil {
		return classify(err), fmt.Errorf("features: %w", err)
	}
	out.Features = feats
	return StatusOK, nil
}

// classify maps pipeline errors on unusable recordings to StatusSkipped and
// everything else to StatusFailed.
func classify(err error) Status {
	switch {
	case errors.Is(err, respiration.ErrNoCyclesFound),
		errors.Is(err, respiration.ErrInsufficientCycles),
		errors.Is(err, respiration.ErrDegenerateInput):
		return StatusSkipped
	default:
		return StatusFailed
	}
}
