package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/banshee-data/respiration.report/internal/batch"
)

// Run is one row of the runs table.
type Run struct {
	RunID      string
	StartedAt  time.Time
	ConfigJSON string
}

// CycleRow is one stored cycle.
type CycleRow struct {
	Subject        string
	Condition      string
	Session        string
	Cycle          int
	InspiIndex     int
	ExpiIndex      int
	NextInspiIndex int
	CycleDuration  float64
	InspiDuration  float64
	ExpiDuration   float64
	CycleFreq      float64
	InspiVolume    float64
	ExpiVolume     float64
	TotalVolume    float64
	InspiAmplitude float64
	ExpiAmplitude  float64
	TotalAmplitude float64
	Selected       bool
}

// CycleCount is the number of selected cycles of one successful recording.
type CycleCount struct {
	Subject   string
	Condition string
	Session   string
	Selected  int
}

// Exclusion stages stored in the exclusions table.
const (
	StageInspi    = "inspi"
	StageDuration = "duration"
	StageMetric   = "metric"
)

// WriteReport stores rep in a single transaction. It implements
// batch.ReportSink.
func (db *DB) WriteReport(ctx context.Context, rep *batch.Report) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logf("warning: failed to rollback transaction: %v", err)
		}
	}()

	cfgJSON := []byte("{}")
	if rep.Config != nil {
		if cfgJSON, err = json.Marshal(rep.Config); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, config_json) VALUES (?, ?, ?)`,
		rep.RunID, rep.Started.UTC().Format(time.RFC3339Nano), string(cfgJSON)); err != nil {
		return fmt.Errorf("insert run %s: %w", rep.RunID, err)
	}
	for i := range rep.Outcomes {
		if err := recordOutcome(ctx, tx, rep.RunID, &rep.Outcomes[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logf("stored run %s with %d recordings", rep.RunID, len(rep.Outcomes))
	return nil
}

func recordOutcome(ctx context.Context, tx *sql.Tx, runID string, o *batch.Outcome) error {
	e := o.Job.Entry
	final := 0
	if o.Result != nil {
		final = len(o.Result.Cycles)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recordings (run_id, subject, condition, session, path, sample_rate,
			status, error, n_samples, n_candidates, n_final, n_selected, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, e.Subject, e.Condition, e.Session, e.Path, e.SampleRate,
		string(o.Status), o.ErrText(), o.Samples, len(o.Candidates), final,
		o.Features.SelectedCount(), float64(o.Elapsed)/float64(time.Millisecond),
	); err != nil {
		return fmt.Errorf("insert recording %s: %w", e.Key(), err)
	}

	cycleStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cycles (run_id, subject, condition, session, cycle,
			inspi_index, expi_index, next_inspi_index,
			cycle_duration, inspi_duration, expi_duration, cycle_freq,
			inspi_volume, expi_volume, total_volume,
			inspi_amplitude, expi_amplitude, total_amplitude, selected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer cycleStmt.Close()
	for i, f := range o.Features {
		if _, err := cycleStmt.ExecContext(ctx,
			runID, e.Subject, e.Condition, e.Session, i,
			f.InspiIndex, f.ExpiIndex, f.NextInspiIndex,
			f.CycleDuration, f.InspiDuration, f.ExpiDuration, f.CycleFreq,
			f.InspiVolume, f.ExpiVolume, f.TotalVolume,
			f.InspiAmplitude, f.ExpiAmplitude, f.TotalAmplitude, f.Select,
		); err != nil {
			return fmt.Errorf("insert cycle %d of %s: %w", i, e.Key(), err)
		}
	}

	if o.Result == nil || o.Result.Report == nil {
		return nil
	}
	r := o.Result.Report
	for _, ex := range []struct {
		stage  string
		onsets []int
	}{
		{StageInspi, r.InspiExcludedOnsets()},
		{StageDuration, r.DurationExcludedOnsets()},
		{StageMetric, r.MetricExcludedOnsets()},
	} {
		for _, onset := range ex.onsets {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO exclusions (run_id, subject, condition, session, stage, onset) VALUES (?, ?, ?, ?, ?, ?)`,
				runID, e.Subject, e.Condition, e.Session, ex.stage, onset); err != nil {
				return fmt.Errorf("insert exclusion of %s: %w", e.Key(), err)
			}
		}
	}
	return nil
}

// Runs lists stored runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT run_id, started_at, config_json FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.RunID, &started, &r.ConfigJSON); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at %q: %w", r.RunID, started, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListCycles returns the cycles of runID, optionally restricted to one
// subject, ordered by recording and cycle.
func (db *DB) ListCycles(ctx context.Context, runID, subject string) ([]CycleRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT subject, condition, session, cycle,
			inspi_index, expi_index, next_inspi_index,
			cycle_duration, inspi_duration, expi_duration, cycle_freq,
			inspi_volume, expi_volume, total_volume,
			inspi_amplitude, expi_amplitude, total_amplitude, selected
		FROM cycles
		WHERE run_id = ? AND (? = '' OR subject = ?)
		ORDER BY subject, condition, session, cycle`, runID, subject, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRow
	for rows.Next() {
		var c CycleRow
		if err := rows.Scan(&c.Subject, &c.Condition, &c.Session, &c.Cycle,
			&c.InspiIndex, &c.ExpiIndex, &c.NextInspiIndex,
			&c.CycleDuration, &c.InspiDuration, &c.ExpiDuration, &c.CycleFreq,
			&c.InspiVolume, &c.ExpiVolume, &c.TotalVolume,
			&c.InspiAmplitude, &c.ExpiAmplitude, &c.TotalAmplitude, &c.Selected); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CycleCounts returns the selected-cycle count of every successful
// recording in runID.
func (db *DB) CycleCounts(ctx context.Context, runID string) ([]CycleCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT subject, condition, session, n_selected
		FROM cycle_counts
		WHERE run_id = ?
		ORDER BY subject, condition, session`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleCount
	for rows.Next() {
		var c CycleCount
		if err := rows.Scan(&c.Subject, &c.Condition, &c.Session, &c.Selected); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Exclusions returns the excluded onsets of one recording keyed by stage.
func (db *DB) Exclusions(ctx context.Context, runID, subject, condition, session string) (map[string][]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT stage, onset FROM exclusions
		WHERE run_id = ? AND subject = ? AND condition = ? AND session = ?
		ORDER BY stage, onset`, runID, subject, condition, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]int)
	for rows.Next() {
		var stage string
		var onset int
		if err := rows.Scan(&stage, &onset); err != nil {
			return nil, err
		}
		out[stage] = append(out[stage], onset)
	}
	return out, rows.Err()
}
