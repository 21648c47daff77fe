// Package export writes batch results as CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/respiration.report/internal/batch"
	"github.com/banshee-data/respiration.report/internal/fsutil"
)

// File names written by Exporter.
const (
	FeaturesFile = "features.csv"
	CountsFile   = "cycle_counts.csv"
)

var featureHeader = []string{
	"subject", "condition", "session", "cycle",
	"inspi_index", "expi_index", "next_inspi_index",
	"inspi_time", "expi_time", "next_inspi_time",
	"cycle_duration", "inspi_duration", "expi_duration", "cycle_freq",
	"inspi_volume", "expi_volume", "total_volume",
	"inspi_amplitude", "expi_amplitude", "total_amplitude",
	"select",
}

var countHeader = []string{
	"subject", "condition", "session", "status",
	"n_samples", "n_candidates", "n_final", "n_selected", "error",
}

// CSVWriter wraps csv.Writer with methods for feature and count output.
type CSVWriter struct {
	Features *csv.Writer
	Counts   *csv.Writer
}

// NewCSVWriter creates a CSVWriter over the given feature and count writers.
func NewCSVWriter(features, counts io.Writer) *CSVWriter {
	return &CSVWriter{
		Features: csv.NewWriter(features),
		Counts:   csv.NewWriter(counts),
	}
}

// WriteHeaders writes the header row of both files.
func (c *CSVWriter) WriteHeaders() {
	c.Features.Write(featureHeader)
	c.Counts.Write(countHeader)
}

// WriteOutcome writes one count row and, for successful jobs, one feature
// row per cycle.
func (c *CSVWriter) WriteOutcome(o *batch.Outcome) {
	e := o.Job.Entry
	for i, f := range o.Features {
		c.Features.Write([]string{
			e.Subject, e.Condition, e.Session, strconv.Itoa(i),
			strconv.Itoa(f.InspiIndex), strconv.Itoa(f.ExpiIndex), strconv.Itoa(f.NextInspiIndex),
			ff(f.InspiTime), ff(f.ExpiTime), ff(f.NextInspiTime),
			ff(f.CycleDuration), ff(f.InspiDuration), ff(f.ExpiDuration), ff(f.CycleFreq),
			ff(f.InspiVolume), ff(f.ExpiVolume), ff(f.TotalVolume),
			ff(f.InspiAmplitude), ff(f.ExpiAmplitude), ff(f.TotalAmplitude),
			strconv.FormatBool(f.Select),
		})
	}

	final := 0
	if o.Result != nil {
		final = len(o.Result.Cycles)
	}
	c.Counts.Write([]string{
		e.Subject, e.Condition, e.Session, string(o.Status),
		strconv.Itoa(o.Samples), strconv.Itoa(len(o.Candidates)), strconv.Itoa(final),
		strconv.Itoa(o.Features.SelectedCount()), o.ErrText(),
	})
}

// Flush flushes both writers and returns the first error either saw.
func (c *CSVWriter) Flush() error {
	c.Features.Flush()
	c.Counts.Flush()
	if err := c.Features.Error(); err != nil {
		return fmt.Errorf("features csv: %w", err)
	}
	if err := c.Counts.Error(); err != nil {
		return fmt.Errorf("counts csv: %w", err)
	}
	return nil
}

// WriteReport writes headers and every outcome of rep in job order.
func (c *CSVWriter) WriteReport(_ context.Context, rep *batch.Report) error {
	c.WriteHeaders()
	for i := range rep.Outcomes {
		c.WriteOutcome(&rep.Outcomes[i])
	}
	return c.Flush()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// Exporter is a batch.ReportSink writing FeaturesFile and CountsFile into
// Dir.
type Exporter struct {
	FS  fsutil.FileSystem
	Dir string
}

// WriteReport creates Dir if needed and writes both files.
func (e *Exporter) WriteReport(ctx context.Context, rep *batch.Report) (err error) {
	fsys := e.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if err := fsys.MkdirAll(e.Dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	features, err := fsys.Create(filepath.Join(e.Dir, FeaturesFile))
	if err != nil {
		return err
	}
	defer closeInto(features, &err)
	counts, err := fsys.Create(filepath.Join(e.Dir, CountsFile))
	if err != nil {
		return err
	}
	defer closeInto(counts, &err)

	return NewCSVWriter(features, counts).WriteReport(ctx, rep)
}

func closeInto(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
