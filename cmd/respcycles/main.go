// Command respcycles detects breathing cycles in a batch of respiration
// recordings, screens them for outliers, and writes per-cycle features.
//
//	respcycles -manifest recordings.csv -out results -db cycles.db -plots png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/banshee-data/respiration.report/internal/batch"
	"github.com/banshee-data/respiration.report/internal/config"
	"github.com/banshee-data/respiration.report/internal/db"
	"github.com/banshee-data/respiration.report/internal/export"
	"github.com/banshee-data/respiration.report/internal/fsutil"
	"github.com/banshee-data/respiration.report/internal/monitoring"
	"github.com/banshee-data/respiration.report/internal/recording"
	"github.com/banshee-data/respiration.report/internal/respiration"
	"github.com/banshee-data/respiration.report/internal/respiration/monitor"
	"github.com/banshee-data/respiration.report/internal/security"
	"github.com/banshee-data/respiration.report/internal/version"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

type options struct {
	manifest    string
	configPath  string
	dbPath      string
	outDir      string
	plots       string
	workers     int
	sampleRate  float64
	confine     bool
	verbose     bool
	trace       bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("respcycles", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.manifest, "manifest", "", "CSV listing subject,condition,session,path[,sample_rate]")
	fs.StringVar(&o.configPath, "config", "", "JSON cycle configuration (built-in defaults when empty)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database to record the run in (skipped when empty)")
	fs.StringVar(&o.outDir, "out", "results", "directory for features.csv, cycle_counts.csv and plots")
	fs.StringVar(&o.plots, "plots", "none", "exclusion diagnostics: none, png or html")
	fs.IntVar(&o.workers, "workers", 0, "concurrent recordings (config value when 0)")
	fs.Float64Var(&o.sampleRate, "rate", 0, "sample rate in Hz for manifest rows without one (config value when 0)")
	fs.BoolVar(&o.confine, "confine", false, "reject recordings outside the manifest's directory")
	fs.BoolVar(&o.verbose, "v", false, "log per-stage counts and thresholds")
	fs.BoolVar(&o.trace, "trace", false, "log every per-cycle decision")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.showVersion {
		return o, nil
	}
	if o.manifest == "" {
		return nil, errors.New("-manifest is required")
	}
	switch o.plots {
	case "none", "png", "html":
	default:
		return nil, fmt.Errorf("-plots must be none, png or html, got %q", o.plots)
	}
	if o.workers < 0 {
		return nil, fmt.Errorf("-workers must be non-negative, got %d", o.workers)
	}
	return o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return exitUsage
	}
	if o.showVersion {
		fmt.Fprintln(stdout, "respcycles", version.String())
		return exitOK
	}

	logOut := &lockedWriter{w: stderr}
	logger := log.New(logOut, "", log.LstdFlags)
	monitoring.SetLogger(logger.Printf)
	w := respiration.LogWriters{Ops: logOut}
	if o.verbose || o.trace {
		w.Diag = logOut
	}
	if o.trace {
		w.Trace = logOut
	}
	respiration.SetLogWriters(w)

	if err := execute(ctx, o, stdout); err != nil {
		logger.Printf("respcycles: %v", err)
		return exitFailed
	}
	return exitOK
}

// lockedWriter serializes writes from the several loggers sharing stderr.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func execute(ctx context.Context, o *options, stdout io.Writer) error {
	cfg := config.DefaultCycleConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadCycleConfig(o.configPath); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	rate := o.sampleRate
	if rate == 0 {
		rate = cfg.GetSampleRate()
	}
	fsys := fsutil.OSFileSystem{}
	entries, err := recording.LoadManifest(fsys, o.manifest, rate)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	jobs := make([]batch.Job, len(entries))
	for i, e := range entries {
		if o.confine {
			if err := security.ValidatePathWithinDirectory(e.Path, filepath.Dir(o.manifest)); err != nil {
				return fmt.Errorf("manifest entry %s: %w", e.Key(), err)
			}
		}
		jobs[i] = batch.Job{Entry: e}
	}

	runner := &batch.Runner{
		Config:  cfg,
		Workers: o.workers,
		Load: func(j batch.Job) ([]float64, error) {
			return recording.LoadSignal(fsys, j.Path)
		},
		Diagnostics: diagnostics(fsys, filepath.Join(o.outDir, "plots"), o.plots),
		Sinks:       []batch.ReportSink{&export.Exporter{FS: fsys, Dir: o.outDir}},
	}
	if o.dbPath != "" {
		store, err := db.Open(o.dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		runner.Sinks = append(runner.Sinks, store)
	}

	monitoring.Logf("respcycles %s: %d recordings from %s", version.String(), len(jobs), o.manifest)
	rep, err := runner.Run(ctx, jobs)
	if err != nil {
		return err
	}
	printSummary(stdout, rep)
	if rep.Failed() {
		return fmt.Errorf("%d recordings failed", rep.Counts()[batch.StatusFailed])
	}
	return nil
}

func diagnostics(fsys fsutil.FileSystem, dir, kind string) batch.DiagnosticsFactory {
	switch kind {
	case "png":
		return func(j batch.Job) respiration.DiagnosticsSink {
			return monitor.NewCyclePlotter(fsys, dir, security.SanitizeFilename(j.Key()))
		}
	case "html":
		return func(j batch.Job) respiration.DiagnosticsSink {
			return &monitor.EChartsSink{FS: fsys, Dir: dir, Prefix: security.SanitizeFilename(j.Key())}
		}
	}
	return nil
}

func printSummary(w io.Writer, rep *batch.Report) {
	c := rep.Counts()
	fmt.Fprintf(w, "run %s: %d ok, %d skipped, %d failed\n", rep.RunID, c[batch.StatusOK], c[batch.StatusSkipped], c[batch.StatusFailed])
	for i := range rep.Outcomes {
		o := &rep.Outcomes[i]
		if o.Status == batch.StatusOK {
			continue
		}
		fmt.Fprintf(w, "  %-8s %s: %s\n", o.Status, o.Job.Key(), o.ErrText())
	}
}
