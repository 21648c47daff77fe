package monitor

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/respiration.report/internal/fsutil"
	"github.com/banshee-data/respiration.report/internal/respiration"
)

// EChartsSink is a respiration.DiagnosticsSink that writes
// <prefix>_cycles.html, an interactive version of the overview plot.
type EChartsSink struct {
	FS     fsutil.FileSystem
	Dir    string
	Prefix string
}

// Path returns the file RecordExclusion writes.
func (s *EChartsSink) Path() string {
	return filepath.Join(s.Dir, s.Prefix+"_cycles.html")
}

// RecordExclusion renders the page and saves it.
func (s *EChartsSink) RecordExclusion(r *respiration.ExclusionReport) error {
	if err := s.FS.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	var buf bytes.Buffer
	if err := renderCycleChart(&buf, r, s.Prefix); err != nil {
		return err
	}
	f, err := s.FS.Create(s.Path())
	if err != nil {
		return err
	}
	if _, err := buf.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", s.Path(), err)
	}
	return f.Close()
}

func renderCycleChart(buf *bytes.Buffer, r *respiration.ExclusionReport, title string) error {
	stride := lineStride(len(r.Signal))
	signal := make([]opts.ScatterData, 0, len(r.Signal)/stride+1)
	for i := 0; i < len(r.Signal); i += stride {
		signal = append(signal, opts.ScatterData{Value: []interface{}{r.Time(i), r.Signal[i]}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title + " cycles", Width: "1400px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("metric=%s candidates=%d selected=%d", r.Metric, len(r.Candidates), r.Keep.Count())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Respiration", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("signal", signal,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(colorSignal)}),
	)
	for _, m := range overviewMarkers(r) {
		pts := make([]opts.ScatterData, len(m.Indices))
		for k, i := range m.Indices {
			pts[k] = opts.ScatterData{Value: []interface{}{r.Time(i), r.Signal[i]}}
		}
		scatter.AddSeries(m.Name, pts,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(m.Color)}),
		)
	}
	return scatter.Render(buf)
}

func hexColor(c interface{ RGBA() (r, g, b, a uint32) }) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
