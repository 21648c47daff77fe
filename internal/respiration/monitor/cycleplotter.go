package monitor

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/respiration.report/internal/fsutil"
	"github.com/banshee-data/respiration.report/internal/respiration"
)

// CyclePlotter is a respiration.DiagnosticsSink that writes two PNGs per
// report: <prefix>_overview.png with every exclusion stage marked, and
// <prefix>_final.png with the selected cycles only.
type CyclePlotter struct {
	FS     fsutil.FileSystem
	Dir    string
	Prefix string
	Width  vg.Length
	Height vg.Length
}

// NewCyclePlotter creates a plotter writing into dir on fsys.
func NewCyclePlotter(fsys fsutil.FileSystem, dir, prefix string) *CyclePlotter {
	return &CyclePlotter{
		FS:     fsys,
		Dir:    dir,
		Prefix: prefix,
		Width:  14 * vg.Inch,
		Height: 5 * vg.Inch,
	}
}

// OverviewPath and FinalPath return the files RecordExclusion writes.
func (cp *CyclePlotter) OverviewPath() string {
	return filepath.Join(cp.Dir, cp.Prefix+"_overview.png")
}

func (cp *CyclePlotter) FinalPath() string {
	return filepath.Join(cp.Dir, cp.Prefix+"_final.png")
}

// RecordExclusion renders and saves both plots.
func (cp *CyclePlotter) RecordExclusion(r *respiration.ExclusionReport) error {
	if err := cp.FS.MkdirAll(cp.Dir, 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}

	overview, err := signalPlot(r, fmt.Sprintf("%s: cycle exclusion (%s)", cp.Prefix, r.Metric), overviewMarkers(r))
	if err != nil {
		return err
	}
	if err := cp.save(overview, cp.OverviewPath()); err != nil {
		return err
	}

	final, err := signalPlot(r, fmt.Sprintf("%s: %d selected cycles", cp.Prefix, r.Keep.Count()), finalMarkers(r))
	if err != nil {
		return err
	}
	return cp.save(final, cp.FinalPath())
}

func (cp *CyclePlotter) save(p *plot.Plot, path string) (err error) {
	wt, err := p.WriterTo(cp.Width, cp.Height, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	f, err := cp.FS.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err := wt.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func signalPlot(r *respiration.ExclusionReport, title string, markers []markerSet) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Respiration"

	stride := lineStride(len(r.Signal))
	pts := make(plotter.XYs, 0, len(r.Signal)/stride+1)
	for i := 0; i < len(r.Signal); i += stride {
		pts = append(pts, plotter.XY{X: r.Time(i), Y: r.Signal[i]})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = colorSignal
	line.Width = vg.Points(0.7)
	p.Add(line)

	for _, m := range markers {
		if len(m.Indices) == 0 {
			continue
		}
		xy := make(plotter.XYs, len(m.Indices))
		for k, i := range m.Indices {
			xy[k] = plotter.XY{X: r.Time(i), Y: r.Signal[i]}
		}
		sc, err := plotter.NewScatter(xy)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = m.Color
		sc.GlyphStyle.Radius = vg.Points(3)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("%s (%d)", m.Name, len(m.Indices)), sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
