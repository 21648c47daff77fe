// Package monitor renders the exclusion diagnostics of the cycle filter as
// PNG plots or interactive HTML pages.
package monitor

import (
	"image/color"

	"github.com/banshee-data/respiration.report/internal/respiration"
)

// maxLinePoints caps how many signal samples a rendered line carries.
const maxLinePoints = 20000

// markerSet is one group of annotated sample indices.
type markerSet struct {
	Name    string
	Indices []int
	Color   color.RGBA
}

var (
	colorSignal   = color.RGBA{R: 80, G: 80, B: 80, A: 255}
	colorInspi    = color.RGBA{G: 160, A: 255}
	colorExpi     = color.RGBA{B: 200, A: 255}
	colorInspiEx  = color.RGBA{R: 220, A: 255}
	colorDuration = color.RGBA{R: 240, G: 140, A: 255}
	colorMetric   = color.RGBA{R: 150, B: 170, A: 255}
)

// overviewMarkers annotates the kept boundaries and every exclusion stage.
func overviewMarkers(r *respiration.ExclusionReport) []markerSet {
	inspi, expi := selectedBoundaries(r)
	return []markerSet{
		{Name: "selected inspiration", Indices: inspi, Color: colorInspi},
		{Name: "selected expiration", Indices: expi, Color: colorExpi},
		{Name: "short inspiration", Indices: r.InspiExcludedOnsets(), Color: colorInspiEx},
		{Name: "short cycle", Indices: r.DurationExcludedOnsets(), Color: colorDuration},
		{Name: "low amplitude", Indices: r.MetricExcludedOnsets(), Color: colorMetric},
	}
}

// finalMarkers annotates only the kept boundaries.
func finalMarkers(r *respiration.ExclusionReport) []markerSet {
	inspi, expi := selectedBoundaries(r)
	return []markerSet{
		{Name: "inspiration", Indices: inspi, Color: colorInspi},
		{Name: "expiration", Indices: expi, Color: colorExpi},
	}
}

func selectedBoundaries(r *respiration.ExclusionReport) (inspi, expi []int) {
	for j, c := range r.Final {
		if j < len(r.Keep) && r.Keep[j] {
			inspi = append(inspi, c.Inspiration)
			expi = append(expi, c.Expiration)
		}
	}
	return inspi, expi
}

// lineStride returns the sample step that keeps a line under maxLinePoints.
func lineStride(n int) int {
	if n <= maxLinePoints {
		return 1
	}
	return (n + maxLinePoints - 1) / maxLinePoints
}
