package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalfWave(t *testing.T) {
	t.Parallel()

	peak := HalfWave(4, 2)
	require.Len(t, peak, 4)
	assert.Equal(t, 0.0, peak[0])
	assert.InDelta(t, 2.0, peak[2], 1e-12)

	trough := HalfWave(4, -1)
	assert.InDelta(t, -1.0, trough[2], 1e-12)
}

func TestBreathSignal(t *testing.T) {
	t.Parallel()

	breaths := Regular(3, 50)
	breaths[1].Peak = 20
	signal := BreathSignal(50, breaths)
	require.Len(t, signal, 50+3*100-30)

	// Identical breaths render identical samples.
	first := signal[50:150]
	third := signal[220:320]
	assert.Equal(t, first, third)
}

func TestScaleRange(t *testing.T) {
	t.Parallel()

	s := []float64{1, 1, 1, 1}
	ScaleRange(s, 1, 10, 0.5)
	assert.Equal(t, []float64{1, 0.5, 0.5, 0.5}, s)
}

func TestSine(t *testing.T) {
	t.Parallel()

	s := Sine(8, 4)
	assert.InDelta(t, 1.0, s[1], 1e-12)
	assert.InDelta(t, -1.0, s[3], 1e-12)
}
