package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	if c.Since(start) < 0 {
		t.Error("Since returned a negative duration")
	}
}

func TestMockClock(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewMockClock(t0)

	if got := c.Now(); !got.Equal(t0) {
		t.Errorf("Now() = %v, want %v", got, t0)
	}
	c.Advance(2 * time.Second)
	if got := c.Since(t0); got != 2*time.Second {
		t.Errorf("Since() = %v, want 2s", got)
	}

	c.Set(t0)
	c.SetStep(time.Second)
	first, second := c.Now(), c.Now()
	if d := second.Sub(first); d != time.Second {
		t.Errorf("step between Now calls = %v, want 1s", d)
	}
	if got := c.Since(first); got != 2*time.Second {
		t.Errorf("Since(first) = %v, want 2s", got)
	}
}
