// Package respiration segments a preprocessed respiration signal into
// breathing cycles and screens out physiologically implausible ones.
//
// The pipeline has three pure stages:
//
//	EstimateBaseline -> DetectCycles -> FilterCycles
//
// followed by ComputeFeatures, which turns the surviving boundaries into a
// per-cycle feature table annotated with the keep mask. Every stage takes its
// inputs by value and returns new slices; nothing here holds state between
// calls, so independent recordings can be processed concurrently.
//
// Sample indices are used throughout. A Signal is expected to be finite,
// evenly sampled and already band-limited by the caller.
package respiration

import "fmt"

// Cycle holds the sample indices bounding one breath.
// Inspiration < Expiration < NextInspiration for every valid cycle.
type Cycle struct {
	Inspiration     int
	Expiration      int
	NextInspiration int
}

// Valid reports whether the boundaries are strictly increasing and lie
// inside a signal of length n.
func (c Cycle) Valid(n int) bool {
	return c.Inspiration >= 0 &&
		c.Inspiration < c.Expiration &&
		c.Expiration < c.NextInspiration &&
		c.NextInspiration < n
}

func (c Cycle) String() string {
	return fmt.Sprintf("[%d %d %d]", c.Inspiration, c.Expiration, c.NextInspiration)
}

// CycleTable is a chronological sequence of cycles.
type CycleTable []Cycle

// Inspirations returns the inspiration onsets of every row.
func (t CycleTable) Inspirations() []int {
	out := make([]int, len(t))
	for i, c := range t {
		out[i] = c.Inspiration
	}
	return out
}

// Expirations returns the expiration onsets of every row.
func (t CycleTable) Expirations() []int {
	out := make([]int, len(t))
	for i, c := range t {
		out[i] = c.Expiration
	}
	return out
}

// Validate checks ordering and index bounds of every row against a signal of
// length n.
func (t CycleTable) Validate(n int) error {
	for i, c := range t {
		if !c.Valid(n) {
			return fmt.Errorf("cycle %d %v out of order or outside [0,%d): %w", i, c, n, ErrDegenerateInput)
		}
		if i > 0 && c.Inspiration < t[i-1].Expiration {
			return fmt.Errorf("cycle %d starts before expiration of cycle %d: %w", i, i-1, ErrDegenerateInput)
		}
	}
	return nil
}

// KeepMask marks which rows of a final CycleTable are retained for analysis.
type KeepMask []bool

// Count returns the number of kept rows.
func (m KeepMask) Count() int {
	n := 0
	for _, k := range m {
		if k {
			n++
		}
	}
	return n
}

// Ints renders the mask as 0/1 values.
func (m KeepMask) Ints() []int {
	out := make([]int, len(m))
	for i, k := range m {
		if k {
			out[i] = 1
		}
	}
	return out
}
