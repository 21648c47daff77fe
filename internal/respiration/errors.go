package respiration

import "errors"

// ErrNoCyclesFound is returned when detection yields fewer than two
// inspiration onsets. It is terminal for that signal: retrying with the same
// parameters gives the same answer.
var ErrNoCyclesFound = errors.New("no respiration cycles detected")

// ErrDegenerateInput is returned for signals or cycle tables whose statistics
// are undefined (too short, constant, non-finite, inverted thresholds).
var ErrDegenerateInput = errors.New("degenerate respiration input")

// ErrInsufficientCycles is returned when a population is smaller than
// MinCyclesForStatistics.
var ErrInsufficientCycles = errors.New("too few cycles for exclusion statistics")
