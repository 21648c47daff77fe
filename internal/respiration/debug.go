package respiration

import (
	"io"
	"log"
	"sync"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	logMu       sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures all three streams at once. A nil writer mutes its
// stream. All streams start muted.
func SetLogWriters(w LogWriters) {
	logMu.Lock()
	defer logMu.Unlock()
	opsLogger = newLogger(w.Ops)
	diagLogger = newLogger(w.Diag)
	traceLogger = newLogger(w.Trace)
}

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[respiration] ", log.LstdFlags|log.Lmicroseconds)
}

func emit(l **log.Logger, format string, args ...interface{}) {
	logMu.RLock()
	lg := *l
	logMu.RUnlock()
	if lg != nil {
		lg.Printf(format, args...)
	}
}

// Opsf logs to the ops stream (actionable warnings, rejected recordings).
func Opsf(format string, args ...interface{}) { emit(&opsLogger, format, args...) }

// Diagf logs to the diag stream (per-stage counts and thresholds).
func Diagf(format string, args ...interface{}) { emit(&diagLogger, format, args...) }

// Tracef logs to the trace stream (per-cycle decisions).
func Tracef(format string, args ...interface{}) { emit(&traceLogger, format, args...) }
