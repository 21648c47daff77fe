package respiration

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogWriters(t *testing.T) {
	var ops, diag bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag})
	t.Cleanup(func() { SetLogWriters(LogWriters{}) })

	Opsf("skipped %s", "rec-1")
	Diagf("detected %d cycles", 3)
	Tracef("muted")

	assert.Contains(t, ops.String(), "[respiration] ")
	assert.Contains(t, ops.String(), "skipped rec-1")
	assert.Contains(t, diag.String(), "detected 3 cycles")
	assert.NotContains(t, diag.String(), "muted")
}
