package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { SetLogger(nil) })
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)
	Logf("run %d", 1)
	assert.Equal(t, []string{"run 1"}, *lines)

	// nil installs a no-op.
	SetLogger(nil)
	Logf("dropped")
	assert.Len(t, *lines, 1)
}

func TestPrefixed(t *testing.T) {
	batchf := Prefixed("[batch] ")
	lines := capture(t)

	batchf("%s done", "rec-1")
	assert.Equal(t, []string{"[batch] rec-1 done"}, *lines)
}
