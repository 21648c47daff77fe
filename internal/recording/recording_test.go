package recording

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/respiration.report/internal/fsutil"
	"github.com/banshee-data/respiration.report/internal/respiration"
)

func TestReadSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []float64
	}{
		{"bare column", "1\n2.5\n-3\n", []float64{1, 2.5, -3}},
		{"header skipped", "resp\n0.1\n0.2\n", []float64{0.1, 0.2}},
		{"extra columns ignored", "resp,time\n1,0\n2,0.01\n", []float64{1, 2}},
		{"blank lines and comments", "# exported\n1\n\n2\n", []float64{1, 2}},
		{"scientific notation", "1e-3\n", []float64{0.001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadSignal(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadSignal_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadSignal(strings.NewReader(""))
	assert.True(t, errors.Is(err, respiration.ErrDegenerateInput), "empty: %v", err)

	_, err = ReadSignal(strings.NewReader("resp\n"))
	assert.True(t, errors.Is(err, respiration.ErrDegenerateInput), "header only: %v", err)

	_, err = ReadSignal(strings.NewReader("1\nNaN\n"))
	assert.True(t, errors.Is(err, respiration.ErrDegenerateInput), "NaN: %v", err)

	_, err = ReadSignal(strings.NewReader("1\nabc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestLoadSignal(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("rec/s01.csv", []byte("resp\n1\n2\n"))

	got, err := LoadSignal(mfs, "rec/s01.csv")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)

	_, err = LoadSignal(mfs, "rec/missing.csv")
	assert.Error(t, err)
}

func TestReadManifest(t *testing.T) {
	t.Parallel()

	in := `subject,condition,session,path,sample_rate
S01,baseline,1,s01_base.csv,250
S02,stress,,s02_stress.csv,
`
	got, err := ReadManifest(strings.NewReader(in), 100)
	require.NoError(t, err)

	want := []Entry{
		{Subject: "S01", Condition: "baseline", Session: "1", Path: "s01_base.csv", SampleRate: 250},
		{Subject: "S02", Condition: "stress", Path: "s02_stress.csv", SampleRate: 100},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadManifest mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "S01_baseline_1", got[0].Key())
	assert.Equal(t, "S02_stress", got[1].Key())
}

func TestReadManifest_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"missing path column": "subject,sample_rate\nS01,100\n",
		"empty":               "",
		"bad rate":            "subject,path,sample_rate\nS01,a.csv,fast\n",
		"no rate":             "subject,path\nS01,a.csv\n",
		"missing subject":     "subject,path,sample_rate\n,a.csv,100\n",
		"duplicate recording": "subject,condition,path,sample_rate\nS01,rest,a.csv,100\nS01,rest,b.csv,100\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadManifest(strings.NewReader(in), 0)
			assert.Error(t, err)
		})
	}
}

func TestReadManifest_DuplicateNamesRows(t *testing.T) {
	t.Parallel()

	in := "subject,condition,session,path\nS01,rest,1,a.csv\nS01,rest,2,b.csv\nS01,rest,1,c.csv\n"
	_, err := ReadManifest(strings.NewReader(in), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 4")
	assert.Contains(t, err.Error(), "S01_rest_1 already listed on row 2")
}

func TestLoadManifest_ResolvesRelativePaths(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("/data/study/manifest.csv", []byte("subject,path\nS01,raw/s01.csv\nS02,/abs/s02.csv\n"))

	got, err := LoadManifest(mfs, "/data/study/manifest.csv", 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/data/study/raw/s01.csv", got[0].Path)
	assert.Equal(t, "/abs/s02.csv", got[1].Path)
	assert.Equal(t, 50.0, got[0].SampleRate)
}
