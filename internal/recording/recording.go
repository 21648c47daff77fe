// Package recording loads respiration signals and the batch manifest that
// lists them.
package recording

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/respiration.report/internal/fsutil"
	"github.com/banshee-data/respiration.report/internal/respiration"
)

// Entry identifies one recording of one subject.
type Entry struct {
	Subject    string
	Condition  string
	Session    string
	Path       string
	SampleRate float64 // Hz
}

// Key is a stable identifier for logs and file names.
func (e Entry) Key() string {
	parts := []string{e.Subject}
	for _, p := range []string{e.Condition, e.Session} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

// ReadSignal reads the first column of a CSV stream as a signal. A
// non-numeric first row is treated as a header. Blank lines are ignored.
func ReadSignal(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read signal: %w", err)
		}
		field := strings.TrimSpace(rec[0])
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			if len(out) == 0 && line == 1 {
				continue
			}
			return nil, fmt.Errorf("read signal: row %d: %q is not a number", line, field)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("read signal: row %d is not finite: %w", line, respiration.ErrDegenerateInput)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("read signal: no samples: %w", respiration.ErrDegenerateInput)
	}
	return out, nil
}

// LoadSignal opens path on fsys and reads it with ReadSignal.
func LoadSignal(fsys fsutil.FileSystem, path string) ([]float64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	signal, err := ReadSignal(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return signal, nil
}

var manifestColumns = []string{"subject", "condition", "session", "path", "sample_rate"}

// ReadManifest parses a manifest CSV. The header must name at least the
// subject and path columns; condition, session and sample_rate are
// optional. Rows without a sample rate get defaultRate, and a row that ends
// up with no positive rate is an error.
func ReadManifest(r io.Reader, defaultRate float64) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"subject", "path"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("manifest header %v lacks %q (columns: %s)", header, required, strings.Join(manifestColumns, ","))
		}
	}
	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var out []Entry
	seen := make(map[[3]string]int)
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		e := Entry{
			Subject:    get(rec, "subject"),
			Condition:  get(rec, "condition"),
			Session:    get(rec, "session"),
			Path:       get(rec, "path"),
			SampleRate: defaultRate,
		}
		if s := get(rec, "sample_rate"); s != "" {
			if e.SampleRate, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("manifest row %d: bad sample_rate %q", row, s)
			}
		}
		if e.Subject == "" || e.Path == "" {
			return nil, fmt.Errorf("manifest row %d: subject and path are required", row)
		}
		if !(e.SampleRate > 0) {
			return nil, fmt.Errorf("manifest row %d: no positive sample rate for %s", row, e.Key())
		}
		id := [3]string{e.Subject, e.Condition, e.Session}
		if first, ok := seen[id]; ok {
			return nil, fmt.Errorf("manifest row %d: %s already listed on row %d", row, e.Key(), first)
		}
		seen[id] = row
		out = append(out, e)
	}
	return out, nil
}

// LoadManifest reads the manifest at path. Relative recording paths are
// resolved against the manifest's directory.
func LoadManifest(fsys fsutil.FileSystem, path string, defaultRate float64) ([]Entry, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := ReadManifest(f, defaultRate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range entries {
		if !filepath.IsAbs(entries[i].Path) {
			entries[i].Path = filepath.Join(dir, entries[i].Path)
		}
	}
	return entries, nil
}
