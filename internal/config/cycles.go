package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"github.com/banshee-data/respiration.report/internal/respiration"
)

// DefaultConfigPath is the path to the canonical cycle detection defaults.
const DefaultConfigPath = "config/cycles.defaults.json"

// CycleConfig holds the detector and filter parameters for a batch. Every
// field is optional; the Get* accessors fall back to the tuned defaults, so
// partial files are safe.
type CycleConfig struct {
	// Detection
	BaselineMode                  *string  `json:"baseline_mode,omitempty"`
	Baseline                      *float64 `json:"baseline,omitempty"`
	EpsilonFactor1                *float64 `json:"epsilon_factor1,omitempty"`
	EpsilonFactor2                *float64 `json:"epsilon_factor2,omitempty"`
	InspirationAdjustOnDerivative *bool    `json:"inspiration_adjust_on_derivative,omitempty"`

	// Exclusion
	ExclusionMetrics     *string   `json:"exclusion_metrics,omitempty"`
	MetricCoeffExclusion *float64  `json:"metric_coeff_exclusion,omitempty"`
	InspiCoeffExclusion  *float64  `json:"inspi_coeff_exclusion,omitempty"`
	RespiScale           []float64 `json:"respi_scale,omitempty"` // [min, max] breaths per second

	// SubjectRespiScale overrides RespiScale for individual subjects.
	SubjectRespiScale map[string][]float64 `json:"subject_respi_scale,omitempty"`

	// Batch
	SampleRate *float64 `json:"sample_rate,omitempty"` // Hz, for manifest rows without one
	Workers    *int     `json:"workers,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyCycleConfig returns a CycleConfig with all fields unset.
func EmptyCycleConfig() *CycleConfig {
	return &CycleConfig{}
}

// DefaultCycleConfig returns a config with every field set to its default.
func DefaultCycleConfig() *CycleConfig {
	return &CycleConfig{
		BaselineMode:                  ptrString(string(respiration.BaselineMean)),
		EpsilonFactor1:                ptrFloat64(10),
		EpsilonFactor2:                ptrFloat64(5),
		InspirationAdjustOnDerivative: ptrBool(false),
		ExclusionMetrics:              ptrString(string(respiration.MedianBased)),
		MetricCoeffExclusion:          ptrFloat64(3),
		InspiCoeffExclusion:           ptrFloat64(2),
		RespiScale:                    []float64{0.1, 0.35},
		Workers:                       ptrInt(4),
	}
}

// LoadCycleConfig loads a CycleConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadCycleConfig(path string) (*CycleConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCycleConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *CycleConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/respiration/monitor/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadCycleConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *CycleConfig) Validate() error {
	mode, err := respiration.ParseBaselineMode(c.GetBaselineMode())
	if err != nil {
		return err
	}
	if mode == respiration.BaselineManual && c.Baseline == nil {
		return fmt.Errorf("baseline_mode manual requires baseline")
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.SampleRate != nil && !(*c.SampleRate > 0) {
		return fmt.Errorf("sample_rate must be positive, got %v", *c.SampleRate)
	}
	if c.RespiScale != nil && len(c.RespiScale) != 2 {
		return fmt.Errorf("respi_scale must have 2 values, got %d", len(c.RespiScale))
	}
	for subject, bounds := range c.SubjectRespiScale {
		if len(bounds) != 2 {
			return fmt.Errorf("subject_respi_scale[%s] must have 2 values, got %d", subject, len(bounds))
		}
	}

	if err := c.FilterOptions("").Validate(); err != nil {
		return err
	}
	for _, subject := range c.Subjects() {
		if err := c.FilterOptions(subject).Validate(); err != nil {
			return fmt.Errorf("subject %s: %w", subject, err)
		}
	}
	return nil
}

// GetBaselineMode returns the baseline_mode value or the default.
func (c *CycleConfig) GetBaselineMode() string {
	if c.BaselineMode == nil {
		return string(respiration.BaselineMean)
	}
	return *c.BaselineMode
}

// GetEpsilonFactor1 returns the epsilon_factor1 value or the default.
func (c *CycleConfig) GetEpsilonFactor1() float64 {
	if c.EpsilonFactor1 == nil {
		return 10
	}
	return *c.EpsilonFactor1
}

// GetEpsilonFactor2 returns the epsilon_factor2 value or the default.
func (c *CycleConfig) GetEpsilonFactor2() float64 {
	if c.EpsilonFactor2 == nil {
		return 5
	}
	return *c.EpsilonFactor2
}

// GetInspirationAdjustOnDerivative returns the inspiration_adjust_on_derivative value or the default.
func (c *CycleConfig) GetInspirationAdjustOnDerivative() bool {
	if c.InspirationAdjustOnDerivative == nil {
		return false
	}
	return *c.InspirationAdjustOnDerivative
}

// GetExclusionMetrics returns the exclusion_metrics value or the default.
func (c *CycleConfig) GetExclusionMetrics() string {
	if c.ExclusionMetrics == nil {
		return string(respiration.MedianBased)
	}
	return *c.ExclusionMetrics
}

// GetMetricCoeffExclusion returns the metric_coeff_exclusion value or the default.
func (c *CycleConfig) GetMetricCoeffExclusion() float64 {
	if c.MetricCoeffExclusion == nil {
		return 3
	}
	return *c.MetricCoeffExclusion
}

// GetInspiCoeffExclusion returns the inspi_coeff_exclusion value or the default.
func (c *CycleConfig) GetInspiCoeffExclusion() float64 {
	if c.InspiCoeffExclusion == nil {
		return 2
	}
	return *c.InspiCoeffExclusion
}

// GetRespiScale returns the rate bounds for subject, honouring
// subject_respi_scale before respi_scale and the default.
func (c *CycleConfig) GetRespiScale(subject string) [2]float64 {
	if b, ok := c.SubjectRespiScale[subject]; ok && len(b) == 2 {
		return [2]float64{b[0], b[1]}
	}
	if len(c.RespiScale) == 2 {
		return [2]float64{c.RespiScale[0], c.RespiScale[1]}
	}
	return [2]float64{0.1, 0.35}
}

// GetSampleRate returns the sample_rate value, or 0 when unset.
func (c *CycleConfig) GetSampleRate() float64 {
	if c.SampleRate == nil {
		return 0
	}
	return *c.SampleRate
}

// GetWorkers returns the workers value or the default.
func (c *CycleConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// Subjects returns the subjects with rate-bound overrides, sorted.
func (c *CycleConfig) Subjects() []string {
	out := make([]string, 0, len(c.SubjectRespiScale))
	for s := range c.SubjectRespiScale {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// DetectOptions converts the detection fields. Call Validate first; an
// unknown baseline mode is passed through and rejected by the detector.
func (c *CycleConfig) DetectOptions() respiration.DetectOptions {
	mode, err := respiration.ParseBaselineMode(c.GetBaselineMode())
	if err != nil {
		mode = respiration.BaselineMode(c.GetBaselineMode())
	}
	return respiration.DetectOptions{
		BaselineMode:       mode,
		Baseline:           c.Baseline,
		EpsilonFactor1:     c.GetEpsilonFactor1(),
		EpsilonFactor2:     c.GetEpsilonFactor2(),
		RefineOnDerivative: c.GetInspirationAdjustOnDerivative(),
	}
}

// FilterOptions converts the exclusion fields for one subject. The
// diagnostics sink is left unset.
func (c *CycleConfig) FilterOptions(subject string) respiration.FilterOptions {
	metric, err := respiration.ParseExclusionMetric(c.GetExclusionMetrics())
	if err != nil {
		metric = respiration.ExclusionMetric(c.GetExclusionMetrics())
	}
	return respiration.FilterOptions{
		Metric:      metric,
		MetricCoeff: c.GetMetricCoeffExclusion(),
		InspiCoeff:  c.GetInspiCoeffExclusion(),
		RateBounds:  c.GetRespiScale(subject),
	}
}
