// Package config loads the YAML run configuration and builds the model,
// parameters, population and sampler it describes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/talgya/episim/internal/compartment"
	"github.com/talgya/episim/internal/engine"
	"github.com/talgya/episim/internal/params"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full run configuration.
type Config struct {
	Model             string                   `yaml:"model"` // sir, seir, seair or seichar
	Odds              compartment.Odds         `yaml:"odds"`
	Population        PopulationConfig         `yaml:"population"`
	InitialInfections int                      `yaml:"initial_infections"`
	ProbVoC           float64                  `yaml:"prob_voc"`
	Sampler           SamplerConfig            `yaml:"sampler"`
	Params            params.Params            `yaml:"params"`
	ParamsVoC         *params.Params           `yaml:"params_voc,omitempty"` // Overrides Params for the variant of concern
	ParamsTable       string                   `yaml:"params_table,omitempty"`
	Vaccination       VaccinationConfig        `yaml:"vaccination"`
	Steps             int                      `yaml:"steps"`
	Seed              int64                    `yaml:"seed"` // 0 draws a fresh seed
	Parallel          bool                     `yaml:"parallel"`
	Epicurve          EpicurveConfig           `yaml:"epicurve"`
	Calibration       engine.CalibrationConfig `yaml:"calibration"`
	Output            OutputConfig             `yaml:"output"`
	RandomOrgKey      string                   `yaml:"random_org_key,omitempty"`
}

// PopulationConfig sizes the population. AgeCounts wins over
// AgeDistribution, which wins over a plain Size of age-0 agents.
type PopulationConfig struct {
	Size            int       `yaml:"size"`
	AgeCounts       []int     `yaml:"age_counts,omitempty"`
	AgeDistribution []float64 `yaml:"age_distribution,omitempty"`
}

// SamplerConfig selects and tunes the contact sampler.
type SamplerConfig struct {
	Kind          string            `yaml:"kind"` // uniform or age_structured
	Contacts      float64           `yaml:"contacts"`
	ProbInfection float64           `yaml:"prob_infection"`
	BinSize       int               `yaml:"bin_size,omitempty"`
	ContactMatrix [][]float64       `yaml:"contact_matrix,omitempty"`
	Fluctuation   FluctuationConfig `yaml:"fluctuation"`
}

// FluctuationConfig modulates contacts with smooth noise when Amplitude > 0.
type FluctuationConfig struct {
	Amplitude float64 `yaml:"amplitude"`
	Period    float64 `yaml:"period"`
}

// VaccinationConfig vaccinates agents at start and optionally every step.
type VaccinationConfig struct {
	Prob       float64 `yaml:"prob"`
	MinAge     int     `yaml:"min_age"`
	DailyDoses int     `yaml:"daily_doses"`
}

// EpicurveConfig names a target case curve for calibration. Target wins
// over File, which wins over FromRun.
type EpicurveConfig struct {
	Target  []float64 `yaml:"target,omitempty"`
	File    string    `yaml:"file,omitempty"`     // CSV with a "cases" column or a single column
	FromRun string    `yaml:"from_run,omitempty"` // Archived run ID
}

// HasTarget reports whether any target source is set.
func (e EpicurveConfig) HasTarget() bool {
	return len(e.Target) > 0 || e.File != "" || e.FromRun != ""
}

// OutputConfig names output destinations. Empty paths disable them.
type OutputConfig struct {
	CSV      string `yaml:"csv"`
	Database string `yaml:"database"`
}

// DefaultConfig returns a 1000-agent SEICHAR run with ten seeded infections.
func DefaultConfig() Config {
	return Config{
		Model: "seichar",
		Odds:  compartment.DefaultOdds(),
		Population: PopulationConfig{
			Size:            1000,
			AgeDistribution: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1},
		},
		InitialInfections: 10,
		Sampler: SamplerConfig{
			Kind:          "uniform",
			Contacts:      4.5,
			ProbInfection: 0.1,
			BinSize:       10,
			Fluctuation:   FluctuationConfig{Period: 7},
		},
		Params:      params.Default(),
		Steps:       30,
		Calibration: engine.DefaultCalibration(),
		Output: OutputConfig{
			CSV:      "epicurve.csv",
			Database: "episim.db",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result. Fields
// given under params_voc override the baseline params.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var raw struct {
		VoC yaml.Node `yaml:"params_voc"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ParamsVoC = nil
	if !raw.VoC.IsZero() {
		voc := cfg.Params
		if err := raw.VoC.Decode(&voc); err != nil {
			return Config{}, fmt.Errorf("parse params_voc: %w", err)
		}
		cfg.ParamsVoC = &voc
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every setting and reports the first problem.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	odds := c.ContagionOdds()
	if _, ok := compartment.ByName(c.Model, odds); !ok {
		return invalid("unknown model %q", c.Model)
	}
	if odds.Asymptomatic < 0 || odds.Severe < 0 || odds.Critical < 0 {
		return invalid("contagion odds must be non-negative")
	}
	// Contagion odds belong to the model, so they cannot vary by age or variant.
	if !c.Params.AsymptomaticInfectiousness.IsScalar() {
		return invalid("params.asymptomatic_infectiousness must be a scalar")
	}
	if c.ParamsVoC != nil && c.ParamsVoC.AsymptomaticInfectiousness != c.Params.AsymptomaticInfectiousness {
		return invalid("params_voc.asymptomatic_infectiousness must match params")
	}

	size, err := c.Population.total()
	if err != nil {
		return invalid("population: %v", err)
	}
	if size <= 0 {
		return invalid("population is empty")
	}
	if c.InitialInfections < 0 || c.InitialInfections > size {
		return invalid("initial_infections %d outside [0, %d]", c.InitialInfections, size)
	}
	if c.ProbVoC < 0 || c.ProbVoC > 1 {
		return invalid("prob_voc %v outside [0, 1]", c.ProbVoC)
	}

	s := c.Sampler
	switch s.Kind {
	case "uniform":
	case "age_structured":
		if s.BinSize <= 0 {
			return invalid("sampler bin_size must be positive")
		}
	default:
		return invalid("unknown sampler kind %q", s.Kind)
	}
	if s.Contacts < 0 {
		return invalid("sampler contacts must be non-negative")
	}
	if s.ProbInfection < 0 || s.ProbInfection > 1 {
		return invalid("sampler prob_infection %v outside [0, 1]", s.ProbInfection)
	}
	if s.Fluctuation.Amplitude < 0 || s.Fluctuation.Amplitude > 1 {
		return invalid("fluctuation amplitude %v outside [0, 1]", s.Fluctuation.Amplitude)
	}
	if s.Fluctuation.Amplitude > 0 && s.Fluctuation.Period <= 0 {
		return invalid("fluctuation period must be positive")
	}

	if err := validateParams("params", c.Params); err != nil {
		return invalid("%v", err)
	}
	if c.ParamsVoC != nil {
		if err := validateParams("params_voc", *c.ParamsVoC); err != nil {
			return invalid("%v", err)
		}
	}

	v := c.Vaccination
	if v.Prob < 0 || v.Prob > 1 {
		return invalid("vaccination prob %v outside [0, 1]", v.Prob)
	}
	if v.MinAge < 0 || v.MinAge > 255 {
		return invalid("vaccination min_age %d outside [0, 255]", v.MinAge)
	}
	if v.DailyDoses < 0 {
		return invalid("vaccination daily_doses must be non-negative")
	}

	if c.Steps < 0 {
		return invalid("steps must be non-negative")
	}
	for i, x := range c.Epicurve.Target {
		if x < 0 {
			return invalid("epicurve target %d is negative", i)
		}
	}

	cal := c.Calibration
	if cal.MinScale <= 0 || cal.MinScale > 1 || cal.MaxScale < 1 {
		return invalid("calibration scale bounds [%v, %v] must bracket 1", cal.MinScale, cal.MaxScale)
	}
	if cal.MinContacts < 0 || cal.MaxContacts < cal.MinContacts {
		return invalid("calibration contact bounds [%v, %v]", cal.MinContacts, cal.MaxContacts)
	}
	if cal.Alpha <= 0 {
		return invalid("calibration alpha must be positive")
	}
	if cal.Smoothing < 0 || cal.Smoothing >= 1 {
		return invalid("calibration smoothing %v outside [0, 1)", cal.Smoothing)
	}
	return nil
}

func (p PopulationConfig) total() (int, error) {
	switch {
	case len(p.AgeCounts) > 0:
		if len(p.AgeCounts) != params.NumAgeBuckets {
			return 0, fmt.Errorf("age_counts needs %d buckets, got %d", params.NumAgeBuckets, len(p.AgeCounts))
		}
		total := 0
		for i, n := range p.AgeCounts {
			if n < 0 {
				return 0, fmt.Errorf("age_counts[%d] is negative", i)
			}
			total += n
		}
		return total, nil
	case len(p.AgeDistribution) > 0:
		if len(p.AgeDistribution) != params.NumAgeBuckets {
			return 0, fmt.Errorf("age_distribution needs %d buckets, got %d", params.NumAgeBuckets, len(p.AgeDistribution))
		}
		sum := 0.0
		for i, w := range p.AgeDistribution {
			if w < 0 {
				return 0, fmt.Errorf("age_distribution[%d] is negative", i)
			}
			sum += w
		}
		if sum <= 0 {
			return 0, errors.New("age_distribution sums to zero")
		}
	}
	return p.Size, nil
}

func validateParams(name string, p params.Params) error {
	nonNegative := []struct {
		field string
		value params.AgeParam
	}{
		{"incubation_period", p.IncubationPeriod},
		{"infectious_period", p.InfectiousPeriod},
		{"severe_period", p.SeverePeriod},
		{"critical_period", p.CriticalPeriod},
		{"asymptomatic_infectiousness", p.AsymptomaticInfectiousness},
	}
	for _, f := range nonNegative {
		for b, x := range f.value.Values() {
			if x < 0 {
				return fmt.Errorf("%s.%s bucket %d is negative", name, f.field, b)
			}
		}
	}
	probs := []struct {
		field string
		value params.AgeParam
	}{
		{"prob_asymptomatic", p.ProbAsymptomatic},
		{"prob_severe", p.ProbSevere},
		{"prob_critical", p.ProbCritical},
		{"case_fatality_ratio", p.CaseFatalityRatio},
	}
	for _, f := range probs {
		for b, x := range f.value.Values() {
			if x < 0 || x > 1 {
				return fmt.Errorf("%s.%s bucket %d is %v, outside [0, 1]", name, f.field, b, x)
			}
		}
	}
	return nil
}
