package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/episim/internal/compartment"
	"github.com/talgya/episim/internal/params"
	"github.com/talgya/episim/internal/sampler"
)

// TestDefaultConfig_Valid verifies the defaults pass validation.
func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "seichar", cfg.Model)
	assert.Equal(t, 1000, cfg.Population.Size)
	assert.Equal(t, 10, cfg.InitialInfections)
	assert.Equal(t, 4.5, cfg.Sampler.Contacts)
	assert.Equal(t, 0.1, cfg.Sampler.ProbInfection)
	assert.Equal(t, 30, cfg.Steps)
}

// TestWriteDefault_RoundTrip verifies the written defaults load back unchanged.
func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "episim.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

// TestParse_PartialKeepsDefaults verifies unspecified fields keep defaults.
func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
model: seir
population:
  size: 200
sampler:
  contacts: 2
params:
  incubation_period: 5
`))
	require.NoError(t, err)
	assert.Equal(t, "seir", cfg.Model)
	assert.Equal(t, 200, cfg.Population.Size)
	assert.Equal(t, 2.0, cfg.Sampler.Contacts)
	assert.Equal(t, 0.1, cfg.Sampler.ProbInfection)
	assert.Equal(t, 5.0, cfg.Params.IncubationPeriod.At(40))
	assert.Equal(t, params.InfectiousPeriod, cfg.Params.InfectiousPeriod.At(40))
	assert.Nil(t, cfg.ParamsVoC)
}

// TestParse_VoCOverrides verifies params_voc overrides only the given fields.
func TestParse_VoCOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
params_voc:
  infectious_period: 5
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.ParamsVoC)
	assert.Equal(t, 5.0, cfg.ParamsVoC.InfectiousPeriod.At(0))
	assert.Equal(t, params.IncubationPeriod, cfg.ParamsVoC.IncubationPeriod.At(0))
	assert.Equal(t, params.InfectiousPeriod, cfg.Params.InfectiousPeriod.At(0))
}

// TestValidate_Rejects verifies out-of-range settings return ErrInvalidConfig.
func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown model":     "model: sirs",
		"empty population":  "population: {size: 0}",
		"too many seeds":    "population: {size: 5}\ninitial_infections: 6",
		"short age counts":  "population: {age_counts: [1, 2]}",
		"bad sampler":       "sampler: {kind: network}",
		"bad probability":   "sampler: {prob_infection: 1.5}",
		"negative period":   "params: {infectious_period: -1}",
		"bad cfr":           "params: {case_fatality_ratio: 2}",
		"bad voc":           "params_voc: {prob_severe: -0.1}",
		"negative steps":    "steps: -1",
		"negative target":   "epicurve: {target: [1, -2]}",
		"bad scale bounds":  "calibration: {min_scale: 1.2}",
		"bad smoothing":     "calibration: {smoothing: 1}",
		"bad vaccination":   "vaccination: {prob: 2}",
		"fluctuation":       "sampler: {fluctuation: {amplitude: 0.5, period: 0}}",
		"zero distribution": "population: {age_distribution: [0, 0, 0, 0, 0, 0, 0, 0, 0]}",
		"aged asym odds":    "params: {asymptomatic_infectiousness: [1, 1, 1, 1, 1, 1, 1, 1, 0.5]}",
		"voc asym odds":     "params_voc: {asymptomatic_infectiousness: 0.3}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

// TestParse_Malformed verifies YAML syntax errors are reported.
func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("model: [unterminated"))
	require.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestBuildSimulation_Defaults verifies the default build wiring.
func TestBuildSimulation_Defaults(t *testing.T) {
	sim, err := DefaultConfig().BuildSimulation(1)
	require.NoError(t, err)
	assert.Equal(t, "SEICHAR", sim.Model().Name())
	assert.Equal(t, 1000, sim.Pop.Count())
	assert.Equal(t, 4.5, sim.Sampler.Contacts())
	assert.Equal(t, []int{1000, 0, 0, 0, 0, 0, 0, 0}, sim.Initial)

	sim.ContaminateAtRandom(10)
	sim.Run(5)
	assert.Equal(t, 5, sim.Curves.Rows())
}

// TestBuildParams_SIRMergesIncubation verifies SIR folds incubation into the
// infectious period.
func TestBuildParams_SIRMergesIncubation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = "sir"
	set, err := cfg.BuildParams()
	require.NoError(t, err)
	assert.Zero(t, set.Baseline.IncubationPeriod.At(0))
	assert.InDelta(t, params.IncubationPeriod+params.InfectiousPeriod, set.Baseline.InfectiousPeriod.At(0), 1e-12)
	assert.InDelta(t, params.IncubationPeriod+params.InfectiousPeriod, set.VoC.InfectiousPeriod.At(0), 1e-12)
}

// TestBuildParams_Table verifies the per-age table overrides outcome odds.
func TestBuildParams_Table(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.csv")
	require.NoError(t, os.WriteFile(path, []byte("age,cfr,ifr,severe,critical\n0,0.004,0.002,0.1,0.05\n"), 0644))

	cfg := DefaultConfig()
	cfg.ParamsTable = path
	set, err := cfg.BuildParams()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, set.Baseline.ProbAsymptomatic.At(5), 1e-12)
	assert.InDelta(t, 0.1, set.Baseline.ProbSevere.At(5), 1e-12)
	assert.InDelta(t, 0.5, set.Baseline.ProbCritical.At(5), 1e-12)
	assert.InDelta(t, 0.004, set.VoC.CaseFatalityRatio.At(5), 1e-12)

	cfg.ParamsTable = filepath.Join(t.TempDir(), "missing.csv")
	_, err = cfg.BuildParams()
	assert.Error(t, err)
}

// TestBuildPopulation_AgeCounts verifies bucket counts place agents by age.
func TestBuildPopulation_AgeCounts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population.AgeCounts = []int{0, 0, 3, 0, 0, 0, 0, 0, 2}
	pop, err := cfg.BuildPopulation(compartment.NewSIR(), 1)
	require.NoError(t, err)
	require.Equal(t, 5, pop.Count())
	for i := 0; i < 3; i++ {
		a, _ := pop.Get(i)
		assert.Equal(t, 2, params.AgeBucket(a.Age))
	}
	a, _ := pop.Get(4)
	assert.Equal(t, 8, params.AgeBucket(a.Age))
}

// TestBuildSampler_Kinds verifies sampler selection and the noise wrapper.
func TestBuildSampler_Kinds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sampler.Kind = "age_structured"
	s, err := cfg.BuildSampler(1)
	require.NoError(t, err)
	as, ok := s.(*sampler.AgeStructured)
	require.True(t, ok)
	assert.Equal(t, 9, as.Bins())

	cfg.Sampler.ContactMatrix = [][]float64{{1, 2}}
	_, err = cfg.BuildSampler(1)
	assert.ErrorIs(t, err, sampler.ErrNotSquare)

	cfg = DefaultConfig()
	cfg.Sampler.Fluctuation.Amplitude = 0.2
	s, err = cfg.BuildSampler(1)
	require.NoError(t, err)
	_, ok = s.(*sampler.Fluctuating)
	assert.True(t, ok)
}

// TestBuildSimulation_Vaccination verifies start vaccination and the daily
// campaign hook.
func TestBuildSimulation_Vaccination(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population.Size = 100
	cfg.Vaccination = VaccinationConfig{Prob: 1, MinAge: 0, DailyDoses: 0}
	sim, err := cfg.BuildSimulation(3)
	require.NoError(t, err)
	assert.Equal(t, 100, sim.Pop.Vaccinated())

	cfg.Vaccination = VaccinationConfig{DailyDoses: 10}
	sim, err = cfg.BuildSimulation(3)
	require.NoError(t, err)
	sim.Run(2)
	assert.Equal(t, 20, sim.Pop.Vaccinated())
}

// TestValidate_FirstProblemStable verifies the reported problem does not
// depend on iteration order when several fields are bad.
func TestValidate_FirstProblemStable(t *testing.T) {
	doc := []byte("params: {incubation_period: -1, critical_period: -2, prob_severe: 3, case_fatality_ratio: 4}")
	_, first := Parse(doc)
	require.ErrorIs(t, first, ErrInvalidConfig)
	assert.Contains(t, first.Error(), "params.incubation_period")
	for i := 0; i < 20; i++ {
		_, err := Parse(doc)
		assert.Equal(t, first.Error(), err.Error())
	}
}

// TestBuildModel_AsymptomaticOdds verifies asymptomatic_infectiousness sets
// the contagion odds of asymptomatic carriers.
func TestBuildModel_AsymptomaticOdds(t *testing.T) {
	cfg, err := Parse([]byte("model: seair\nparams: {asymptomatic_infectiousness: 0.2}"))
	require.NoError(t, err)
	m, err := cfg.BuildModel()
	require.NoError(t, err)
	carrier := compartment.Infected(compartment.Asymptomatic, compartment.Baseline)
	assert.InDelta(t, 0.2, m.ContagionOdds(carrier), 1e-12)
	assert.InDelta(t, 0.2, cfg.ContagionOdds().Asymptomatic, 1e-12)

	// The odds section no longer carries an asymptomatic knob.
	cfg, err = Parse([]byte("model: seair\nodds: {asymptomatic: 0.9}"))
	require.NoError(t, err)
	m, err = cfg.BuildModel()
	require.NoError(t, err)
	assert.InDelta(t, params.AsymptomaticInfectiousness, m.ContagionOdds(carrier), 1e-12)
}
