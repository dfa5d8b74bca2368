package config

import (
	"fmt"
	"log/slog"

	"github.com/talgya/episim/internal/agents"
	"github.com/talgya/episim/internal/compartment"
	"github.com/talgya/episim/internal/engine"
	"github.com/talgya/episim/internal/params"
	"github.com/talgya/episim/internal/population"
	"github.com/talgya/episim/internal/sampler"
)

// ContagionOdds returns the configured odds with the asymptomatic odds taken
// from params.asymptomatic_infectiousness.
func (c Config) ContagionOdds() compartment.Odds {
	odds := c.Odds
	odds.Asymptomatic = c.Params.AsymptomaticInfectiousness.Bucket(0)
	return odds
}

// BuildModel returns the configured compartment model.
func (c Config) BuildModel() (*compartment.Table, error) {
	m, ok := compartment.ByName(c.Model, c.ContagionOdds())
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidConfig, c.Model)
	}
	return m, nil
}

// BuildParams returns the baseline and variant parameter sets. The per-age
// table, when configured, overrides the outcome probabilities of both. SIR
// has no incubation compartment, so its incubation is folded into the
// infectious period.
func (c Config) BuildParams() (*params.Set, error) {
	set := params.NewSet(c.Params)
	if c.ParamsVoC != nil {
		set.VoC = *c.ParamsVoC
	}

	if c.ParamsTable != "" {
		table, err := params.LoadAgeTableFile(c.ParamsTable)
		if err != nil {
			return nil, fmt.Errorf("params table: %w", err)
		}
		table.Apply(&set.Baseline)
		table.Apply(&set.VoC)
		slog.Info("applied age table", "path", c.ParamsTable, "rows", len(table))
	}

	if m, _ := c.BuildModel(); m != nil && m.Level() == compartment.LevelSIR {
		set.Baseline.MergeIncubationPeriod()
		set.VoC.MergeIncubationPeriod()
	}
	return set, nil
}

// BuildPopulation spawns the configured agents, all susceptible.
func (c Config) BuildPopulation(model compartment.Model, seed int64) (*population.Population, error) {
	spawner := agents.NewSpawner(seed)
	p := c.Population
	switch {
	case len(p.AgeCounts) > 0:
		var counts [params.NumAgeBuckets]int
		copy(counts[:], p.AgeCounts)
		spawner.SpawnAgeCounts(counts)
	case len(p.AgeDistribution) > 0:
		var weights [params.NumAgeBuckets]float64
		copy(weights[:], p.AgeDistribution)
		if _, err := spawner.SpawnDistribution(p.Size, weights); err != nil {
			return nil, fmt.Errorf("spawn population: %w", err)
		}
	default:
		spawner.SpawnCount(p.Size)
	}
	return population.New(model, spawner.Agents()), nil
}

// BuildSampler returns the configured contact sampler.
func (c Config) BuildSampler(seed int64) (sampler.Sampler, error) {
	s := c.Sampler
	var out sampler.Sampler
	switch s.Kind {
	case "uniform":
		out = sampler.NewUniform(s.Contacts, s.ProbInfection)
	case "age_structured":
		rows := s.ContactMatrix
		if len(rows) == 0 {
			// Homogeneous mixing across the nine age buckets.
			rows = uniformMatrix(params.NumAgeBuckets, s.Contacts)
		}
		m, err := sampler.MatrixFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("contact matrix: %w", err)
		}
		as, err := sampler.NewAgeStructured(m, s.BinSize, s.ProbInfection)
		if err != nil {
			return nil, fmt.Errorf("age-structured sampler: %w", err)
		}
		out = as
	default:
		return nil, fmt.Errorf("%w: unknown sampler kind %q", ErrInvalidConfig, s.Kind)
	}

	if s.Fluctuation.Amplitude > 0 {
		out = sampler.NewFluctuating(out, seed, s.Fluctuation.Amplitude, s.Fluctuation.Period)
	}
	return out, nil
}

// BuildSimulation wires a simulation from the config without seeding any
// infections. Vaccination at start and the daily campaign are applied here.
func (c Config) BuildSimulation(seed int64) (*engine.Simulation, error) {
	model, err := c.BuildModel()
	if err != nil {
		return nil, err
	}
	set, err := c.BuildParams()
	if err != nil {
		return nil, err
	}
	pop, err := c.BuildPopulation(model, seed)
	if err != nil {
		return nil, err
	}
	smp, err := c.BuildSampler(seed)
	if err != nil {
		return nil, err
	}

	sim := engine.New(params.NewCached(set), pop, smp)
	sim.Seed(seed)
	sim.Parallel = c.Parallel
	sim.ProbVoC = c.ProbVoC

	if v := c.Vaccination; v.Prob > 0 {
		sim.VaccinateAbove(uint8(v.MinAge), v.Prob)
	}
	if d := c.Vaccination.DailyDoses; d > 0 {
		sim.AddHook(engine.NewVaccinationCampaign(engine.ConstantSupply(d)))
	}

	slog.Info("simulation built",
		"model", model.Name(),
		"agents", pop.Count(),
		"sampler", c.Sampler.Kind,
		"contacts", smp.Contacts(),
		"seed", seed,
	)
	return sim, nil
}

func uniformMatrix(n int, contacts float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = contacts / float64(n)
		}
	}
	return rows
}
