// Package engine provides the step-based epidemic driver: self-update,
// contagion and tracking phases, observer hooks, closed-loop calibration of
// the contact rate, and run reports.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/talgya/episim/internal/agents"
	"github.com/talgya/episim/internal/compartment"
	"github.com/talgya/episim/internal/params"
	"github.com/talgya/episim/internal/population"
	"github.com/talgya/episim/internal/sampler"
	"github.com/talgya/episim/internal/tracker"
)

// DefaultChunkSize is the number of agents per self-update batch. Each batch
// draws from its own random stream.
const DefaultChunkSize = 4096

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Simulation holds the population and the strategies that advance it.
type Simulation struct {
	Params  params.Binder
	Pop     *population.Population
	Sampler sampler.Sampler
	Curves  *tracker.Tracker // One row per executed step
	Initial []int            // Compartment counts before the first step
	Cases   []int            // New cases per step, forced seeding included
	Events  []Event          // Recent events, bounded
	Step    int              // Steps executed so far

	// Parallel fans the self-update phase out over Workers goroutines.
	Parallel  bool
	Workers   int
	ChunkSize int

	// ProbVoC is the chance that a seeded infection carries the variant of
	// concern.
	ProbVoC float64

	rng   *rand.Rand
	hooks []Hook
}

// Event is a notable occurrence during a run.
type Event struct {
	Step        int            `json:"step" db:"step"`
	Description string         `json:"description" db:"description"`
	Category    string         `json:"category" db:"category"` // "seed", "calibration", "vaccine", ...
	Meta        map[string]any `json:"meta,omitempty" db:"-"`
}

// New creates a simulation and snapshots the initial compartment counts.
// Samplers that precompute population structure are initialized here.
func New(binder params.Binder, pop *population.Population, s sampler.Sampler) *Simulation {
	if in, ok := s.(sampler.Initializer); ok {
		in.Init(pop)
	}
	return &Simulation{
		Params:    binder,
		Pop:       pop,
		Sampler:   s,
		Curves:    tracker.New(pop.Model().ShortNames()),
		Initial:   pop.Counts(),
		ChunkSize: DefaultChunkSize,
		rng:       rand.New(rand.NewSource(0)),
	}
}

// Model returns the population's compartment model.
func (s *Simulation) Model() compartment.Model {
	return s.Pop.Model()
}

// Seed reseeds the simulation's random stream deterministically.
func (s *Simulation) Seed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

// Rand exposes the simulation's random stream to collaborators that must
// share it, such as calibration.
func (s *Simulation) Rand() *rand.Rand {
	return s.rng
}

// EmitEvent appends an event, keeping the last maxEvents.
func (s *Simulation) EmitEvent(e Event) {
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// Sample returns copies of up to n random agents, for diagnostics.
func (s *Simulation) Sample(n int) []agents.Agent {
	return s.Pop.Sample(s.rng, n)
}

// RenderEpicurveCSV renders the epicurve with the given header line. An
// empty header uses the model's short names.
func (s *Simulation) RenderEpicurveCSV(header string) string {
	return s.Curves.RenderCSV(header, ',')
}

// ContaminateAtRandom makes up to n random susceptible agents infectious and
// returns how many were infected. The count joins the current step's cases.
func (s *Simulation) ContaminateAtRandom(n int) int {
	model := s.Model()
	done := s.Pop.ContaminateAtRandom(n, s.rng, func(a *agents.Agent) bool {
		if !a.State.IsSusceptible() {
			return false
		}
		v := compartment.RandomVariant(s.rng, s.ProbVoC)
		return a.Infect(model, v, agents.InfectForceInfectious)
	})
	if done > 0 {
		s.addForced(done)
		s.EmitEvent(Event{
			Step:        s.Step,
			Description: fmt.Sprintf("seeded %d infections (%d requested)", done, n),
			Category:    "seed",
		})
		slog.Debug("seeded infections", "step", s.Step, "requested", n, "infected", done)
	}
	return done
}

// addForced folds forced infections into the latest tracked row and the
// case log of the current step. Before the first step it refreshes the
// initial snapshot instead.
func (s *Simulation) addForced(n int) {
	newCasesTotal.WithLabelValues("forced").Add(float64(n))
	if s.Step == 0 || s.Curves.Rows() == 0 {
		s.Initial = s.Pop.Counts()
		return
	}
	if len(s.Cases) == s.Step {
		s.Cases[s.Step-1] += n
	}
	s.Curves.Update(s.Pop, false)
}

// Epistate returns the current compartment counts, optionally as population
// fractions.
func (s *Simulation) Epistate(normalize bool) []float64 {
	if s.Curves.Rows() == 0 {
		return scale(s.Initial, normalize, s.Pop.Count())
	}
	return s.EpistateAt(s.Curves.Rows()-1, normalize)
}

// EpistateAt returns epicurve row i.
func (s *Simulation) EpistateAt(i int, normalize bool) []float64 {
	return scale(s.Curves.Row(i), normalize, s.Pop.Count())
}

// Epicurve returns the time series of compartment column col.
func (s *Simulation) Epicurve(col int, normalize bool) []float64 {
	return scale(s.Curves.Col(col), normalize, s.Pop.Count())
}

// CasesPerStep returns a copy of the per-step case log.
func (s *Simulation) CasesPerStep() []int {
	return append([]int(nil), s.Cases...)
}

// InfectionsPerAgent returns every agent's secondary infection count.
func (s *Simulation) InfectionsPerAgent() []uint32 {
	out := make([]uint32, s.Pop.Count())
	s.Pop.EachAgent(func(id int, a agents.Agent) {
		out[id] = a.SecondaryInfections
	})
	return out
}

// ReproductionNumber estimates R as secondary infections per agent that has
// either infected someone or recovered.
func (s *Simulation) ReproductionNumber() float64 {
	total, n := 0.0, 0
	s.Pop.EachAgent(func(_ int, a agents.Agent) {
		if a.SecondaryInfections > 0 || a.State.IsRecovered() {
			total += float64(a.SecondaryInfections)
			n++
		}
	})
	if n == 0 {
		return math.NaN()
	}
	return total / float64(n)
}

func scale(row []int, normalize bool, total int) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v)
		if normalize && total > 0 {
			out[i] /= float64(total)
		}
	}
	return out
}
