package compartment

import (
	"math"
	"math/rand"
	"strings"
)

// Rates is a parameter view already bound to one agent. Transition
// probabilities are daily probabilities derived from mean sojourn times.
type Rates interface {
	IncubationTransitionProb() float64
	InfectiousTransitionProb() float64
	SevereTransitionProb() float64
	CriticalTransitionProb() float64
	ProbAsymptomatic() float64
	ProbSevere() float64
	ProbCritical() float64
	ProbDeath() float64
	CaseFatalityRatio() float64
	InfectionFatalityRatio() float64
}

// Model is the contract shared by every compartment model. The population,
// samplers and driver are written against it once.
type Model interface {
	Name() string
	Cardinality() int
	Index(s State) int
	Kinds() []Kind
	ShortNames() []string
	Has(k Kind) bool
	IsSusceptible(s State) bool
	IsContagious(s State) bool
	IsRecovered(s State) bool
	IsDead(s State) bool
	ContagionOdds(s State) float64
	NewInfectiousWith(v Variant) State
	NewExposedWith(v Variant) State
	TransferContaminationFrom(target *State, source State) bool
	ForceInfectious(s *State, forceDead bool) bool
	Successors(k Kind) []Kind
	Next(s State, r Rates, rng *rand.Rand) State
}

// Level selects which compartments a Table carries.
type Level uint8

const (
	LevelSIR Level = iota
	LevelSEIR
	LevelSEAIR
	LevelSEICHAR
)

// Odds holds the relative infectiousness of each contagious compartment.
// Infectious is always 1.0. Asymptomatic is not read from YAML; config
// derives it from the asymptomatic_infectiousness parameter.
type Odds struct {
	Asymptomatic float64 `yaml:"-"`
	Severe       float64 `yaml:"severe"`
	Critical     float64 `yaml:"critical"`
}

// DefaultOdds matches the default asymptomatic infectiousness. Hospitalized
// agents do not transmit.
func DefaultOdds() Odds {
	return Odds{Asymptomatic: 0.5}
}

// Table is a Model defined by a compartment index table.
type Table struct {
	level Level
	name  string
	kinds []Kind
	index [NumKinds]int
	odds  Odds
}

var levelKinds = map[Level][]Kind{
	LevelSIR:     {Susceptible, Infectious, Recovered, Dead},
	LevelSEIR:    {Susceptible, Exposed, Infectious, Recovered, Dead},
	LevelSEAIR:   {Susceptible, Exposed, Asymptomatic, Infectious, Recovered, Dead},
	LevelSEICHAR: {Susceptible, Exposed, Infectious, Critical, Severe, Asymptomatic, Recovered, Dead},
}

var levelNames = map[Level]string{
	LevelSIR:     "sir",
	LevelSEIR:    "seir",
	LevelSEAIR:   "seair",
	LevelSEICHAR: "seichar",
}

// NewTable builds the model for the given level.
func NewTable(level Level, odds Odds) *Table {
	t := &Table{
		level: level,
		name:  levelNames[level],
		kinds: levelKinds[level],
		odds:  odds,
	}
	for i := range t.index {
		t.index[i] = -1
	}
	for i, k := range t.kinds {
		t.index[k] = i
	}
	return t
}

// NewSIR returns the Susceptible-Infectious-Recovered(-Dead) model.
func NewSIR() *Table { return NewTable(LevelSIR, Odds{}) }

// NewSEIR returns the model with an Exposed incubation compartment.
func NewSEIR() *Table { return NewTable(LevelSEIR, Odds{}) }

// NewSEAIR adds an Asymptomatic branch after incubation.
func NewSEAIR(odds Odds) *Table { return NewTable(LevelSEAIR, odds) }

// NewSEICHAR returns the full clinical model with severe and critical care.
func NewSEICHAR(odds Odds) *Table { return NewTable(LevelSEICHAR, odds) }

// ByName resolves a model name (sir, seir, seair, seichar).
func ByName(name string, odds Odds) (*Table, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for lvl, n := range levelNames {
		if n == name {
			return NewTable(lvl, odds), true
		}
	}
	return nil, false
}

func (t *Table) Name() string { return t.name }
func (t *Table) Level() Level { return t.level }
func (t *Table) Cardinality() int { return len(t.kinds) }
func (t *Table) Kinds() []Kind { return append([]Kind(nil), t.kinds...) }
func (t *Table) Has(k Kind) bool { return int(k) < NumKinds && t.index[k] >= 0 }
func (t *Table) Odds() Odds { return t.odds }

// Index returns the model-local ordinal of s, or -1 if the model has no
// such compartment.
func (t *Table) Index(s State) int {
	if int(s.Kind) >= NumKinds {
		return -1
	}
	return t.index[s.Kind]
}

// ShortNames returns the CSV column names in ordinal order.
func (t *Table) ShortNames() []string {
	names := make([]string, len(t.kinds))
	for i, k := range t.kinds {
		names[i] = k.Short()
	}
	return names
}

func (t *Table) IsSusceptible(s State) bool { return s.Kind == Susceptible }
func (t *Table) IsRecovered(s State) bool { return s.Kind == Recovered }
func (t *Table) IsDead(s State) bool { return s.Kind == Dead }

// IsContagious reports whether the state can transmit the disease.
func (t *Table) IsContagious(s State) bool {
	return t.ContagionOdds(s) > 0
}

// ContagionOdds returns the relative infectiousness of s.
func (t *Table) ContagionOdds(s State) float64 {
	if !t.Has(s.Kind) {
		return 0
	}
	switch s.Kind {
	case Infectious:
		return 1.0
	case Asymptomatic:
		return math.Max(0, t.odds.Asymptomatic)
	case Severe:
		return math.Max(0, t.odds.Severe)
	case Critical:
		return math.Max(0, t.odds.Critical)
	}
	return 0
}

// NewInfectiousWith returns the infectious state carrying v.
func (t *Table) NewInfectiousWith(v Variant) State {
	return Infected(Infectious, v)
}

// NewExposedWith returns the entry state of a fresh infection: Exposed when
// the model has an incubation stage, Infectious otherwise.
func (t *Table) NewExposedWith(v Variant) State {
	if t.Has(Exposed) {
		return Infected(Exposed, v)
	}
	return Infected(Infectious, v)
}

// TransferContaminationFrom infects target with source's variant when source
// is contagious and target is susceptible. target is untouched otherwise.
func (t *Table) TransferContaminationFrom(target *State, source State) bool {
	if t.ContagionOdds(source) <= 0 || !target.IsSusceptible() {
		return false
	}
	*target = t.NewExposedWith(source.Variant)
	return true
}

// ForceInfectious moves an already infected state back to Infectious.
// Dead agents are revived only when forceDead is set.
func (t *Table) ForceInfectious(s *State, forceDead bool) bool {
	switch {
	case s.Kind == Susceptible:
		return false
	case s.Kind == Dead && !forceDead:
		return false
	}
	*s = s.With(Infectious)
	return true
}

// Successors lists the compartments reachable from k in one transition.
func (t *Table) Successors(k Kind) []Kind {
	var out []Kind
	add := func(ks ...Kind) {
		for _, c := range ks {
			if t.Has(c) {
				out = append(out, c)
			}
		}
	}
	switch k {
	case Susceptible:
		add(Exposed)
		if !t.Has(Exposed) {
			add(Infectious)
		}
	case Exposed:
		add(Asymptomatic, Infectious)
	case Asymptomatic:
		add(Recovered)
	case Infectious:
		if t.level == LevelSEICHAR {
			add(Severe, Recovered)
		} else {
			add(Recovered, Dead)
		}
	case Severe:
		add(Critical, Recovered)
	case Critical:
		add(Dead, Recovered)
	}
	return out
}

// Next applies one stochastic self-transition. Each branch point takes one
// Bernoulli draw on the daily transition probability and a second on the
// branching probability. Susceptible and terminal states never change here.
func (t *Table) Next(s State, r Rates, rng *rand.Rand) State {
	switch s.Kind {
	case Exposed:
		if bernoulli(rng, r.IncubationTransitionProb()) {
			if t.Has(Asymptomatic) && bernoulli(rng, r.ProbAsymptomatic()) {
				return s.With(Asymptomatic)
			}
			return s.With(Infectious)
		}
	case Asymptomatic:
		if bernoulli(rng, r.InfectiousTransitionProb()) {
			return s.With(Recovered)
		}
	case Infectious:
		if !bernoulli(rng, r.InfectiousTransitionProb()) {
			break
		}
		switch t.level {
		case LevelSEICHAR:
			if bernoulli(rng, r.ProbSevere()) {
				return s.With(Severe)
			}
			return s.With(Recovered)
		case LevelSEAIR:
			if bernoulli(rng, r.CaseFatalityRatio()) {
				return s.With(Dead)
			}
			return s.With(Recovered)
		default:
			if bernoulli(rng, r.InfectionFatalityRatio()) {
				return s.With(Dead)
			}
			return s.With(Recovered)
		}
	case Severe:
		if bernoulli(rng, r.SevereTransitionProb()) {
			if bernoulli(rng, r.ProbCritical()) {
				return s.With(Critical)
			}
			return s.With(Recovered)
		}
	case Critical:
		if bernoulli(rng, r.CriticalTransitionProb()) {
			if bernoulli(rng, r.ProbDeath()) {
				return s.With(Dead)
			}
			return s.With(Recovered)
		}
	}
	return s
}

// Clamp01 bounds p to [0,1]; NaN becomes 0.
func Clamp01(p float64) float64 {
	switch {
	case math.IsNaN(p) || p <= 0:
		return 0
	case p >= 1:
		return 1
	}
	return p
}

func bernoulli(rng *rand.Rand, p float64) bool {
	p = Clamp01(p)
	if p == 0 {
		return false
	}
	if p == 1 {
		return true
	}
	return rng.Float64() < p
}

// Bernoulli draws true with probability p clamped to [0,1].
func Bernoulli(rng *rand.Rand, p float64) bool {
	return bernoulli(rng, p)
}

var _ Model = (*Table)(nil)
