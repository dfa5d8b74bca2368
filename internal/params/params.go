// Package params provides epidemiological parameters: mean sojourn periods
// and branching probabilities, optionally age- and variant-dependent, plus
// the bound and cached views used on the per-agent hot path.
package params

import (
	"math"

	"github.com/talgya/episim/internal/compartment"
)

// Vaccine is an agent's vaccination status.
type Vaccine uint8

const (
	Unvaccinated Vaccine = iota
	Vaccinated
)

func (v Vaccine) String() string {
	if v == Vaccinated {
		return "vaccinated"
	}
	return "unvaccinated"
}

// Context fixes everything a parameter lookup may depend on.
type Context struct {
	Age     uint8
	Variant compartment.Variant
	Vaccine Vaccine
}

// Params holds one variant's parameters.
type Params struct {
	IncubationPeriod           AgeParam `yaml:"incubation_period"`
	InfectiousPeriod           AgeParam `yaml:"infectious_period"`
	SeverePeriod               AgeParam `yaml:"severe_period"`
	CriticalPeriod             AgeParam `yaml:"critical_period"`
	AsymptomaticInfectiousness AgeParam `yaml:"asymptomatic_infectiousness"`
	ProbAsymptomatic           AgeParam `yaml:"prob_asymptomatic"`
	ProbSevere                 AgeParam `yaml:"prob_severe"`
	ProbCritical               AgeParam `yaml:"prob_critical"`
	CaseFatalityRatio          AgeParam `yaml:"case_fatality_ratio"`
}

// Default returns age-structured COVID-19 parameters.
func Default() Params {
	p := DefaultScalar()
	p.ProbAsymptomatic = Distribution(ProbAsymptomaticByAge)
	p.ProbSevere = Distribution(ProbSevereByAge)
	p.ProbCritical = Distribution(ProbCriticalByAge)
	p.CaseFatalityRatio = Distribution(CaseFatalityRatioByAge)
	return p
}

// DefaultScalar returns the same parameters without age structure.
func DefaultScalar() Params {
	return Params{
		IncubationPeriod:           Scalar(IncubationPeriod),
		InfectiousPeriod:           Scalar(InfectiousPeriod),
		SeverePeriod:               Scalar(SeverePeriod),
		CriticalPeriod:             Scalar(CriticalPeriod),
		AsymptomaticInfectiousness: Scalar(AsymptomaticInfectiousness),
		ProbAsymptomatic:           Scalar(ProbAsymptomatic),
		ProbSevere:                 Scalar(ProbSevere),
		ProbCritical:               Scalar(ProbCritical),
		CaseFatalityRatio:          Scalar(CaseFatalityRatio),
	}
}

// MergeIncubationPeriod folds incubation into the infectious period so SIR
// models keep the same mean generation time.
func (p *Params) MergeIncubationPeriod() {
	p.InfectiousPeriod = p.InfectiousPeriod.Add(p.IncubationPeriod)
	p.IncubationPeriod = Scalar(0)
}

// ProbDeath is the probability that a critical case dies. Not clamped.
func (p *Params) ProbDeath(age uint8) float64 {
	return p.CaseFatalityRatio.At(age) / (p.ProbCritical.At(age) * p.ProbSevere.At(age))
}

// InfectionFatalityRatio counts deaths over all infections, asymptomatic
// included.
func (p *Params) InfectionFatalityRatio(age uint8) float64 {
	return p.CaseFatalityRatio.At(age) * (1 - p.ProbAsymptomatic.At(age))
}

// DailyProbability converts a mean sojourn period in days into the daily
// transition probability of an exponential sojourn. A period of 0 yields 1.
func DailyProbability(period float64) float64 {
	return 1 - math.Exp(-1/period)
}

// Binder produces bound views. Set and Cached both implement it.
type Binder interface {
	Bind(ctx Context) Local
}

// Set pairs baseline parameters with the variant-of-concern copy.
type Set struct {
	Baseline Params `yaml:"baseline"`
	VoC      Params `yaml:"voc"`
}

// NewSet uses p for both variants.
func NewSet(p Params) *Set {
	return &Set{Baseline: p, VoC: p}
}

// For returns the parameters of variant v.
func (s *Set) For(v compartment.Variant) *Params {
	if v == compartment.VoC {
		return &s.VoC
	}
	return &s.Baseline
}

// The raw accessors below take the full lookup context.

func (s *Set) IncubationPeriod(ctx Context) float64 {
	return s.For(ctx.Variant).IncubationPeriod.At(ctx.Age)
}

func (s *Set) InfectiousPeriod(ctx Context) float64 {
	return s.For(ctx.Variant).InfectiousPeriod.At(ctx.Age)
}

func (s *Set) SeverePeriod(ctx Context) float64 {
	return s.For(ctx.Variant).SeverePeriod.At(ctx.Age)
}

func (s *Set) CriticalPeriod(ctx Context) float64 {
	return s.For(ctx.Variant).CriticalPeriod.At(ctx.Age)
}

func (s *Set) AsymptomaticInfectiousness(ctx Context) float64 {
	return s.For(ctx.Variant).AsymptomaticInfectiousness.At(ctx.Age)
}

func (s *Set) ProbAsymptomatic(ctx Context) float64 {
	return s.For(ctx.Variant).ProbAsymptomatic.At(ctx.Age)
}

// ProbSevere is zero for vaccinated agents.
func (s *Set) ProbSevere(ctx Context) float64 {
	if ctx.Vaccine == Vaccinated {
		return 0
	}
	return s.For(ctx.Variant).ProbSevere.At(ctx.Age)
}

// ProbCritical is zero for vaccinated agents.
func (s *Set) ProbCritical(ctx Context) float64 {
	if ctx.Vaccine == Vaccinated {
		return 0
	}
	return s.For(ctx.Variant).ProbCritical.At(ctx.Age)
}

// CaseFatalityRatio is zero for vaccinated agents.
func (s *Set) CaseFatalityRatio(ctx Context) float64 {
	if ctx.Vaccine == Vaccinated {
		return 0
	}
	return s.For(ctx.Variant).CaseFatalityRatio.At(ctx.Age)
}

func (s *Set) ProbDeath(ctx Context) float64 {
	return s.CaseFatalityRatio(ctx) / (s.ProbCritical(ctx) * s.ProbSevere(ctx))
}

func (s *Set) InfectionFatalityRatio(ctx Context) float64 {
	return s.CaseFatalityRatio(ctx) * (1 - s.ProbAsymptomatic(ctx))
}

func (s *Set) IncubationTransitionProb(ctx Context) float64 {
	return DailyProbability(s.IncubationPeriod(ctx))
}

func (s *Set) InfectiousTransitionProb(ctx Context) float64 {
	return DailyProbability(s.InfectiousPeriod(ctx))
}

func (s *Set) SevereTransitionProb(ctx Context) float64 {
	return DailyProbability(s.SeverePeriod(ctx))
}

func (s *Set) CriticalTransitionProb(ctx Context) float64 {
	return DailyProbability(s.CriticalPeriod(ctx))
}

// Bind fixes ctx, computing transition probabilities directly.
func (s *Set) Bind(ctx Context) Local {
	l := s.bindOutcomes(ctx)
	l.transition = [numPeriods]float64{
		s.IncubationTransitionProb(ctx),
		s.InfectiousTransitionProb(ctx),
		s.SevereTransitionProb(ctx),
		s.CriticalTransitionProb(ctx),
	}
	return l
}

func (s *Set) bindOutcomes(ctx Context) Local {
	return Local{
		ctx:          ctx,
		asymOdds:     s.AsymptomaticInfectiousness(ctx),
		asymptomatic: s.ProbAsymptomatic(ctx),
		severe:       s.ProbSevere(ctx),
		critical:     s.ProbCritical(ctx),
		cfr:          s.CaseFatalityRatio(ctx),
	}
}

const (
	periodIncubation = iota
	periodInfectious
	periodSevere
	periodCritical
	numPeriods
)

// Local is a parameter view bound to one agent. Accessors take no
// arguments; it satisfies compartment.Rates.
type Local struct {
	ctx          Context
	transition   [numPeriods]float64
	asymOdds     float64
	asymptomatic float64
	severe       float64
	critical     float64
	cfr          float64
}

func (l Local) Context() Context { return l.ctx }
func (l Local) IncubationTransitionProb() float64 { return l.transition[periodIncubation] }
func (l Local) InfectiousTransitionProb() float64 { return l.transition[periodInfectious] }
func (l Local) SevereTransitionProb() float64 { return l.transition[periodSevere] }
func (l Local) CriticalTransitionProb() float64 { return l.transition[periodCritical] }
func (l Local) AsymptomaticInfectiousness() float64 { return l.asymOdds }
func (l Local) ProbAsymptomatic() float64 { return l.asymptomatic }
func (l Local) ProbSevere() float64 { return l.severe }
func (l Local) ProbCritical() float64 { return l.critical }
func (l Local) CaseFatalityRatio() float64 { return l.cfr }

// ProbDeath is cfr / (prob_critical * prob_severe). May fall outside [0,1]
// or be NaN; draws clamp it.
func (l Local) ProbDeath() float64 {
	return l.cfr / (l.critical * l.severe)
}

func (l Local) InfectionFatalityRatio() float64 {
	return l.cfr * (1 - l.asymptomatic)
}

var _ compartment.Rates = Local{}

// Cached precomputes daily transition probabilities for every variant and
// age bucket so binding performs table lookups instead of exponentials.
type Cached struct {
	set   *Set
	table [2][NumAgeBuckets][numPeriods]float64
}

// NewCached wraps s and fills the probability table.
func NewCached(s *Set) *Cached {
	c := &Cached{set: s}
	c.Refresh()
	return c
}

// Refresh recomputes the table. Call it after changing any period.
func (c *Cached) Refresh() {
	for v := range c.table {
		p := c.set.For(compartment.Variant(v))
		for b := 0; b < NumAgeBuckets; b++ {
			c.table[v][b] = [numPeriods]float64{
				DailyProbability(p.IncubationPeriod.Bucket(b)),
				DailyProbability(p.InfectiousPeriod.Bucket(b)),
				DailyProbability(p.SeverePeriod.Bucket(b)),
				DailyProbability(p.CriticalPeriod.Bucket(b)),
			}
		}
	}
}

// Set returns the wrapped parameters.
func (c *Cached) Set() *Set {
	return c.set
}

// Bind fixes ctx using the precomputed transition probabilities.
func (c *Cached) Bind(ctx Context) Local {
	l := c.set.bindOutcomes(ctx)
	l.transition = c.table[ctx.Variant&1][AgeBucket(ctx.Age)]
	return l
}

func (c *Cached) IncubationTransitionProb(ctx Context) float64 {
	return c.table[ctx.Variant&1][AgeBucket(ctx.Age)][periodIncubation]
}

func (c *Cached) InfectiousTransitionProb(ctx Context) float64 {
	return c.table[ctx.Variant&1][AgeBucket(ctx.Age)][periodInfectious]
}

func (c *Cached) SevereTransitionProb(ctx Context) float64 {
	return c.table[ctx.Variant&1][AgeBucket(ctx.Age)][periodSevere]
}

func (c *Cached) CriticalTransitionProb(ctx Context) float64 {
	return c.table[ctx.Variant&1][AgeBucket(ctx.Age)][periodCritical]
}

var (
	_ Binder = (*Set)(nil)
	_ Binder = (*Cached)(nil)
)
