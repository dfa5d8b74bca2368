// Package sampler provides contact-sampling strategies. A sampler proposes
// ordered (source, target) pairs that may transmit the disease during one
// step and exposes the contact intensity knob used by calibration.
package sampler

import (
	"math"
	"math/rand"

	"github.com/talgya/episim/internal/agents"
	"github.com/talgya/episim/internal/compartment"
	"github.com/talgya/episim/internal/population"
)

// Pair is a proposed transmission from Source to Target.
type Pair struct {
	Source int
	Target int
}

// Sampler proposes infection pairs for one step.
type Sampler interface {
	// SampleInfectionPairs never proposes a pair with Source == Target.
	SampleInfectionPairs(pop *population.Population, rng *rand.Rand) []Pair
	Contacts() float64
	SetContacts(value float64)
	ProbInfection() float64
	SetProbInfection(value float64)
	// ExpectedInfectionPairs estimates len(SampleInfectionPairs) without
	// drawing any pairs.
	ExpectedInfectionPairs(pop *population.Population) float64
}

// Initializer is implemented by samplers that precompute structure from the
// population. Init runs before the contact knob is first read so the knob
// keeps one meaning for the whole run.
type Initializer interface {
	Init(pop *population.Population)
}

// prepare builds s's population structure if it has not been built yet.
func prepare(s Sampler, pop *population.Population) {
	if e, ok := s.(interface{ ensure(*population.Population) }); ok {
		e.ensure(pop)
	}
}

// RoundProbabilistically returns floor(x) plus one with probability equal
// to the fractional part, so the expectation equals x.
func RoundProbabilistically(rng *rand.Rand, x float64) int {
	if x <= 0 || math.IsNaN(x) {
		return 0
	}
	whole, frac := math.Modf(x)
	n := int(whole)
	if frac > 0 && rng.Float64() < frac {
		n++
	}
	return n
}

// infectionProb is the per-contact transmission probability from a source
// with the given contagion odds, capped at 1.
func infectionProb(prob, odds float64) float64 {
	return compartment.Clamp01(prob * odds)
}

// Uniform draws targets uniformly from the whole population.
type Uniform struct {
	contacts      float64
	probInfection float64
}

// NewUniform returns a sampler with the given mean daily contacts per
// contagious agent and per-contact infection probability.
func NewUniform(contacts, probInfection float64) *Uniform {
	return &Uniform{contacts: contacts, probInfection: probInfection}
}

func (u *Uniform) Contacts() float64 { return u.contacts }
func (u *Uniform) SetContacts(value float64) { u.contacts = math.Max(0, value) }
func (u *Uniform) ProbInfection() float64 { return u.probInfection }
func (u *Uniform) SetProbInfection(value float64) { u.probInfection = compartment.Clamp01(value) }

// SampleInfectionPairs draws a probabilistically rounded number of contacts
// for each contagious agent. Each contact transmits with probability
// prob_infection * contagion_odds and lands on a uniform random agent;
// pairs whose target is not susceptible are dropped.
func (u *Uniform) SampleInfectionPairs(pop *population.Population, rng *rand.Rand) []Pair {
	n := pop.Count()
	if n < 2 {
		return nil
	}
	model := pop.Model()
	var pairs []Pair
	for _, i := range pop.Contagious() {
		src, _ := pop.Get(i)
		p := infectionProb(u.probInfection, model.ContagionOdds(src.State))
		m := RoundProbabilistically(rng, u.contacts)
		for k := 0; k < m; k++ {
			if !compartment.Bernoulli(rng, p) {
				continue
			}
			j := rng.Intn(n)
			if j == i {
				continue
			}
			if dst, _ := pop.Get(j); dst.State.IsSusceptible() {
				pairs = append(pairs, Pair{Source: i, Target: j})
			}
		}
	}
	return pairs
}

// ExpectedInfectionPairs is sum(contacts * p_i) * S / N over contagious i.
func (u *Uniform) ExpectedInfectionPairs(pop *population.Population) float64 {
	n := pop.Count()
	if n < 2 {
		return 0
	}
	model := pop.Model()
	susceptible, weight := 0, 0.0
	pop.EachAgent(func(_ int, a agents.Agent) {
		if a.State.IsSusceptible() {
			susceptible++
			return
		}
		weight += infectionProb(u.probInfection, model.ContagionOdds(a.State))
	})
	return u.contacts * weight * float64(susceptible) / float64(n)
}
