package sampler

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/episim/internal/population"
)

// Fluctuating modulates another sampler's contacts day by day with smooth
// simplex noise, mimicking weekly and seasonal mobility swings. Contacts and
// SetContacts address the unmodulated base rate.
type Fluctuating struct {
	inner     Sampler
	noise     opensimplex.Noise
	amplitude float64 // Peak relative deviation, in [0, 1)
	period    float64 // Days per noise unit; larger is smoother
	day       int
}

// NewFluctuating wraps inner. A zero amplitude makes it transparent.
func NewFluctuating(inner Sampler, seed int64, amplitude, period float64) *Fluctuating {
	if period <= 0 {
		period = 7
	}
	if amplitude < 0 {
		amplitude = 0
	}
	if amplitude >= 1 {
		amplitude = 0.99
	}
	return &Fluctuating{
		inner:     inner,
		noise:     opensimplex.NewNormalized(seed),
		amplitude: amplitude,
		period:    period,
	}
}

// Factor returns the contact multiplier for the given day, in
// [1-amplitude, 1+amplitude].
func (f *Fluctuating) Factor(day int) float64 {
	n := f.noise.Eval2(float64(day)/f.period, 0.5)
	return 1 + f.amplitude*(2*n-1)
}

// Day returns the number of sampled days so far.
func (f *Fluctuating) Day() int { return f.day }

func (f *Fluctuating) Contacts() float64 { return f.inner.Contacts() }

func (f *Fluctuating) SetContacts(value float64) { f.inner.SetContacts(value) }

func (f *Fluctuating) ProbInfection() float64 { return f.inner.ProbInfection() }

func (f *Fluctuating) SetProbInfection(value float64) { f.inner.SetProbInfection(value) }

// Init forwards to the wrapped sampler when it precomputes structure.
func (f *Fluctuating) Init(pop *population.Population) {
	if in, ok := f.inner.(Initializer); ok {
		in.Init(pop)
	}
}

func (f *Fluctuating) ensure(pop *population.Population) { prepare(f.inner, pop) }

// SampleInfectionPairs samples with today's modulated contact rate and
// advances the day.
func (f *Fluctuating) SampleInfectionPairs(pop *population.Population, rng *rand.Rand) []Pair {
	prepare(f.inner, pop)
	base := f.inner.Contacts()
	f.inner.SetContacts(base * f.Factor(f.day))
	pairs := f.inner.SampleInfectionPairs(pop, rng)
	f.inner.SetContacts(base)
	f.day++
	return pairs
}

// ExpectedInfectionPairs uses the modulation of the next sampled day.
func (f *Fluctuating) ExpectedInfectionPairs(pop *population.Population) float64 {
	return f.inner.ExpectedInfectionPairs(pop) * f.Factor(f.day)
}
