package compartment

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRates struct {
	incubation, infectious, severe, critical float64
	asym, sev, crit, death, cfr, ifr         float64
}

func (r fixedRates) IncubationTransitionProb() float64 { return r.incubation }
func (r fixedRates) InfectiousTransitionProb() float64 { return r.infectious }
func (r fixedRates) SevereTransitionProb() float64 { return r.severe }
func (r fixedRates) CriticalTransitionProb() float64 { return r.critical }
func (r fixedRates) ProbAsymptomatic() float64 { return r.asym }
func (r fixedRates) ProbSevere() float64 { return r.sev }
func (r fixedRates) ProbCritical() float64 { return r.crit }
func (r fixedRates) ProbDeath() float64 { return r.death }
func (r fixedRates) CaseFatalityRatio() float64 { return r.cfr }
func (r fixedRates) InfectionFatalityRatio() float64 { return r.ifr }

func allModels() []*Table {
	return []*Table{NewSIR(), NewSEIR(), NewSEAIR(DefaultOdds()), NewSEICHAR(DefaultOdds())}
}

// TestShortNames verifies the canonical column order of every model.
func TestShortNames(t *testing.T) {
	assert.Equal(t, []string{"S", "I", "R", "D"}, NewSIR().ShortNames())
	assert.Equal(t, []string{"S", "E", "I", "R", "D"}, NewSEIR().ShortNames())
	assert.Equal(t, []string{"S", "E", "A", "I", "R", "D"}, NewSEAIR(DefaultOdds()).ShortNames())
	assert.Equal(t, []string{"S", "E", "I", "C", "H", "A", "R", "D"}, NewSEICHAR(DefaultOdds()).ShortNames())
}

// TestIndex_StableOrdinals verifies Index matches the position in Kinds.
func TestIndex_StableOrdinals(t *testing.T) {
	for _, m := range allModels() {
		for i, k := range m.Kinds() {
			assert.Equal(t, i, m.Index(Infected(k, VoC)), "model %s kind %s", m.Name(), k)
		}
		assert.Equal(t, len(m.Kinds()), m.Cardinality())
	}
	assert.Equal(t, -1, NewSIR().Index(Infected(Exposed, Baseline)))
}

// TestCompartmentGraph_IsDAG verifies Susceptible is the unique source and
// Recovered/Dead are the only sinks.
func TestCompartmentGraph_IsDAG(t *testing.T) {
	for _, m := range allModels() {
		indegree := map[Kind]int{}
		for _, k := range m.Kinds() {
			for _, next := range m.Successors(k) {
				require.True(t, m.Has(next))
				indegree[next]++
			}
		}
		for _, k := range m.Kinds() {
			if k == Susceptible {
				assert.Zero(t, indegree[k], "%s: susceptible must be a source", m.Name())
			} else {
				assert.Positive(t, indegree[k], "%s: %s must be reachable", m.Name(), k)
			}
			sink := len(m.Successors(k)) == 0
			assert.Equal(t, k.IsTerminal(), sink, "%s: %s sink mismatch", m.Name(), k)
		}

		// Depth-first search for back edges.
		const (
			white = iota
			grey
			black
		)
		color := map[Kind]int{}
		var visit func(k Kind)
		visit = func(k Kind) {
			color[k] = grey
			for _, next := range m.Successors(k) {
				require.NotEqual(t, grey, color[next], "%s: cycle through %s", m.Name(), next)
				if color[next] == white {
					visit(next)
				}
			}
			color[k] = black
		}
		visit(Susceptible)
	}
}

// TestTransferContamination verifies only susceptible targets of contagious
// sources are infected and that the payload travels with the infection.
func TestTransferContamination(t *testing.T) {
	m := NewSEICHAR(DefaultOdds())

	target := Healthy()
	assert.True(t, m.TransferContaminationFrom(&target, Infected(Infectious, VoC)))
	assert.Equal(t, Infected(Exposed, VoC), target)

	target = Healthy()
	assert.True(t, m.TransferContaminationFrom(&target, Infected(Asymptomatic, Baseline)))
	assert.Equal(t, Infected(Exposed, Baseline), target)

	for _, src := range []State{Healthy(), Infected(Exposed, VoC), Infected(Severe, VoC), Infected(Recovered, VoC), Infected(Dead, VoC)} {
		target = Healthy()
		assert.False(t, m.TransferContaminationFrom(&target, src), "source %s", src)
		assert.Equal(t, Healthy(), target)
	}

	recovered := Infected(Recovered, Baseline)
	assert.False(t, m.TransferContaminationFrom(&recovered, Infected(Infectious, VoC)))
	assert.Equal(t, Infected(Recovered, Baseline), recovered)
}

// TestTransferContamination_SIR verifies models without Exposed infect directly.
func TestTransferContamination_SIR(t *testing.T) {
	m := NewSIR()
	target := Healthy()
	require.True(t, m.TransferContaminationFrom(&target, m.NewInfectiousWith(VoC)))
	assert.Equal(t, Infected(Infectious, VoC), target)
}

// TestContagionOdds verifies odds per compartment.
func TestContagionOdds(t *testing.T) {
	m := NewSEICHAR(Odds{Asymptomatic: 0.5, Severe: 0.1})
	assert.Equal(t, 1.0, m.ContagionOdds(Infected(Infectious, Baseline)))
	assert.Equal(t, 0.5, m.ContagionOdds(Infected(Asymptomatic, Baseline)))
	assert.Equal(t, 0.1, m.ContagionOdds(Infected(Severe, Baseline)))
	assert.Zero(t, m.ContagionOdds(Infected(Critical, Baseline)))
	assert.Zero(t, m.ContagionOdds(Healthy()))
	assert.Zero(t, NewSEIR().ContagionOdds(Infected(Asymptomatic, Baseline)))
}

// TestNext_StaysInsideGraph verifies random transitions only follow edges of
// the compartment graph and terminal states are absorbing.
func TestNext_StaysInsideGraph(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rates := fixedRates{0.4, 0.3, 0.3, 0.3, 0.5, 0.5, 0.5, 0.5, 0.1, 0.05}
	for _, m := range allModels() {
		for trial := 0; trial < 200; trial++ {
			s := m.NewExposedWith(Variant(trial % 2))
			for step := 0; step < 60; step++ {
				next := m.Next(s, rates, rng)
				if next != s {
					assert.Contains(t, m.Successors(s.Kind), next.Kind, "%s: %s -> %s", m.Name(), s, next)
					assert.Equal(t, s.Variant, next.Variant)
				}
				if s.Kind.IsTerminal() {
					assert.Equal(t, s, next)
				}
				s = next
			}
		}
		assert.Equal(t, Healthy(), m.Next(Healthy(), rates, rng))
	}
}

// TestNext_CertainTransitions verifies probability-one branches are taken.
func TestNext_CertainTransitions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := NewSEICHAR(DefaultOdds())
	always := fixedRates{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}

	s := Infected(Exposed, VoC)
	want := []Kind{Asymptomatic, Recovered}
	for _, k := range want {
		s = m.Next(s, always, rng)
		assert.Equal(t, k, s.Kind)
	}

	never := fixedRates{1, 1, 1, 1, 0, 1, 1, 2.5, 0, 0}
	s = Infected(Exposed, Baseline)
	for _, k := range []Kind{Infectious, Severe, Critical, Dead} {
		s = m.Next(s, never, rng)
		assert.Equal(t, k, s.Kind)
	}
}

// TestForceInfectious verifies re-infection of non-susceptible states.
func TestForceInfectious(t *testing.T) {
	m := NewSEIR()
	s := Healthy()
	assert.False(t, m.ForceInfectious(&s, true))

	s = Infected(Recovered, VoC)
	assert.True(t, m.ForceInfectious(&s, false))
	assert.Equal(t, Infected(Infectious, VoC), s)

	s = Infected(Dead, Baseline)
	assert.False(t, m.ForceInfectious(&s, false))
	assert.True(t, m.ForceInfectious(&s, true))
}

// TestStateCSV verifies the compact state encoding.
func TestStateCSV(t *testing.T) {
	assert.Equal(t, "S", Healthy().CSV())
	assert.Equal(t, "E1", Infected(Exposed, VoC).CSV())
	assert.Equal(t, "H0", Infected(Severe, Baseline).CSV())
	assert.Equal(t, Healthy(), Infected(Susceptible, VoC))
}

// TestByName verifies model lookup.
func TestByName(t *testing.T) {
	m, ok := ByName(" SEIR ", DefaultOdds())
	require.True(t, ok)
	assert.Equal(t, LevelSEIR, m.Level())
	_, ok = ByName("sis", DefaultOdds())
	assert.False(t, ok)
}

// TestSelect verifies variant-dependent selection.
func TestSelect(t *testing.T) {
	assert.Equal(t, "a", Select(Baseline, "a", "b"))
	assert.Equal(t, "b", Select(VoC, "a", "b"))

	rng := rand.New(rand.NewSource(3))
	voc := 0
	for i := 0; i < 10000; i++ {
		if RandomVariant(rng, 0.3) == VoC {
			voc++
		}
	}
	assert.InDelta(t, 3000, voc, 300)
}

// TestParseCSV verifies every compartment and variant decodes back from its
// CSV form, and malformed input is rejected.
func TestParseCSV(t *testing.T) {
	for k := Kind(0); int(k) < NumKinds; k++ {
		for _, v := range []Variant{Baseline, VoC} {
			want := Infected(k, v)
			if k == Susceptible {
				want = Healthy()
			}
			got, ok := ParseCSV(want.CSV())
			require.True(t, ok, want.CSV())
			assert.Equal(t, want, got)
		}
	}

	k, ok := KindFromString("infectious")
	require.True(t, ok)
	assert.Equal(t, Infectious, k)

	for _, bad := range []string{"", "X1", "I", "I2", "S0", "E12"} {
		_, ok := ParseCSV(bad)
		assert.False(t, ok, bad)
	}
}
