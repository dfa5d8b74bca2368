package agents

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/episim/internal/compartment"
	"github.com/talgya/episim/internal/params"
)

// TestSetState_ResetsTimerOnChange verifies the state timer resets only on
// an actual compartment change.
func TestSetState_ResetsTimerOnChange(t *testing.T) {
	a := New(0, 30)
	a.StateT = 5
	assert.False(t, a.SetState(compartment.Healthy()))
	assert.Equal(t, uint16(5), a.StateT)

	assert.True(t, a.SetState(compartment.Infected(compartment.Exposed, compartment.VoC)))
	assert.Zero(t, a.StateT)
}

// TestUpdate_Counters verifies timers advance each step and terminal states
// stay put.
func TestUpdate_Counters(t *testing.T) {
	m := compartment.NewSEIR()
	binder := params.NewCached(params.NewSet(params.DefaultScalar()))
	rng := rand.New(rand.NewSource(1))

	a := New(0, 40)
	a.Vaccinate()
	for i := 0; i < 3; i++ {
		assert.False(t, a.Update(m, binder, rng))
	}
	assert.Equal(t, uint16(3), a.StateT)
	assert.Equal(t, uint16(3), a.VaccineT)

	dead := New(1, 90)
	dead.State = compartment.Infected(compartment.Dead, compartment.Baseline)
	assert.False(t, dead.Update(m, binder, rng))
	assert.Zero(t, dead.StateT)
}

// TestUpdate_ZeroIncubation verifies a zero period leaves Exposed at once.
func TestUpdate_ZeroIncubation(t *testing.T) {
	p := params.DefaultScalar()
	p.IncubationPeriod = params.Scalar(0)
	binder := params.NewSet(p)
	m := compartment.NewSEIR()

	a := New(0, 20)
	a.State = compartment.Infected(compartment.Exposed, compartment.Baseline)
	a.StateT = 4
	assert.True(t, a.Update(m, binder, rand.New(rand.NewSource(2))))
	assert.Equal(t, compartment.Infectious, a.State.Kind)
	assert.Zero(t, a.StateT)
}

// TestInfect_Modes verifies natural and forced infections.
func TestInfect_Modes(t *testing.T) {
	m := compartment.NewSEICHAR(compartment.DefaultOdds())

	a := New(0, 20)
	assert.True(t, a.Infect(m, compartment.VoC, InfectNatural))
	assert.Equal(t, compartment.Infected(compartment.Exposed, compartment.VoC), a.State)
	assert.False(t, a.Infect(m, compartment.Baseline, InfectNatural))

	a.State = compartment.Infected(compartment.Recovered, compartment.Baseline)
	assert.True(t, a.Infect(m, compartment.VoC, InfectForceInfectious))
	assert.Equal(t, compartment.Infected(compartment.Infectious, compartment.VoC), a.State)

	a.State = compartment.Infected(compartment.Dead, compartment.Baseline)
	assert.False(t, a.Infect(m, compartment.VoC, InfectForceExposed))
}

// TestContaminateFrom verifies secondary infection bookkeeping.
func TestContaminateFrom(t *testing.T) {
	m := compartment.NewSEIR()
	src := New(0, 30)
	src.State = m.NewInfectiousWith(compartment.VoC)
	dst := New(1, 30)

	require.True(t, dst.ContaminateFrom(m, &src))
	assert.Equal(t, uint32(1), src.SecondaryInfections)
	assert.Equal(t, compartment.Infected(compartment.Exposed, compartment.VoC), dst.State)

	again := dst.ContaminateFrom(m, &src)
	assert.False(t, again)
	assert.Equal(t, uint32(1), src.SecondaryInfections)
}

// TestSpawner_AgeCounts verifies bucketed ages and sequential handles.
func TestSpawner_AgeCounts(t *testing.T) {
	s := NewSpawner(42)
	s.SpawnAgeCounts([params.NumAgeBuckets]int{2, 0, 3, 0, 0, 0, 0, 0, 1})
	ag := s.Agents()
	require.Len(t, ag, 6)
	for i, a := range ag {
		assert.Equal(t, AgentID(i), a.ID)
		assert.True(t, a.State.IsSusceptible())
	}
	assert.Less(t, ag[0].Age, uint8(10))
	assert.GreaterOrEqual(t, ag[2].Age, uint8(20))
	assert.Less(t, ag[4].Age, uint8(30))
	assert.GreaterOrEqual(t, ag[5].Age, uint8(80))
}

// TestSpawner_Distribution verifies weighted age sampling.
func TestSpawner_Distribution(t *testing.T) {
	s := NewSpawner(7)
	_, err := s.SpawnDistribution(5000, [params.NumAgeBuckets]float64{1, 0, 0, 0, 0, 0, 0, 0, 3})
	require.NoError(t, err)
	old := 0
	for _, a := range s.Agents() {
		b := params.AgeBucket(a.Age)
		require.True(t, b == 0 || b == 8, "age %d in empty bucket", a.Age)
		if b == 8 {
			old++
		}
	}
	assert.InDelta(t, 3750, old, 200)

	_, err = NewSpawner(1).SpawnDistribution(10, [params.NumAgeBuckets]float64{})
	assert.Error(t, err)
}

// TestSpawner_Deterministic verifies a seed reproduces the population.
func TestSpawner_Deterministic(t *testing.T) {
	w := [params.NumAgeBuckets]float64{1, 1, 1, 1, 1, 1, 1, 1, 1}
	a, err := NewSpawner(9).SpawnDistribution(100, w)
	require.NoError(t, err)
	b, err := NewSpawner(9).SpawnDistribution(100, w)
	require.NoError(t, err)
	assert.Equal(t, a.Agents(), b.Agents())

	s := NewSpawner(3).SpawnCount(4)
	s.Push(New(99, 70))
	assert.Equal(t, AgentID(4), s.Agents()[4].ID)
	assert.Equal(t, 5, s.Len())
}

// TestSpawner_VaccinateRandom verifies the vaccinated share.
func TestSpawner_VaccinateRandom(t *testing.T) {
	s := NewSpawner(5).SpawnCount(4000)
	n := s.VaccinateRandom(0.25)
	assert.InDelta(t, 1000, n, 120)
	assert.Equal(t, 0, s.VaccinateRandom(0))
}
