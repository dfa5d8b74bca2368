package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/episim/internal/compartment"
)

// TestCalibrate_Convergence verifies a calibrated run reproduces the
// cumulative cases of a reference run within 10%.
func TestCalibrate_Convergence(t *testing.T) {
	ref := newSim(compartment.NewSIR(), sirParams(), 5000, 1, 3, 0.1)
	ref.ContaminateAtRandom(10)
	steps := ref.Steps(25)
	target := make([]float64, len(steps))
	for i, c := range steps {
		target[i] = float64(c)
	}

	sim := newSim(compartment.NewSIR(), sirParams(), 5000, 2, 3, 0.1)
	sim.ContaminateAtRandom(10)
	res, err := sim.CalibrateSamplerFromCases(target)
	require.NoError(t, err)

	assert.Len(t, res.Cases, len(target))
	assert.Len(t, res.Trajectory, len(target))
	assert.Equal(t, len(target), sim.Step)
	assert.InDelta(t, 0, res.RelativeError(), 0.10, "target=%v simulated=%d", res.Target, res.Simulated)
	assert.Greater(t, res.Contacts, 0.0)
	assert.Equal(t, res.Contacts, sim.Sampler.Contacts())
}

// TestCalibrate_ZeroTarget verifies an all-zero target leaves the contact
// rate unchanged and seeds nothing.
func TestCalibrate_ZeroTarget(t *testing.T) {
	sim := newSim(compartment.NewSIR(), sirParams(), 500, 3, 2.5, 0.1)
	res, err := sim.CalibrateSamplerFromCases(make([]float64, 10))
	require.NoError(t, err)

	assert.InDelta(t, 2.5, res.Contacts, 1e-12)
	assert.Zero(t, res.Forced)
	assert.Zero(t, res.Simulated)
	assert.Zero(t, res.RelativeError())
}

// TestCalibrate_ForcesSeeding verifies a deficit with no organic spread is
// closed by forced infections.
func TestCalibrate_ForcesSeeding(t *testing.T) {
	sim := newSim(compartment.NewSIR(), sirParams(), 1000, 4, 1, 0)
	res, err := sim.CalibrateSamplerFromCases([]float64{5, 5, 5, 5})
	require.NoError(t, err)

	assert.Equal(t, 20, res.Forced)
	assert.Equal(t, 20, res.Simulated)
	assert.Equal(t, []int{5, 5, 5, 5}, res.Cases)
	assert.Equal(t, res.Cases, sim.CasesPerStep())
}

// TestCalibrate_InvalidTarget verifies negative and non-finite values are
// rejected before any step runs.
func TestCalibrate_InvalidTarget(t *testing.T) {
	sim := newSim(compartment.NewSIR(), sirParams(), 10, 1, 1, 0.1)
	_, err := sim.CalibrateSamplerFromCases([]float64{1, -1})
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = sim.CalibrateSamplerFromCases([]float64{math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.Zero(t, sim.Step)
}

// TestSeedFromCases verifies the first target value is seeded rounded up.
func TestSeedFromCases(t *testing.T) {
	sim := newSim(compartment.NewSIR(), sirParams(), 100, 1, 1, 0.1)
	assert.Equal(t, 3, sim.SeedFromCases([]float64{2.2, 5}))
	assert.Equal(t, 0, sim.SeedFromCases(nil))
	assert.Equal(t, []int{97, 3, 0, 0}, sim.Initial)
}
