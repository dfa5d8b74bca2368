package engine

import (
	"fmt"
	"log/slog"
)

// VaccineSupply yields the number of doses available on a given step.
type VaccineSupply interface {
	Doses(step int) int
}

// ConstantSupply delivers the same number of doses every step.
type ConstantSupply int

// Doses returns c.
func (c ConstantSupply) Doses(int) int { return int(c) }

// CurveSupply delivers curve[step-1] doses on step, and nothing past its end.
type CurveSupply []int

// Doses returns the scheduled doses for step.
func (c CurveSupply) Doses(step int) int {
	if step < 1 || step > len(c) {
		return 0
	}
	return c[step-1]
}

// VaccinationCampaign is a hook that distributes each step's doses to the
// oldest living unvaccinated agents.
type VaccinationCampaign struct {
	Supply VaccineSupply
	Given  int // Doses delivered so far
}

// NewVaccinationCampaign returns a campaign drawing from supply.
func NewVaccinationCampaign(supply VaccineSupply) *VaccinationCampaign {
	return &VaccinationCampaign{Supply: supply}
}

// OnStep distributes the step's doses.
func (c *VaccinationCampaign) OnStep(step int, sim *Simulation) {
	if c.Supply == nil {
		return
	}
	doses := c.Supply.Doses(step)
	if doses <= 0 {
		return
	}
	given := sim.Pop.DistributeVaccines(doses)
	c.Given += given
	vaccineDosesTotal.Add(float64(given))
	if given < doses {
		sim.EmitEvent(Event{
			Step:        step,
			Description: fmt.Sprintf("vaccine surplus: %d of %d doses unused", doses-given, doses),
			Category:    "vaccine",
			Meta:        map[string]any{"doses": doses, "given": given},
		})
	}
}

// VaccinateRandom vaccinates each living agent with probability prob.
func (s *Simulation) VaccinateRandom(prob float64) int {
	n := s.Pop.VaccinateRandom(s.rng, prob)
	vaccineDosesTotal.Add(float64(n))
	s.EmitEvent(Event{
		Step:        s.Step,
		Description: fmt.Sprintf("vaccinated %d agents at random (p=%.2f)", n, prob),
		Category:    "vaccine",
		Meta:        map[string]any{"prob": prob, "given": n},
	})
	slog.Info("vaccination intervention", "step", s.Step, "prob", prob, "given", n)
	return n
}

// VaccinateAbove vaccinates agents of at least minAge with probability prob.
func (s *Simulation) VaccinateAbove(minAge uint8, prob float64) int {
	n := s.Pop.VaccinateAbove(s.rng, minAge, prob)
	vaccineDosesTotal.Add(float64(n))
	s.EmitEvent(Event{
		Step:        s.Step,
		Description: fmt.Sprintf("vaccinated %d agents aged %d+ (p=%.2f)", n, minAge, prob),
		Category:    "vaccine",
		Meta:        map[string]any{"min_age": minAge, "prob": prob, "given": n},
	})
	slog.Info("vaccination intervention", "step", s.Step, "min_age", minAge, "prob", prob, "given", n)
	return n
}
