package population

import "math/rand"

// VaccinateRandom vaccinates each living agent with probability prob.
// Returns the number of new doses.
func (p *Population) VaccinateRandom(rng *rand.Rand, prob float64) int {
	n := 0
	for i := range p.agents {
		a := &p.agents[i]
		if a.State.IsDead() || rng.Float64() >= prob {
			continue
		}
		if a.Vaccinate() {
			n++
		}
	}
	return n
}

// VaccinateAbove vaccinates living agents aged minAge or more with
// probability prob.
func (p *Population) VaccinateAbove(rng *rand.Rand, minAge uint8, prob float64) int {
	n := 0
	for i := range p.agents {
		a := &p.agents[i]
		if a.Age < minAge || a.State.IsDead() || rng.Float64() >= prob {
			continue
		}
		if a.Vaccinate() {
			n++
		}
	}
	return n
}

// DistributeVaccines gives up to doses vaccines to unvaccinated living
// agents, oldest first. Returns the number of doses used.
func (p *Population) DistributeVaccines(doses int) int {
	if doses <= 0 {
		return 0
	}
	used := 0
	for _, id := range p.ByAgeDescending() {
		if used == doses {
			break
		}
		a := &p.agents[id]
		if a.State.IsDead() {
			continue
		}
		if a.Vaccinate() {
			used++
		}
	}
	return used
}

// Vaccinated counts vaccinated agents.
func (p *Population) Vaccinated() int {
	n := 0
	for i := range p.agents {
		if p.agents[i].IsVaccinated() {
			n++
		}
	}
	return n
}
