// Package agents provides the agent data model and population spawning.
package agents

import (
	"math/rand"

	"github.com/talgya/episim/internal/compartment"
	"github.com/talgya/episim/internal/params"
)

// AgentID is the stable handle of an agent: its position in the population.
type AgentID uint32

// Infect selects how an infection is applied to an agent.
type Infect uint8

const (
	InfectNatural         Infect = iota // Susceptible agents enter the model's entry state
	InfectForceExposed                  // Any living agent becomes Exposed
	InfectForceInfectious               // Any living agent becomes Infectious
)

// Agent is one individual in the simulation.
type Agent struct {
	ID      AgentID           `json:"id"`
	Age     uint8             `json:"age"` // Years
	State   compartment.State `json:"state"`
	Vaccine params.Vaccine    `json:"vaccine"`

	// Time counters, in steps. Diagnostic only.
	StateT   uint16 `json:"state_t"`   // Steps since the last compartment change
	VaccineT uint16 `json:"vaccine_t"` // Steps since vaccination

	// SecondaryInfections counts successful transmissions from this agent.
	SecondaryInfections uint32 `json:"secondary_infections"`
}

// New returns a susceptible agent of the given age.
func New(id AgentID, age uint8) Agent {
	return Agent{ID: id, Age: age, State: compartment.Healthy()}
}

// Context is the parameter lookup context of the agent.
func (a *Agent) Context() params.Context {
	return params.Context{Age: a.Age, Variant: a.State.Variant, Vaccine: a.Vaccine}
}

// SetState moves the agent to s. The state timer resets only when the
// compartment actually changes.
func (a *Agent) SetState(s compartment.State) bool {
	if s == a.State {
		return false
	}
	a.State = s
	a.StateT = 0
	return true
}

// Update applies one self-transition with parameters bound to the agent.
// Returns true if the compartment changed.
func (a *Agent) Update(m compartment.Model, b params.Binder, rng *rand.Rand) bool {
	if a.Vaccine == params.Vaccinated && a.VaccineT < ^uint16(0) {
		a.VaccineT++
	}
	if a.State.Kind.IsTerminal() {
		return false
	}
	if a.StateT < ^uint16(0) {
		a.StateT++
	}
	if a.State.IsSusceptible() {
		return false
	}
	return a.SetState(m.Next(a.State, b.Bind(a.Context()), rng))
}

// Infect applies an infection with variant v according to mode.
func (a *Agent) Infect(m compartment.Model, v compartment.Variant, mode Infect) bool {
	switch mode {
	case InfectNatural:
		if !a.State.IsSusceptible() {
			return false
		}
		return a.SetState(m.NewExposedWith(v))
	case InfectForceExposed:
		if a.State.IsDead() {
			return false
		}
		return a.SetState(m.NewExposedWith(v))
	case InfectForceInfectious:
		if a.State.IsDead() {
			return false
		}
		return a.SetState(m.NewInfectiousWith(v))
	}
	return false
}

// ContaminateFrom tries to infect a from src. On success src's secondary
// infection counter is incremented.
func (a *Agent) ContaminateFrom(m compartment.Model, src *Agent) bool {
	if !m.TransferContaminationFrom(&a.State, src.State) {
		return false
	}
	a.StateT = 0
	src.SecondaryInfections++
	return true
}

// Vaccinate marks the agent vaccinated. Returns false if already vaccinated.
func (a *Agent) Vaccinate() bool {
	if a.Vaccine == params.Vaccinated {
		return false
	}
	a.Vaccine = params.Vaccinated
	a.VaccineT = 0
	return true
}

// IsVaccinated reports the vaccination flag.
func (a *Agent) IsVaccinated() bool {
	return a.Vaccine == params.Vaccinated
}
