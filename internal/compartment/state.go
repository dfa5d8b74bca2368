// Package compartment provides the disease state machine: compartment kinds,
// the variant payload carried by infected states, and the concrete
// SIR/SEIR/SEAIR/SEICHAR model tables.
package compartment

import (
	"fmt"
	"math/rand"
)

// Kind identifies a disease compartment.
type Kind uint8

// Canonical SEICHAR order. Ordinals of the full model follow this order.
const (
	Susceptible  Kind = iota
	Exposed
	Infectious
	Critical
	Severe
	Asymptomatic
	Recovered
	Dead
)

// NumKinds is the number of compartment kinds.
const NumKinds = 8

var kindNames = [NumKinds]string{
	"susceptible", "exposed", "infectious", "critical",
	"severe", "asymptomatic", "recovered", "dead",
}

var kindShort = [NumKinds]string{"S", "E", "I", "C", "H", "A", "R", "D"}

// String returns the long lowercase name of the compartment.
func (k Kind) String() string {
	if int(k) < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Short returns the one-letter column name used in CSV headers.
func (k Kind) Short() string {
	if int(k) < NumKinds {
		return kindShort[k]
	}
	return "?"
}

// IsTerminal reports whether the compartment is absorbing.
func (k Kind) IsTerminal() bool {
	return k == Recovered || k == Dead
}

// KindFromString parses a long or short compartment name.
func KindFromString(s string) (Kind, bool) {
	for i := 0; i < NumKinds; i++ {
		if s == kindNames[i] || s == kindShort[i] {
			return Kind(i), true
		}
	}
	return 0, false
}

// Variant is the clinical payload fixed at infection time.
type Variant uint8

const (
	Baseline Variant = 0
	VoC      Variant = 1 // Variant of concern
)

// String returns a readable variant name.
func (v Variant) String() string {
	if v == VoC {
		return "voc"
	}
	return "baseline"
}

// RandomVariant draws VoC with probability probVoC, Baseline otherwise.
func RandomVariant(rng *rand.Rand, probVoC float64) Variant {
	if rng.Float64() < probVoC {
		return VoC
	}
	return Baseline
}

// Select returns voc for the variant of concern and baseline otherwise.
func Select[T any](v Variant, baseline, voc T) T {
	if v == VoC {
		return voc
	}
	return baseline
}

// State is a compartment tagged with the variant that infected the agent.
// Susceptible states carry no payload; their Variant is always Baseline.
type State struct {
	Kind    Kind    `json:"kind"`
	Variant Variant `json:"variant"`
}

// Healthy returns the susceptible state.
func Healthy() State {
	return State{Kind: Susceptible}
}

// Infected returns a state of the given kind carrying variant v.
// Asking for Susceptible drops the payload.
func Infected(k Kind, v Variant) State {
	if k == Susceptible {
		return Healthy()
	}
	return State{Kind: k, Variant: v}
}

// With returns a state of kind k that keeps the receiver's payload.
func (s State) With(k Kind) State {
	return Infected(k, s.Variant)
}

func (s State) IsSusceptible() bool { return s.Kind == Susceptible }
func (s State) IsExposed() bool { return s.Kind == Exposed }
func (s State) IsRecovered() bool { return s.Kind == Recovered }
func (s State) IsDead() bool { return s.Kind == Dead }

// IsActive reports an ongoing infection (neither susceptible nor terminal).
func (s State) IsActive() bool {
	return s.Kind != Susceptible && !s.Kind.IsTerminal()
}

// CSV encodes the state as its short name followed by the variant digit,
// e.g. "E1". Susceptible is encoded as a bare "S".
func (s State) CSV() string {
	if s.Kind == Susceptible {
		return "S"
	}
	return fmt.Sprintf("%s%d", s.Kind.Short(), s.Variant)
}

// ParseCSV decodes the form written by CSV.
func ParseCSV(s string) (State, bool) {
	if s == "" {
		return State{}, false
	}
	k, ok := KindFromString(s[:1])
	if !ok {
		return State{}, false
	}
	if k == Susceptible {
		return Healthy(), len(s) == 1
	}
	if len(s) != 2 || s[1] < '0' || s[1] > '1' {
		return State{}, false
	}
	return Infected(k, Variant(s[1]-'0')), true
}

func (s State) String() string {
	if s.Kind == Susceptible {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Variant)
}
