// Package population provides the agent arena: a fixed-size slice of agents
// addressed by stable integer handles, with random selection and safe
// simultaneous access to two distinct agents.
package population

import (
	"math/rand"
	"sort"

	"github.com/talgya/episim/internal/agents"
	"github.com/talgya/episim/internal/compartment"
)

// Population owns the agents of one simulation. Handles equal positions and
// never change.
type Population struct {
	model  compartment.Model
	agents []agents.Agent
}

// New takes ownership of ag and renumbers every agent to its position.
func New(model compartment.Model, ag []agents.Agent) *Population {
	for i := range ag {
		ag[i].ID = agents.AgentID(i)
	}
	return &Population{model: model, agents: ag}
}

// FromStates builds a population of age-0 agents in the given states.
func FromStates(model compartment.Model, states []compartment.State) *Population {
	ag := make([]agents.Agent, len(states))
	for i, s := range states {
		ag[i] = agents.New(agents.AgentID(i), 0)
		ag[i].State = s
	}
	return &Population{model: model, agents: ag}
}

// Model returns the compartment model the population is counted against.
func (p *Population) Model() compartment.Model {
	return p.model
}

// Count returns the number of agents.
func (p *Population) Count() int {
	return len(p.agents)
}

// Get returns a copy of agent id.
func (p *Population) Get(id int) (agents.Agent, bool) {
	if id < 0 || id >= len(p.agents) {
		return agents.Agent{}, false
	}
	return p.agents[id], true
}

// GetMut returns a pointer to agent id.
func (p *Population) GetMut(id int) (*agents.Agent, bool) {
	if id < 0 || id >= len(p.agents) {
		return nil, false
	}
	return &p.agents[id], true
}

// Pair returns two pointers to distinct agents. It reports false when i == j
// or either handle is out of range, so the two pointers never alias.
func (p *Population) Pair(i, j int) (*agents.Agent, *agents.Agent, bool) {
	if i == j || i < 0 || j < 0 || i >= len(p.agents) || j >= len(p.agents) {
		return nil, nil, false
	}
	return &p.agents[i], &p.agents[j], true
}

// EachAgent calls f with a copy of every agent in handle order.
func (p *Population) EachAgent(f func(id int, a agents.Agent)) {
	for i := range p.agents {
		f(i, p.agents[i])
	}
}

// EachAgentMut calls f with a pointer to every agent in handle order.
func (p *Population) EachAgentMut(f func(id int, a *agents.Agent)) {
	for i := range p.agents {
		f(i, &p.agents[i])
	}
}

// Span returns agents [lo, hi) for in-place batch updates. Disjoint spans
// may be mutated concurrently.
func (p *Population) Span(lo, hi int) []agents.Agent {
	return p.agents[lo:hi:hi]
}

// Snapshot returns a copy of all agents.
func (p *Population) Snapshot() []agents.Agent {
	out := make([]agents.Agent, len(p.agents))
	copy(out, p.agents)
	return out
}

// Random returns a uniformly random handle and that agent's state.
func (p *Population) Random(rng *rand.Rand) (int, compartment.State, bool) {
	if len(p.agents) == 0 {
		return 0, compartment.State{}, false
	}
	id := rng.Intn(len(p.agents))
	return id, p.agents[id].State, true
}

// RandomIDs draws min(n, Count()) distinct handles.
func (p *Population) RandomIDs(rng *rand.Rand, n int) []int {
	size := len(p.agents)
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}
	if n*4 < size {
		seen := make(map[int]struct{}, n)
		out := make([]int, 0, n)
		for len(out) < n {
			id := rng.Intn(size)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return out
	}
	ids := make([]int, size)
	for i := range ids {
		ids[i] = i
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(size-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:n]
}

// Sample returns copies of up to n distinct random agents.
func (p *Population) Sample(rng *rand.Rand, n int) []agents.Agent {
	ids := p.RandomIDs(rng, n)
	out := make([]agents.Agent, len(ids))
	for i, id := range ids {
		out[i] = p.agents[id]
	}
	return out
}

// Filter returns the handles of agents whose state matches keep.
func (p *Population) Filter(keep func(compartment.State) bool) []int {
	var out []int
	for i := range p.agents {
		if keep(p.agents[i].State) {
			out = append(out, i)
		}
	}
	return out
}

// Susceptible returns the handles of all susceptible agents.
func (p *Population) Susceptible() []int {
	return p.Filter(compartment.State.IsSusceptible)
}

// Contagious returns the handles of agents with positive contagion odds.
func (p *Population) Contagious() []int {
	return p.Filter(p.model.IsContagious)
}

// Counts returns the number of agents per model ordinal.
func (p *Population) Counts() []int {
	counts := make([]int, p.model.Cardinality())
	for i := range p.agents {
		if idx := p.model.Index(p.agents[i].State); idx >= 0 {
			counts[idx]++
		}
	}
	return counts
}

// ContaminateAtRandom applies try to random agents until n calls succeed.
// Random draws stop after max(3n, 15) tries; the remainder is then taken
// from a shuffled scan of the susceptible agents. Returns the number of
// successes, which is less than n only when too few agents accept.
func (p *Population) ContaminateAtRandom(n int, rng *rand.Rand, try func(a *agents.Agent) bool) int {
	if n <= 0 || len(p.agents) == 0 {
		return 0
	}

	budget := 3 * n
	if budget < 15 {
		budget = 15
	}
	done := 0
	for tries := 0; done < n && tries < budget; tries++ {
		if try(&p.agents[rng.Intn(len(p.agents))]) {
			done++
		}
	}
	if done == n {
		return done
	}

	candidates := p.Susceptible()
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	for _, id := range candidates {
		if done == n {
			break
		}
		if try(&p.agents[id]) {
			done++
		}
	}
	return done
}

// ByAgeDescending returns handles sorted oldest first; ties keep handle order.
func (p *Population) ByAgeDescending() []int {
	ids := make([]int, len(p.agents))
	for i := range ids {
		ids[i] = i
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return p.agents[ids[a]].Age > p.agents[ids[b]].Age
	})
	return ids
}
