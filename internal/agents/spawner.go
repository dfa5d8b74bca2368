// Agent spawning: builds the initial population from a head count, from
// per-bucket age counts, or from an age distribution.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/episim/internal/params"
)

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
	agents []Agent
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng: rand.New(rand.NewSource(seed + 300)),
	}
}

// Agents returns the spawned agents. IDs equal positions.
func (s *Spawner) Agents() []Agent {
	return s.agents
}

// Len returns the number of spawned agents.
func (s *Spawner) Len() int {
	return len(s.agents)
}

// Push appends a pre-built agent, assigning it the next handle.
func (s *Spawner) Push(a Agent) AgentID {
	a.ID = s.nextID
	s.nextID++
	s.agents = append(s.agents, a)
	return a.ID
}

// SpawnCount appends n susceptible agents of age 0.
func (s *Spawner) SpawnCount(n int) *Spawner {
	s.grow(n)
	for i := 0; i < n; i++ {
		s.Push(New(0, 0))
	}
	return s
}

// SpawnAgeCounts appends counts[i] agents with ages uniform in
// [10i, 10i+10) for each bucket.
func (s *Spawner) SpawnAgeCounts(counts [params.NumAgeBuckets]int) *Spawner {
	total := 0
	for _, n := range counts {
		total += n
	}
	s.grow(total)
	for bucket, n := range counts {
		for i := 0; i < n; i++ {
			age := uint8(bucket*10 + s.rng.Intn(10))
			s.Push(New(0, age))
		}
	}
	return s
}

// SpawnDistribution appends n agents with ages drawn from the bucket weights.
func (s *Spawner) SpawnDistribution(n int, weights [params.NumAgeBuckets]float64) (*Spawner, error) {
	ages, err := RandomAges(s.rng, n, weights)
	if err != nil {
		return s, err
	}
	s.grow(n)
	for _, age := range ages {
		s.Push(New(0, age))
	}
	return s, nil
}

// RandomAges draws n ages: a weighted bucket plus a uniform offset in [0,10).
func RandomAges(rng *rand.Rand, n int, weights [params.NumAgeBuckets]float64) ([]uint8, error) {
	total := 0.0
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("age weight %d is negative: %v", i, w)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("age weights sum to %v", total)
	}

	ages := make([]uint8, n)
	for i := range ages {
		x := rng.Float64() * total
		bucket := params.NumAgeBuckets - 1
		for b, w := range weights {
			if x < w {
				bucket = b
				break
			}
			x -= w
		}
		for weights[bucket] == 0 {
			bucket--
		}
		ages[i] = uint8(bucket*10 + rng.Intn(10))
	}
	return ages, nil
}

// VaccinateRandom vaccinates each spawned agent with probability prob.
func (s *Spawner) VaccinateRandom(prob float64) int {
	n := 0
	for i := range s.agents {
		if s.rng.Float64() < prob && s.agents[i].Vaccinate() {
			n++
		}
	}
	return n
}

func (s *Spawner) grow(n int) {
	if cap(s.agents)-len(s.agents) < n {
		grown := make([]Agent, len(s.agents), len(s.agents)+n)
		copy(grown, s.agents)
		s.agents = grown
	}
}
