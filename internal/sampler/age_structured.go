package sampler

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/talgya/episim/internal/agents"
	"github.com/talgya/episim/internal/compartment"
	"github.com/talgya/episim/internal/population"
)

var (
	// ErrNotSquare is returned for contact matrices that are not square.
	ErrNotSquare = errors.New("contact matrix is not square")
	// ErrBinSize is returned for non-positive age bin widths.
	ErrBinSize = errors.New("age bin size must be positive")
)

// AgeStructured draws contacts by age bin. C[u][v] is the mean number of
// daily contacts an agent in bin u has with agents in bin v.
type AgeStructured struct {
	matrix        *mat.Dense
	binSize       int
	probInfection float64

	// Built on first use and rebuilt if the population size changes.
	members [][]int
	binOf   []int
	size    int
}

// NewAgeStructured validates the matrix and bin width. Agents older than
// the last bin are folded into it.
func NewAgeStructured(matrix *mat.Dense, binSize int, probInfection float64) (*AgeStructured, error) {
	r, c := matrix.Dims()
	if r != c || r == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotSquare, r, c)
	}
	if binSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBinSize, binSize)
	}
	return &AgeStructured{
		matrix:        mat.DenseCopyOf(matrix),
		binSize:       binSize,
		probInfection: probInfection,
	}, nil
}

// MatrixFromRows builds a dense contact matrix from nested slices.
func MatrixFromRows(rows [][]float64) (*mat.Dense, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty", ErrNotSquare)
	}
	flat := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrNotSquare, i, len(row), n)
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(n, n, flat), nil
}

// Bins returns the number of age bins.
func (s *AgeStructured) Bins() int {
	n, _ := s.matrix.Dims()
	return n
}

// Matrix returns a copy of the current contact matrix.
func (s *AgeStructured) Matrix() *mat.Dense {
	return mat.DenseCopyOf(s.matrix)
}

// Bin returns the bin index of an age.
func (s *AgeStructured) Bin(age uint8) int {
	b := int(age) / s.binSize
	if last := s.Bins() - 1; b > last {
		return last
	}
	return b
}

// Init partitions the population into age bins. Ages never change during a
// run, so the partition is reused until the population size changes.
func (s *AgeStructured) Init(pop *population.Population) {
	s.members = make([][]int, s.Bins())
	s.binOf = make([]int, pop.Count())
	pop.EachAgent(func(id int, a agents.Agent) {
		b := s.Bin(a.Age)
		s.binOf[id] = b
		s.members[b] = append(s.members[b], id)
	})
	s.size = pop.Count()
}

func (s *AgeStructured) ensure(pop *population.Population) {
	if s.members == nil || s.size != pop.Count() {
		s.Init(pop)
	}
}

// Contacts returns the population-weighted mean row sum of the matrix. Before
// Init every bin has equal weight; engine.New and Fluctuating call Init first
// so callers see the weighted value.
func (s *AgeStructured) Contacts() float64 {
	n := s.Bins()
	total, weight := 0.0, 0.0
	for u := 0; u < n; u++ {
		w := 1.0
		if s.members != nil {
			w = float64(len(s.members[u]))
		}
		total += w * mat.Sum(s.matrix.RowView(u))
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return total / weight
}

// SetContacts rescales the whole matrix so Contacts returns value. A zero
// matrix is replaced by a uniform one.
func (s *AgeStructured) SetContacts(value float64) {
	if value < 0 {
		value = 0
	}
	current := s.Contacts()
	if current <= 0 {
		n := s.Bins()
		for u := 0; u < n; u++ {
			for v := 0; v < n; v++ {
				s.matrix.Set(u, v, value/float64(n))
			}
		}
		return
	}
	s.matrix.Scale(value/current, s.matrix)
}

func (s *AgeStructured) ProbInfection() float64 { return s.probInfection }

func (s *AgeStructured) SetProbInfection(value float64) {
	s.probInfection = compartment.Clamp01(value)
}

// SampleInfectionPairs draws, for each contagious agent in bin u and each
// bin v, round(C[u][v]) contacts uniformly among the members of v.
func (s *AgeStructured) SampleInfectionPairs(pop *population.Population, rng *rand.Rand) []Pair {
	s.ensure(pop)
	model := pop.Model()
	var pairs []Pair
	for _, i := range pop.Contagious() {
		src, _ := pop.Get(i)
		p := infectionProb(s.probInfection, model.ContagionOdds(src.State))
		u := s.binOf[i]
		for v, members := range s.members {
			if len(members) == 0 {
				continue
			}
			m := RoundProbabilistically(rng, s.matrix.At(u, v))
			for k := 0; k < m; k++ {
				if !compartment.Bernoulli(rng, p) {
					continue
				}
				j := members[rng.Intn(len(members))]
				if j == i {
					continue
				}
				if dst, _ := pop.Get(j); dst.State.IsSusceptible() {
					pairs = append(pairs, Pair{Source: i, Target: j})
				}
			}
		}
	}
	return pairs
}

// ExpectedInfectionPairs sums C[u][v] * p_i * S_v/|v| over contagious i.
func (s *AgeStructured) ExpectedInfectionPairs(pop *population.Population) float64 {
	s.ensure(pop)
	model := pop.Model()
	n := s.Bins()
	susceptible := make([]float64, n)
	weight := make([]float64, n)
	pop.EachAgent(func(id int, a agents.Agent) {
		b := s.binOf[id]
		if a.State.IsSusceptible() {
			susceptible[b]++
			return
		}
		weight[b] += infectionProb(s.probInfection, model.ContagionOdds(a.State))
	})

	total := 0.0
	for u := 0; u < n; u++ {
		if weight[u] == 0 {
			continue
		}
		for v := 0; v < n; v++ {
			if size := len(s.members[v]); size > 0 {
				total += weight[u] * s.matrix.At(u, v) * susceptible[v] / float64(size)
			}
		}
	}
	return total
}
