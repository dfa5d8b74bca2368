package engine

import (
	"log/slog"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Hook observes every step after contagion and before tracking.
type Hook interface {
	OnStep(step int, sim *Simulation)
}

// HookFunc adapts a function to Hook.
type HookFunc func(step int, sim *Simulation)

// OnStep calls f.
func (f HookFunc) OnStep(step int, sim *Simulation) { f(step, sim) }

// AddHook registers h. Hooks run in registration order.
func (s *Simulation) AddHook(h Hook) {
	s.hooks = append(s.hooks, h)
}

// Run executes exactly n steps and returns the number of new cases.
func (s *Simulation) Run(n int) int {
	total := 0
	for _, c := range s.Steps(n) {
		total += c
	}
	return total
}

// Steps executes exactly n steps and returns the new cases of each.
func (s *Simulation) Steps(n int) []int {
	out := make([]int, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, s.step())
	}
	if n > 0 {
		slog.Debug("steps complete", "step", s.Step, "cases", s.Cases[len(s.Cases)-1], "state", s.Curves.Tip())
	}
	return out
}

// step advances the simulation by one day.
func (s *Simulation) step() int {
	s.Step++

	// Self-update: every agent transitions on its own.
	start := time.Now()
	s.selfUpdate()
	stepDuration.WithLabelValues("self_update").Observe(time.Since(start).Seconds())

	// Contagion: apply sampled pairs in order.
	start = time.Now()
	cases := s.contagion()
	stepDuration.WithLabelValues("contagion").Observe(time.Since(start).Seconds())

	for _, h := range s.hooks {
		h.OnStep(s.Step, s)
	}

	// Tracking.
	s.Curves.Update(s.Pop, true)
	s.Cases = append(s.Cases, cases)

	stepsTotal.Inc()
	newCasesTotal.WithLabelValues("contagion").Add(float64(cases))
	contactsGauge.Set(s.Sampler.Contacts())
	return cases
}

// selfUpdate splits the population into fixed-size chunks, each with a
// random stream seeded from one draw of the main stream plus the chunk index.
// The result is identical whether chunks run sequentially or in parallel.
func (s *Simulation) selfUpdate() {
	n := s.Pop.Count()
	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	base := s.rng.Int63()
	model := s.Model()

	update := func(k, lo, hi int) {
		rng := rand.New(rand.NewSource(base + int64(k)))
		span := s.Pop.Span(lo, hi)
		for i := range span {
			span[i].Update(model, s.Params, rng)
		}
	}

	if !s.Parallel || n <= chunk {
		for k, lo := 0, 0; lo < n; k, lo = k+1, lo+chunk {
			update(k, lo, min(lo+chunk, n))
		}
		return
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for k, lo := 0, 0; lo < n; k, lo = k+1, lo+chunk {
		k, lo := k, lo
		g.Go(func() error {
			update(k, lo, min(lo+chunk, n))
			return nil
		})
	}
	// Workers never fail.
	_ = g.Wait()
}

// contagion applies the sampler's pairs. Pairs that alias one agent or name
// a missing handle are skipped; a target infected earlier in the same step
// is no longer susceptible and is skipped by the transfer itself.
func (s *Simulation) contagion() int {
	model := s.Model()
	cases := 0
	for _, p := range s.Sampler.SampleInfectionPairs(s.Pop, s.rng) {
		if p.Source == p.Target {
			continue
		}
		src, dst, ok := s.Pop.Pair(p.Source, p.Target)
		if !ok {
			continue
		}
		if dst.ContaminateFrom(model, src) {
			cases++
		}
	}
	return cases
}
