package engine

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/episim/internal/control"
)

// Report summarizes a run for diagnostics.
type Report struct {
	Steps      int       `json:"steps"`
	Population int       `json:"population"`
	Names      []string  `json:"names"`
	Final      []int     `json:"final"`
	TotalCases int       `json:"total_cases"`
	AttackRate float64   `json:"attack_rate"`
	PeakStep   int       `json:"peak_step"` // 1-based, 0 when no step ran
	PeakCases  int       `json:"peak_cases"`
	R          float64   `json:"r"`
	Cases      CaseStats `json:"cases"`
	Vaccinated int       `json:"vaccinated"`
}

// CaseStats holds descriptive statistics of the per-step case series.
type CaseStats struct {
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Skew     float64 `json:"skew"`
	Kurtosis float64 `json:"kurtosis"` // Excess kurtosis
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	WeekPeak float64 `json:"week_peak"` // Highest 7-step moving average
}

// Report computes a summary of the run so far.
func (s *Simulation) Report() Report {
	r := Report{
		Steps:      s.Step,
		Population: s.Pop.Count(),
		Names:      s.Curves.Names(),
		Final:      s.Pop.Counts(),
		R:          s.ReproductionNumber(),
		Vaccinated: s.Pop.Vaccinated(),
	}
	for i, c := range s.Cases {
		r.TotalCases += c
		if c > r.PeakCases {
			r.PeakCases, r.PeakStep = c, i+1
		}
	}
	if r.Population > 0 {
		r.AttackRate = float64(r.TotalCases) / float64(r.Population)
	}
	if math.IsNaN(r.R) {
		r.R = 0
	}
	r.Cases = caseStats(s.Cases)
	return r
}

func caseStats(cases []int) CaseStats {
	if len(cases) == 0 {
		return CaseStats{}
	}
	x := make([]float64, len(cases))
	for i, c := range cases {
		x[i] = float64(c)
	}
	cs := CaseStats{
		Mean: stat.Mean(x, nil),
		Min:  floats.Min(x),
		Max:  floats.Max(x),
	}
	week := control.NewWindow(7)
	for _, v := range x {
		cs.WeekPeak = math.Max(cs.WeekPeak, week.Add(v))
	}
	// Higher moments need a few samples and some spread.
	if len(x) > 3 {
		cs.StdDev = stat.StdDev(x, nil)
		if cs.StdDev > 0 {
			cs.Skew = stat.Skew(x, nil)
			cs.Kurtosis = stat.ExKurtosis(x, nil)
		}
	}
	return cs
}
