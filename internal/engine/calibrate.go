package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/episim/internal/control"
)

// ErrInvalidTarget is returned when a calibration target holds a negative or
// non-finite value.
var ErrInvalidTarget = errors.New("invalid calibration target")

// Gains holds PID controller gains.
type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// CalibrationConfig tunes the contact-rate controller.
type CalibrationConfig struct {
	MinScale      float64 `yaml:"min_scale"`      // Lower bound on per-step contact growth
	MaxScale      float64 `yaml:"max_scale"`      // Upper bound on per-step contact growth
	MinContacts   float64 `yaml:"min_contacts"`   // Floor for the contact rate
	MaxContacts   float64 `yaml:"max_contacts"`   // Ceiling for the contact rate
	ExcessDamping float64 `yaml:"excess_damping"` // Share of the running deficit added to each target
	Alpha         float64 `yaml:"alpha"`          // Additive smoothing in case ratios
	Smoothing     float64 `yaml:"smoothing"`      // EMA memory for the final contact rate
	ForceFraction float64 `yaml:"force_fraction"` // Deficit share of cumulative target that triggers seeding
	CasesGains    Gains   `yaml:"cases_gains"`
	RatioGains    Gains   `yaml:"ratio_gains"`
}

// DefaultCalibration returns the standard controller tuning.
func DefaultCalibration() CalibrationConfig {
	return CalibrationConfig{
		MinScale:      0.67,
		MaxScale:      1.33,
		MinContacts:   0.01,
		MaxContacts:   100,
		ExcessDamping: 0.25,
		Alpha:         0.5,
		Smoothing:     0.75,
		ForceFraction: 0.05,
		CasesGains:    Gains{Kp: -0.5, Ki: -0.25, Kd: -0.5},
		RatioGains:    Gains{Kp: -0.25, Ki: -0.0625, Kd: -0.3125},
	}
}

// Calibration summarizes a calibration run.
type Calibration struct {
	Contacts   float64   // Final contact rate, pinned to the smoothed mean
	Target     float64   // Cumulative target cases
	Simulated  int       // Cumulative simulated cases, forced included
	Forced     int       // Infections seeded directly
	Cases      []int     // Simulated cases per step, forced included
	Trajectory []float64 // Contact rate used on each step
}

// RelativeError returns (simulated - target) / target, or 0 for an empty
// target.
func (c Calibration) RelativeError() float64 {
	if c.Target == 0 {
		return 0
	}
	return (float64(c.Simulated) - c.Target) / c.Target
}

// SeedFromCases infects ceil(target[0]) random agents, giving a calibration
// run the initial conditions of the observed curve.
func (s *Simulation) SeedFromCases(target []float64) int {
	if len(target) == 0 || !(target[0] > 0) {
		return 0
	}
	return s.ContaminateAtRandom(int(math.Ceil(target[0])))
}

// CalibrateSamplerFromCases runs one step per target value with the default
// controller, steering the sampler's contact rate so new cases track target.
func (s *Simulation) CalibrateSamplerFromCases(target []float64) (Calibration, error) {
	return s.Calibrate(target, DefaultCalibration())
}

// Calibrate runs one step per target value, adjusting the sampler's contact
// rate before each step. Two PID loops cooperate: the case loop folds the last
// error into the next step's target, and the ratio loop works in log space on
// realized cases over the adjusted target it was asked for, correcting bias in
// the sampler's expected-pairs estimate. Persistent deficits are seeded
// directly. After the loop the contact rate is pinned to its smoothed mean.
func (s *Simulation) Calibrate(target []float64, cfg CalibrationConfig) (Calibration, error) {
	for i, v := range target {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Calibration{}, fmt.Errorf("%w: value %d is %v", ErrInvalidTarget, i, v)
		}
	}

	casesPID := control.NewPID(cfg.CasesGains.Kp, cfg.CasesGains.Ki, cfg.CasesGains.Kd)
	ratioPID := control.NewPID(cfg.RatioGains.Kp, cfg.RatioGains.Ki, cfg.RatioGains.Kd)
	contacts := s.Sampler.Contacts()
	smoothed := control.NewEMA(cfg.Smoothing, contacts)
	alpha := cfg.Alpha

	res := Calibration{
		Cases:      make([]int, 0, len(target)),
		Trajectory: make([]float64, 0, len(target)),
	}
	var excess, correction float64
	ratio := 1.0

	for _, want := range target {
		res.Target += want

		adjusted := math.Max(0, want+cfg.ExcessDamping*excess+correction)
		expected := s.Sampler.ExpectedInfectionPairs(s.Pop)

		u := ratioPID.Feedback(math.Log(ratio), 1)

		// Without contagious agents the rate has nothing to act on.
		growth := 1.0
		if expected > 0 {
			growth = math.Exp(math.Log((adjusted+alpha)/(expected+alpha)) + u)
			growth = clamp(growth, cfg.MinScale, cfg.MaxScale)
		}
		contacts = clamp(contacts*growth, cfg.MinContacts, cfg.MaxContacts)
		s.Sampler.SetContacts(contacts)
		contacts = s.Sampler.Contacts()
		smoothed.Add(contacts)

		cases := s.step()
		correction = casesPID.Feedback(float64(cases)-want, 1)
		ratio = (float64(cases) + alpha) / (adjusted + alpha)
		excess += want - float64(cases)

		if excess >= 1 && excess > cfg.ForceFraction*res.Target {
			forced := s.ContaminateAtRandom(int(math.Round(excess)))
			excess -= float64(forced)
			casesPID.SetAcc(casesPID.Acc() + float64(forced))
			cases += forced
			res.Forced += forced
		}

		res.Simulated += cases
		res.Cases = append(res.Cases, cases)
		res.Trajectory = append(res.Trajectory, contacts)

		slog.Debug("calibration step",
			"step", s.Step,
			"target", want,
			"adjusted", adjusted,
			"expected", expected,
			"growth", growth,
			"contacts", contacts,
			"cases", cases,
			"excess", excess,
		)
	}

	s.Sampler.SetContacts(smoothed.Mean())
	res.Contacts = s.Sampler.Contacts()
	contactsGauge.Set(res.Contacts)

	s.EmitEvent(Event{
		Step: s.Step,
		Description: fmt.Sprintf("calibrated contacts to %.3f over %d steps (%d forced, error %.1f%%)",
			res.Contacts, len(target), res.Forced, 100*res.RelativeError()),
		Category: "calibration",
		Meta: map[string]any{
			"contacts":  res.Contacts,
			"target":    res.Target,
			"simulated": res.Simulated,
			"forced":    res.Forced,
		},
	})
	slog.Info("calibration complete",
		"steps", len(target),
		"contacts", res.Contacts,
		"target", res.Target,
		"simulated", res.Simulated,
		"forced", res.Forced,
	)
	return res, nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
