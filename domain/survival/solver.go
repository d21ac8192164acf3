package survival

import (
	"errors"
	"math"
	"strings"

	"gsdesign/domain/core"
	"gsdesign/internal/numeric"
)

// Method selects the fixed-design event count formula.
type Method string

const (
	Schoenfeld Method = "schoenfeld"
	Freedman   Method = "freedman"
)

// Effect describes the comparison the trial is powered for.
type Effect struct {
	Alpha  float64 `json:"alpha" yaml:"alpha" validate:"gt=0,lt=1"`
	Beta   float64 `json:"beta" yaml:"beta" validate:"gt=0,lt=1"`
	Sided  int     `json:"sided" yaml:"sided" validate:"oneof=0 1 2"`
	HR     float64 `json:"hr" yaml:"hr" validate:"gt=0"`
	HR0    float64 `json:"hr0" yaml:"hr0" validate:"gte=0"`
	Ratio  float64 `json:"ratio" yaml:"ratio" validate:"gte=0"`
	Method Method  `json:"method" yaml:"method"`
}

func (e Effect) normalized() Effect {
	if e.Sided == 0 {
		e.Sided = 1
	}
	if e.HR0 == 0 {
		e.HR0 = 1
	}
	if e.Ratio == 0 {
		e.Ratio = 1
	}
	e.Method = Method(strings.ToLower(string(e.Method)))
	if e.Method == "" {
		e.Method = Schoenfeld
	}
	return e
}

// RequiredEvents is the number of events a fixed design needs to detect
// the hazard ratio with the given error rates.
func RequiredEvents(e Effect) (float64, error) {
	e = e.normalized()
	if !(e.Alpha > 0 && e.Alpha < 1) {
		return 0, core.InvalidParameter("alpha", e.Alpha, "must be in (0, 1)")
	}
	if !(e.Beta > 0 && e.Beta < 1-e.Alpha/float64(e.Sided)) {
		return 0, core.InvalidParameter("beta", e.Beta, "must be in (0, 1-alpha)")
	}
	if e.Sided != 1 && e.Sided != 2 {
		return 0, core.InvalidParameter("sided", e.Sided, "must be 1 or 2")
	}
	if !(e.HR > 0) || !(e.HR0 > 0) || !(e.Ratio > 0) {
		return 0, core.InvalidParameter("hr", e.HR, "hazard ratios and allocation ratio must be positive")
	}
	if e.HR == e.HR0 {
		return 0, core.InvalidParameter("hr", e.HR, "must differ from hr0 (%g)", e.HR0)
	}
	z := numeric.NormalQuantile(1-e.Alpha/float64(e.Sided)) + numeric.NormalQuantile(1-e.Beta)
	r := e.Ratio
	switch e.Method {
	case Schoenfeld:
		l := math.Log(e.HR / e.HR0)
		return z * z * (1 + r) * (1 + r) / (r * l * l), nil
	case Freedman:
		if e.HR0 != 1 {
			return 0, core.InvalidParameter("method", e.Method, "freedman requires hr0 = 1")
		}
		return z * z * (1 + r*e.HR) * (1 + r*e.HR) / (r * (1 - e.HR) * (1 - e.HR)), nil
	}
	return 0, core.InvalidParameter("method", e.Method, "unknown method")
}

// Drift is the standardized effect per event, so a design with fixed
// events D has drift sqrt(D)*Drift.
func (e Effect) Drift() float64 {
	e = e.normalized()
	return math.Abs(math.Log(e.HR/e.HR0)) * math.Sqrt(e.Ratio) / (1 + e.Ratio)
}

// BoundHR converts a standardized bound z at d events to the hazard ratio
// that would be observed on the boundary.
func BoundHR(z, d, hr0, ratio float64) float64 {
	if hr0 == 0 {
		hr0 = 1
	}
	if ratio == 0 {
		ratio = 1
	}
	c := 1 / (1 + ratio)
	return hr0 * math.Exp(-z/math.Sqrt(d*c*(1-c)))
}

// SolveMode selects which enrollment quantity is derived.
type SolveMode string

const (
	SolveRate     SolveMode = "rate"
	SolveDuration SolveMode = "duration"
	SolveFollowUp SolveMode = "followup"
)

// Schedule is a solved enrollment plan.
type Schedule struct {
	Accrual     AccrualProfile `json:"accrual"`
	Duration    float64        `json:"duration"`
	MinFollowUp float64        `json:"min_follow_up"`
	Enrolled    float64        `json:"enrolled"`
	Events      Counts         `json:"events"`
}

// Study is the time origin of the final analysis.
func (s Schedule) Study() float64 { return s.Duration + s.MinFollowUp }

// Solve finds the enrollment giving the target expected number of events
// at the final analysis.
//
// SolveRate keeps the period shape, fits it to duration T-minFollowUp and
// scales the rates. SolveDuration keeps the rates and stretches the last
// period. SolveFollowUp keeps the enrollment and finds the minimum
// follow-up; T is ignored.
func Solve(m Model, target float64, mode SolveMode, T, minFollowUp float64) (Schedule, error) {
	if err := m.Validate(); err != nil {
		return Schedule{}, err
	}
	if !(target > 0) || math.IsInf(target, 0) {
		return Schedule{}, core.InvalidParameter("events", target, "target events must be positive and finite")
	}
	if !(minFollowUp >= 0) || math.IsInf(minFollowUp, 0) {
		return Schedule{}, core.InvalidParameter("min_follow_up", minFollowUp, "must be finite and non-negative")
	}
	switch mode {
	case SolveRate, "":
		return solveRate(m, target, T, minFollowUp)
	case SolveDuration:
		return solveDuration(m, target, minFollowUp)
	case SolveFollowUp:
		return solveFollowUp(m, target)
	}
	return Schedule{}, core.InvalidParameter("mode", mode, "unknown solve mode")
}

func solveRate(m Model, target, T, minFollowUp float64) (Schedule, error) {
	a := T - minFollowUp
	if !(a > 0) || math.IsInf(T, 0) {
		return Schedule{}, core.InvalidParameter("t", T, "study duration must exceed minimum follow-up (%g)", minFollowUp)
	}
	m.Accrual = m.Accrual.FitDuration(a)
	unit := m.Events(T).Total()
	if !(unit > 0) {
		return Schedule{}, core.Infeasible("accrual.rates", m.Accrual.Rates, "enrollment produces no events by time %g", T)
	}
	m.Accrual = m.Accrual.Scaled(target / unit)
	return schedule(m, a, minFollowUp), nil
}

func solveDuration(m Model, target, minFollowUp float64) (Schedule, error) {
	base := m.Accrual
	if base.Rates[len(base.Rates)-1] <= 0 {
		return Schedule{}, core.Infeasible("accrual.rates", base.Rates, "final enrollment rate must be positive to extend enrollment")
	}
	f := func(a float64) float64 {
		mm := m
		mm.Accrual = base.FitDuration(a)
		return mm.Events(a+minFollowUp).Total()/target - 1
	}
	opt := numeric.DefaultRootOptions()
	opt.FTol = 1e-8
	lo := math.Min(1e-6, base.Duration())
	a, err := numeric.Bracket(f, lo, math.Max(base.Duration(), 1), lo, opt)
	if err != nil {
		return Schedule{}, solveErr("accrual.durations", err)
	}
	m.Accrual = base.FitDuration(a)
	return schedule(m, a, minFollowUp), nil
}

func solveFollowUp(m Model, target float64) (Schedule, error) {
	a := m.Accrual.Duration()
	if max := m.MaxEvents(); target >= max {
		return Schedule{}, core.Infeasible("events", target, "enrollment can produce at most %.4g events", max)
	}
	if at := m.Events(a).Total(); at >= target {
		return Schedule{}, core.Infeasible("min_follow_up", at, "target is reached before enrollment ends, follow-up would be negative")
	}
	f := func(fu float64) float64 { return m.Events(a+fu).Total()/target - 1 }
	opt := numeric.DefaultRootOptions()
	opt.FTol = 1e-8
	fu, err := numeric.Bracket(f, 0, math.Max(a, 1), 0, opt)
	if err != nil {
		return Schedule{}, solveErr("min_follow_up", err)
	}
	return schedule(m, a, fu), nil
}

// TimeToEvents is the calendar time at which the expected event count
// reaches target, searched within (0, horizon].
func TimeToEvents(m Model, target, horizon float64) (float64, error) {
	if !(target > 0) {
		return 0, core.InvalidParameter("events", target, "target events must be positive")
	}
	if at := m.Events(horizon).Total(); at < target*(1-1e-9) {
		return 0, core.Infeasible("events", target, "only %.4g events expected by time %g", at, horizon)
	}
	f := func(t float64) float64 { return m.Events(t).Total()/target - 1 }
	if f(horizon) <= 0 {
		return horizon, nil
	}
	opt := numeric.DefaultRootOptions()
	opt.FTol = 1e-8
	t, err := numeric.Brent(f, 0, horizon, opt)
	if err != nil {
		return 0, solveErr("time", err)
	}
	return t, nil
}

func schedule(m Model, duration, fu float64) Schedule {
	return Schedule{
		Accrual:     m.Accrual,
		Duration:    duration,
		MinFollowUp: fu,
		Enrolled:    m.Accrual.Total(),
		Events:      m.Events(duration + fu),
	}
}

func solveErr(field string, err error) error {
	if errors.Is(err, numeric.ErrNoBracket) {
		return core.Infeasible(field, nil, "no solution: %v", err)
	}
	return core.NonConvergent(field, nil, "event solve: %v", err)
}
