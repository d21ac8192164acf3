// Package trial plans time-to-event group sequential trials: the fixed
// design event count is inflated by the boundary design, enrollment is
// solved to produce the final events, and each analysis is placed in
// calendar time.
package trial

import (
	"math"

	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/domain/survival"
)

// Config is the full set of planning assumptions.
type Config struct {
	Design design.Config `json:"design" yaml:"design"`

	Hazard  survival.HazardProfile  `json:"hazard" yaml:"hazard"`
	Accrual survival.AccrualProfile `json:"accrual" yaml:"accrual"`

	// HR is the hazard ratio under the alternative, HR0 under the null
	// (default 1; above 1 for non-inferiority). Ratio is the
	// experimental:control allocation (default 1).
	HR    float64 `json:"hr" yaml:"hr"`
	HR0   float64 `json:"hr0,omitempty" yaml:"hr0,omitempty"`
	Ratio float64 `json:"ratio,omitempty" yaml:"ratio,omitempty"`

	Method survival.Method    `json:"method,omitempty" yaml:"method,omitempty"`
	Mode   survival.SolveMode `json:"mode,omitempty" yaml:"mode,omitempty"`

	// T is the study duration and MinFollowUp the follow-up after the
	// last enrollment. Which of them is an input depends on Mode.
	T           float64 `json:"t,omitempty" yaml:"t,omitempty"`
	MinFollowUp float64 `json:"min_follow_up,omitempty" yaml:"min_follow_up,omitempty"`

	// CalendarTimes schedules the analyses by calendar time instead of
	// Design.Timing: K-1 interim times, or K times ending at T. Only the
	// rate solve mode fixes T in advance, so it is required.
	CalendarTimes []float64 `json:"calendar_times,omitempty" yaml:"calendar_times,omitempty"`
	// CalendarSpending spends error by calendar fraction T_k/T rather than
	// by information fraction. Requires CalendarTimes.
	CalendarSpending bool `json:"calendar_spending,omitempty" yaml:"calendar_spending,omitempty"`
}

func (c Config) normalize() (Config, error) {
	if c.HR0 == 0 {
		c.HR0 = 1
	}
	if c.Ratio == 0 {
		c.Ratio = 1
	}
	if c.Mode == "" {
		c.Mode = survival.SolveRate
	}
	if c.Method == "" {
		c.Method = survival.Schoenfeld
	}
	if err := c.model().Validate(); err != nil {
		return c, err
	}
	if !(c.HR0 > 0) || math.IsInf(c.HR0, 0) {
		return c, core.InvalidParameter("hr0", c.HR0, "null hazard ratio must be positive and finite")
	}
	if c.CalendarSpending && len(c.CalendarTimes) == 0 {
		return c, core.InvalidParameter("calendar_spending", true, "calendar spending needs calendar_times")
	}
	if n := len(c.CalendarTimes); n > 0 {
		if c.Mode != survival.SolveRate {
			return c, core.InvalidParameter("calendar_times", c.CalendarTimes, "calendar scheduling needs the rate solve mode")
		}
		if c.CalendarTimes[n-1] != c.T {
			n++
		}
		if c.Design.K != 0 && c.Design.K != n {
			return c, core.InvalidParameter("calendar_times", c.CalendarTimes, "%d analyses scheduled but k is %d", n, c.Design.K)
		}
		c.Design.K = n
		c.Design.Timing = nil
	}
	dc, err := c.Design.Normalize()
	if err != nil {
		return c, err
	}
	c.Design = dc
	return c, nil
}

func (c Config) model() survival.Model {
	return survival.Model{Accrual: c.Accrual, Hazard: c.Hazard, HR: c.HR, Ratio: c.Ratio}
}

func (c Config) effect() survival.Effect {
	return survival.Effect{
		Alpha:  c.Design.Alpha,
		Beta:   c.Design.Beta,
		Sided:  1,
		HR:     c.HR,
		HR0:    c.HR0,
		Ratio:  c.Ratio,
		Method: c.Method,
	}
}

// Analysis is one row of the trial boundary table.
type Analysis struct {
	design.Analysis

	Time     float64         `json:"time"`
	Events   survival.Counts `json:"events"`
	Enrolled survival.Counts `json:"enrolled"`

	// UpperHR and LowerHR are the observed hazard ratios on the bounds.
	UpperHR float64 `json:"upper_hr"`
	LowerHR float64 `json:"lower_hr,omitempty"`

	// Observed marks analyses whose counts came from Update.
	Observed bool `json:"observed,omitempty"`
}

// Design is a planned time-to-event group sequential trial.
type Design struct {
	Config Config `json:"config"`

	// FixedEvents is the event count of the design without interims.
	FixedEvents float64           `json:"fixed_events"`
	Bounds      *design.Design    `json:"bounds"`
	Schedule    survival.Schedule `json:"schedule"`
	Analyses    []Analysis        `json:"analyses"`
}

// MaxEvents is the planned event count at the final analysis.
func (d *Design) MaxEvents() float64 { return d.Bounds.MaxN() }

// MaxN is the planned total enrollment.
func (d *Design) MaxN() float64 { return d.Schedule.Enrolled }

// Plan derives the boundaries, solves enrollment and places every
// analysis in calendar time.
func Plan(cfg Config) (*Design, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	fixed, err := survival.RequiredEvents(cfg.effect())
	if err != nil {
		return nil, err
	}

	dc := cfg.Design
	dc.NFix = fixed
	dc.Delta = 0
	var times []float64
	if len(cfg.CalendarTimes) > 0 {
		if times, err = calendarTimes(cfg); err != nil {
			return nil, err
		}
		if dc.Timing, err = eventFractions(cfg, times); err != nil {
			return nil, err
		}
		if cfg.CalendarSpending {
			dc.SpendingTime = make([]float64, len(times))
			for i, t := range times {
				dc.SpendingTime[i] = t / cfg.T
			}
			dc.SpendingTime[len(times)-1] = 1
		}
	}

	bounds, err := design.New(dc)
	if err != nil {
		return nil, err
	}
	m := cfg.model()
	sched, err := survival.Solve(m, bounds.MaxN(), cfg.Mode, cfg.T, cfg.MinFollowUp)
	if err != nil {
		return nil, err
	}
	m.Accrual = sched.Accrual
	end := sched.Study()

	if times == nil {
		times = make([]float64, bounds.K())
		for i := range times[:len(times)-1] {
			if times[i], err = survival.TimeToEvents(m, bounds.N[i], end); err != nil {
				return nil, err
			}
		}
		times[len(times)-1] = end
	}

	d := &Design{Config: cfg, FixedEvents: fixed, Bounds: bounds, Schedule: sched}
	d.Analyses = d.rows(bounds, m, times, 0)
	return d, nil
}

// Update re-derives the bounds after observing event counts at the first
// len(events) analyses. Calendar times, enrollment and per-arm events of
// the remaining analyses stay as planned. The receiver is not modified.
func (d *Design) Update(events []float64) (*Design, error) {
	bounds, err := d.Bounds.Update(events)
	if err != nil {
		return nil, err
	}
	m := d.Config.model()
	m.Accrual = d.Schedule.Accrual
	times := make([]float64, len(d.Analyses))
	for i, a := range d.Analyses {
		times[i] = a.Time
	}
	out := &Design{Config: d.Config, FixedEvents: d.FixedEvents, Bounds: bounds, Schedule: d.Schedule}
	out.Analyses = out.rows(bounds, m, times, len(events))
	return out, nil
}

func (d *Design) rows(bounds *design.Design, m survival.Model, times []float64, observed int) []Analysis {
	dir := 1.0
	if d.Config.HR > d.Config.HR0 {
		dir = -1
	}
	base := bounds.Analyses()
	out := make([]Analysis, len(base))
	for i, a := range base {
		row := Analysis{
			Analysis: a,
			Time:     times[i],
			Events:   m.Events(times[i]),
			Enrolled: m.Enrolled(times[i]),
			UpperHR:  survival.BoundHR(dir*a.UpperZ, a.N, d.Config.HR0, d.Config.Ratio),
			Observed: i < observed,
		}
		if a.HasLower {
			row.LowerHR = survival.BoundHR(dir*a.LowerZ, a.N, d.Config.HR0, d.Config.Ratio)
		}
		out[i] = row
	}
	return out
}

// calendarTimes validates cfg.CalendarTimes and returns K times ending at T.
func calendarTimes(cfg Config) ([]float64, error) {
	if !(cfg.T > cfg.MinFollowUp) || math.IsInf(cfg.T, 0) {
		return nil, core.InvalidParameter("t", cfg.T, "study duration must exceed minimum follow-up (%g)", cfg.MinFollowUp)
	}
	times := append([]float64(nil), cfg.CalendarTimes...)
	if times[len(times)-1] != cfg.T {
		times = append(times, cfg.T)
	}
	prev := 0.0
	for i, t := range times {
		if !(t > prev) || t > cfg.T {
			return nil, core.InvalidParameter("calendar_times", t, "analysis %d time must be increasing within (0, %g]", i+1, cfg.T)
		}
		prev = t
	}
	return times, nil
}

// eventFractions returns events(T_k)/events(T) for the enrollment fitted
// to T. Scaling the rates does not change the ratios, so they hold for the
// solved enrollment as well.
func eventFractions(cfg Config, times []float64) ([]float64, error) {
	m := cfg.model()
	m.Accrual = m.Accrual.FitDuration(cfg.T - cfg.MinFollowUp)
	total := m.Events(cfg.T).Total()
	if !(total > 0) {
		return nil, core.Infeasible("accrual", cfg.Accrual, "no events expected by time %g", cfg.T)
	}
	out := make([]float64, len(times))
	prev := 0.0
	for i, t := range times {
		out[i] = m.Events(t).Total() / total
		if !(out[i] > prev) {
			return nil, core.InvalidParameter("calendar_times", t, "no events accrue before analysis %d", i+1)
		}
		prev = out[i]
	}
	out[len(out)-1] = 1
	return out, nil
}
