package survival

import (
	"math"

	"gsdesign/domain/core"
)

// piece is one constant-hazard period of an arm's follow-up distribution.
// surv is the probability of being event- and dropout-free at start, cum
// the probability of an event before start.
type piece struct {
	start, end float64
	lambda, mu float64
	surv, cum  float64
}

// arm is the follow-up event distribution for one treatment group.
type arm struct {
	pieces []piece
}

func newArm(h HazardProfile, hr float64, dropout []float64) arm {
	var a arm
	start, surv, cum := 0.0, 1.0, 0.0
	for i, l := range h.Lambda {
		end := math.Inf(1)
		if i < len(h.Durations) {
			end = start + h.Durations[i]
		}
		lambda := l * hr
		p := piece{start: start, end: end, lambda: lambda, mu: lambda + dropoutAt(dropout, i), surv: surv, cum: cum}
		a.pieces = append(a.pieces, p)
		if !math.IsInf(end, 1) {
			cum = p.eventProb(end)
			surv *= math.Exp(-p.mu * (end - start))
		}
		start = end
	}
	return a
}

// eventProb is the probability of an event by follow-up x within the piece.
func (p piece) eventProb(x float64) float64 {
	if p.mu == 0 {
		return p.cum
	}
	return p.cum + p.lambda/p.mu*p.surv*(-math.Expm1(-p.mu*(x-p.start)))
}

// integral of eventProb over [lo, hi] inside the piece.
func (p piece) integral(lo, hi float64) float64 {
	if p.mu == 0 {
		return p.cum * (hi - lo)
	}
	f := p.lambda / p.mu * p.surv
	tail := (math.Exp(-p.mu*(lo-p.start)) - math.Exp(-p.mu*(hi-p.start))) / p.mu
	return (hi-lo)*(p.cum+f) - f*tail
}

// EventProb is the probability of an observed event within follow-up x.
func (a arm) EventProb(x float64) float64 {
	if x <= 0 {
		return 0
	}
	for _, p := range a.pieces {
		if x <= p.end {
			return p.eventProb(x)
		}
	}
	return a.pieces[len(a.pieces)-1].eventProb(x)
}

// Ultimate is the probability of an event with unlimited follow-up.
func (a arm) Ultimate() float64 {
	last := a.pieces[len(a.pieces)-1]
	if last.mu == 0 {
		return last.cum
	}
	return last.cum + last.lambda/last.mu*last.surv
}

// Integral is the integral of EventProb over follow-up [x0, x1].
func (a arm) Integral(x0, x1 float64) float64 {
	x0 = math.Max(x0, 0)
	s := 0.0
	for _, p := range a.pieces {
		lo, hi := math.Max(x0, p.start), math.Min(x1, p.end)
		if hi > lo {
			s += p.integral(lo, hi)
		}
	}
	return s
}

// Counts are expected numbers by arm at one calendar time.
type Counts struct {
	Control      float64 `json:"control"`
	Experimental float64 `json:"experimental"`
}

// Total sums both arms.
func (c Counts) Total() float64 { return c.Control + c.Experimental }

// Model combines enrollment, hazards and the treatment effect.
// Ratio is the experimental:control allocation ratio.
type Model struct {
	Accrual AccrualProfile `json:"accrual" yaml:"accrual"`
	Hazard  HazardProfile  `json:"hazard" yaml:"hazard"`
	HR      float64        `json:"hr" yaml:"hr"`
	Ratio   float64        `json:"ratio" yaml:"ratio"`
}

// Validate checks every component of the model.
func (m Model) Validate() error {
	if err := m.Hazard.Validate(); err != nil {
		return err
	}
	if err := m.Accrual.Validate(); err != nil {
		return err
	}
	if !(m.HR > 0) || math.IsInf(m.HR, 0) {
		return core.InvalidParameter("hr", m.HR, "hazard ratio must be positive and finite")
	}
	if !(m.Ratio > 0) || math.IsInf(m.Ratio, 0) {
		return core.InvalidParameter("ratio", m.Ratio, "allocation ratio must be positive and finite")
	}
	return nil
}

func (m Model) arms() (control, experimental arm) {
	de := m.Hazard.DropoutE
	if len(de) == 0 {
		de = m.Hazard.Dropout
	}
	return newArm(m.Hazard, 1, m.Hazard.Dropout), newArm(m.Hazard, m.HR, de)
}

func (m Model) shares() (control, experimental float64) {
	return 1 / (1 + m.Ratio), m.Ratio / (1 + m.Ratio)
}

// Events is the expected number of events by calendar time t. Each
// enrollment period contributes rate times the integral of the event
// probability over the follow-up range its patients have reached.
func (m Model) Events(t float64) Counts {
	ctl, exp := m.arms()
	qc, qe := m.shares()
	var c Counts
	start := 0.0
	for i, d := range m.Accrual.Durations {
		end := start + d
		x1 := math.Max(0, t-start)
		x0 := math.Max(0, t-end)
		if x1 > x0 {
			g := m.Accrual.Rates[i]
			c.Control += g * qc * ctl.Integral(x0, x1)
			c.Experimental += g * qe * exp.Integral(x0, x1)
		}
		start = end
	}
	return c
}

// Enrolled is the expected enrollment by arm at calendar time t.
func (m Model) Enrolled(t float64) Counts {
	n := m.Accrual.EnrolledBy(t)
	qc, qe := m.shares()
	return Counts{Control: n * qc, Experimental: n * qe}
}

// MaxEvents is the expected number of events with unlimited follow-up.
func (m Model) MaxEvents() float64 {
	ctl, exp := m.arms()
	qc, qe := m.shares()
	n := m.Accrual.Total()
	return n * (qc*ctl.Ultimate() + qe*exp.Ultimate())
}

// EventProb is the probability a control or experimental patient has an
// event within follow-up x.
func (m Model) EventProb(x float64) Counts {
	ctl, exp := m.arms()
	return Counts{Control: ctl.EventProb(x), Experimental: exp.EventProb(x)}
}
