// Package survival models enrollment and piecewise exponential failure and
// dropout to give expected event counts over calendar time, and solves for
// the enrollment needed to reach a target number of events.
package survival

import (
	"math"

	"gsdesign/domain/core"
)

// AccrualProfile is piecewise-constant enrollment: Rates[i] patients per
// unit time during a period of length Durations[i].
type AccrualProfile struct {
	Durations []float64 `json:"durations" yaml:"durations"`
	Rates     []float64 `json:"rates" yaml:"rates"`
}

// Validate checks the profile has matching, non-negative periods.
func (a AccrualProfile) Validate() error {
	if len(a.Rates) == 0 {
		return core.InvalidParameter("accrual.rates", a.Rates, "at least one enrollment period is required")
	}
	if len(a.Durations) != len(a.Rates) {
		return core.InvalidParameter("accrual.durations", a.Durations, "need one duration per rate (%d)", len(a.Rates))
	}
	total, rate := 0.0, 0.0
	for i := range a.Rates {
		if !finiteNonNeg(a.Rates[i]) {
			return core.InvalidParameter("accrual.rates", a.Rates[i], "rate %d must be finite and non-negative", i+1)
		}
		if !finiteNonNeg(a.Durations[i]) {
			return core.InvalidParameter("accrual.durations", a.Durations[i], "duration %d must be finite and non-negative", i+1)
		}
		total += a.Durations[i]
		rate += a.Rates[i]
	}
	if total <= 0 {
		return core.InvalidParameter("accrual.durations", a.Durations, "total enrollment duration must be positive")
	}
	if rate <= 0 {
		return core.InvalidParameter("accrual.rates", a.Rates, "at least one rate must be positive")
	}
	return nil
}

// Duration is the total enrollment time.
func (a AccrualProfile) Duration() float64 {
	s := 0.0
	for _, d := range a.Durations {
		s += d
	}
	return s
}

// Total is the number enrolled by the end of enrollment.
func (a AccrualProfile) Total() float64 {
	return a.EnrolledBy(math.Inf(1))
}

// EnrolledBy is the number enrolled by calendar time t.
func (a AccrualProfile) EnrolledBy(t float64) float64 {
	n, start := 0.0, 0.0
	for i, d := range a.Durations {
		end := start + d
		if t > start {
			n += a.Rates[i] * (math.Min(t, end) - start)
		}
		start = end
	}
	return n
}

// Scaled multiplies every rate by m.
func (a AccrualProfile) Scaled(m float64) AccrualProfile {
	out := AccrualProfile{Durations: append([]float64(nil), a.Durations...), Rates: make([]float64, len(a.Rates))}
	for i, r := range a.Rates {
		out.Rates[i] = r * m
	}
	return out
}

// FitDuration truncates or extends the periods so they total d: periods
// beyond d are cut and a shortfall is added to the final period.
func (a AccrualProfile) FitDuration(d float64) AccrualProfile {
	out := AccrualProfile{}
	start := 0.0
	for i, dur := range a.Durations {
		if start >= d {
			break
		}
		out.Durations = append(out.Durations, math.Min(dur, d-start))
		out.Rates = append(out.Rates, a.Rates[i])
		start += dur
	}
	if start < d {
		out.Durations[len(out.Durations)-1] += d - start
	}
	return out
}

// HazardProfile is piecewise-constant failure and dropout hazards on the
// follow-up time scale. Durations gives the lengths of all but the last
// period, which extends indefinitely, so len(Durations) == len(Lambda)-1.
// Dropout rates may be a single value or one per period; DropoutE gives
// experimental-arm dropout and defaults to Dropout.
type HazardProfile struct {
	Lambda    []float64 `json:"lambda" yaml:"lambda"`
	Durations []float64 `json:"durations,omitempty" yaml:"durations,omitempty"`
	Dropout   []float64 `json:"dropout,omitempty" yaml:"dropout,omitempty"`
	DropoutE  []float64 `json:"dropout_e,omitempty" yaml:"dropout_e,omitempty"`
}

// ExponentialFromMedian returns a single-period profile with the given
// median time to event and dropout rate.
func ExponentialFromMedian(median, dropout float64) HazardProfile {
	return HazardProfile{Lambda: []float64{math.Ln2 / median}, Dropout: []float64{dropout}}
}

// Validate checks period counts and that every rate is non-negative.
func (h HazardProfile) Validate() error {
	if len(h.Lambda) == 0 {
		return core.InvalidParameter("hazard.lambda", h.Lambda, "at least one failure rate is required")
	}
	if len(h.Durations) != len(h.Lambda)-1 {
		return core.InvalidParameter("hazard.durations", h.Durations, "need %d period durations for %d rates", len(h.Lambda)-1, len(h.Lambda))
	}
	for i, d := range h.Durations {
		if !(d > 0) || math.IsInf(d, 0) {
			return core.InvalidParameter("hazard.durations", d, "period %d duration must be positive and finite", i+1)
		}
	}
	for i, l := range h.Lambda {
		if !finiteNonNeg(l) {
			return core.InvalidParameter("hazard.lambda", l, "failure rate %d must be finite and non-negative", i+1)
		}
	}
	for _, set := range []struct {
		name string
		v    []float64
	}{{"hazard.dropout", h.Dropout}, {"hazard.dropout_e", h.DropoutE}} {
		if len(set.v) > 1 && len(set.v) != len(h.Lambda) {
			return core.InvalidParameter(set.name, set.v, "need 0, 1 or %d dropout rates", len(h.Lambda))
		}
		for _, e := range set.v {
			if !finiteNonNeg(e) {
				return core.InvalidParameter(set.name, e, "dropout rate must be finite and non-negative")
			}
		}
	}
	return nil
}

// dropoutAt returns the dropout rate of period i from a 0/1/n-length vector.
func dropoutAt(v []float64, i int) float64 {
	switch len(v) {
	case 0:
		return 0
	case 1:
		return v[0]
	}
	return v[i]
}

func finiteNonNeg(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
