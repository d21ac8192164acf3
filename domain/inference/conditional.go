// Package inference evaluates interim results against a derived design:
// conditional power, predictive power over a prior for the drift, and
// B-value trend projection.
//
// Drift is on the design's scale: E[Z_k] = theta*sqrt(N_k), so the design's
// alternative is Design.Delta and theta = 0 is the null.
package inference

import (
	"math"
	"strings"

	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/internal/numeric"
)

// State is the observed result at an interim analysis. Analysis is
// 1-based. N overrides the planned information at that analysis when
// positive.
type State struct {
	Analysis int     `json:"analysis" validate:"gte=1"`
	Z        float64 `json:"z"`
	N        float64 `json:"n,omitempty" validate:"gte=0"`
}

// Effect names an assumption about the drift after the interim.
type Effect string

const (
	EffectNull   Effect = "null"
	EffectDesign Effect = "design"
	EffectTrend  Effect = "trend"
)

// info returns (I_k, I_K) for the state, validated against the design.
func info(d *design.Design, s State) (float64, float64, error) {
	if d == nil || d.K() == 0 {
		return 0, 0, core.InvalidParameter("design", nil, "design is empty")
	}
	if s.Analysis < 1 || s.Analysis > d.K() {
		return 0, 0, core.InvalidParameter("analysis", s.Analysis, "must be between 1 and %d", d.K())
	}
	if math.IsNaN(s.Z) || math.IsInf(s.Z, 0) {
		return 0, 0, core.InvalidParameter("z", s.Z, "observed statistic must be finite")
	}
	final := d.MaxN()
	ik := d.N[s.Analysis-1]
	if s.N != 0 {
		if !(s.N > 0) || math.IsInf(s.N, 0) {
			return 0, 0, core.InvalidParameter("n", s.N, "observed information must be positive")
		}
		ik = s.N
	}
	if s.Analysis < d.K() && ik >= final {
		return 0, 0, core.InconsistentSchedule("n", ik, "interim information must be below the planned final %g", final)
	}
	return ik, final, nil
}

// TrendDrift is the drift estimated from the interim result, z/sqrt(I_k).
func TrendDrift(d *design.Design, s State) (float64, error) {
	ik, _, err := info(d, s)
	if err != nil {
		return 0, err
	}
	return s.Z / math.Sqrt(ik), nil
}

// Drift resolves a named effect assumption to a drift value.
func Drift(d *design.Design, s State, e Effect) (float64, error) {
	switch Effect(strings.ToLower(string(e))) {
	case EffectNull:
		if _, _, err := info(d, s); err != nil {
			return 0, err
		}
		return 0, nil
	case EffectDesign, "":
		if _, _, err := info(d, s); err != nil {
			return 0, err
		}
		return d.Delta, nil
	case EffectTrend:
		return TrendDrift(d, s)
	}
	return 0, core.InvalidParameter("effect", e, "must be null, design or trend")
}

// ConditionalPower is the probability that the final statistic exceeds the
// final efficacy bound given the interim result, when the drift after the
// interim is theta. Only the future increment is random, so this is a
// single normal tail. At the final analysis the outcome is already known
// and the result is 1 or 0.
func ConditionalPower(d *design.Design, s State, theta float64) (float64, error) {
	ik, final, err := info(d, s)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(theta) || math.IsInf(theta, 0) {
		return 0, core.InvalidParameter("theta", theta, "drift must be finite")
	}
	return conditionalPower(d.UpperBound[d.K()-1], s.Z, ik, final, theta, s.Analysis == d.K()), nil
}

func conditionalPower(bK, z, ik, final, theta float64, terminal bool) float64 {
	if terminal {
		if z >= bK {
			return 1
		}
		return 0
	}
	rest := final - ik
	x := (bK*math.Sqrt(final) - z*math.Sqrt(ik) - theta*rest) / math.Sqrt(rest)
	return numeric.NormalSurvival(x)
}

// ConditionalCrossing gives the probabilities of first crossing each
// remaining bound, analyses s.Analysis+1..K, given the interim result and
// drift theta. Lower bounds, when the design has them, stop the trial.
// Index i of the result refers to analysis s.Analysis+1+i.
func ConditionalCrossing(d *design.Design, s State, theta float64) (design.Crossing, error) {
	ik, _, err := info(d, s)
	if err != nil {
		return design.Crossing{}, err
	}
	if s.Analysis == d.K() {
		return design.Crossing{}, core.InvalidParameter("analysis", s.Analysis, "no analyses remain after the final")
	}
	rest := d.N[s.Analysis:]
	n := make([]float64, len(rest))
	b := make([]float64, len(rest))
	var a []float64
	if d.LowerBound != nil {
		a = make([]float64, len(rest))
	}
	sk := s.Z * math.Sqrt(ik)
	for i, nj := range rest {
		j := s.Analysis + i
		n[i] = nj - ik
		if !(n[i] > 0) {
			return design.Crossing{}, core.InconsistentSchedule("n", ik, "observed information passes planned analysis %d", j+1)
		}
		b[i] = shift(d.UpperBound[j], nj, sk, n[i])
		if a != nil {
			a[i] = shift(d.LowerBound[j], nj, sk, n[i])
		}
	}
	return design.Probability(n, a, b, theta, d.Config.Options.R)
}

// shift maps a bound at information nj to the scale of the increment after
// the interim. Absent bounds stay absent.
func shift(bound, nj, sk, dn float64) float64 {
	if math.Abs(bound) >= design.OpenBound {
		return bound
	}
	v := (bound*math.Sqrt(nj) - sk) / math.Sqrt(dn)
	return math.Max(-design.OpenBound, math.Min(design.OpenBound, v))
}
