package design

import (
	"fmt"
	"math"

	"gsdesign/domain/core"
	"gsdesign/domain/spending"
)

// TestType selects which boundary families exist and whether futility
// stopping constrains the efficacy bound.
type TestType int

const (
	// OneSided has an efficacy bound only.
	OneSided TestType = 1
	// TwoSidedSymmetric shares alpha spending between mirrored bounds.
	TwoSidedSymmetric TestType = 2
	// AsymmetricBinding has a beta-spending futility bound that is assumed to stop the trial.
	AsymmetricBinding TestType = 3
	// AsymmetricNonBinding has a beta-spending futility bound ignored when computing the efficacy bound.
	AsymmetricNonBinding TestType = 4
	// AsymmetricBindingH0 spends astar under the null for a binding lower bound.
	AsymmetricBindingH0 TestType = 5
	// AsymmetricNonBindingH0 spends astar under the null for a non-binding lower bound.
	AsymmetricNonBindingH0 TestType = 6
)

// Valid reports whether t is one of the six design modes.
func (t TestType) Valid() bool { return t >= OneSided && t <= AsymmetricNonBindingH0 }

// HasLower reports whether the design carries a lower bound.
func (t TestType) HasLower() bool { return t != OneSided }

// Binding reports whether lower-bound crossings stop the trial when the
// efficacy bound is computed.
func (t TestType) Binding() bool {
	return t == TwoSidedSymmetric || t == AsymmetricBinding || t == AsymmetricBindingH0
}

// BetaSpending reports whether the lower bound spends beta under the alternative.
func (t TestType) BetaSpending() bool {
	return t == AsymmetricBinding || t == AsymmetricNonBinding
}

func (t TestType) String() string {
	switch t {
	case OneSided:
		return "one-sided"
	case TwoSidedSymmetric:
		return "two-sided symmetric"
	case AsymmetricBinding:
		return "asymmetric, binding futility (beta spending)"
	case AsymmetricNonBinding:
		return "asymmetric, non-binding futility (beta spending)"
	case AsymmetricBindingH0:
		return "asymmetric, binding lower bound (H0 spending)"
	case AsymmetricNonBindingH0:
		return "asymmetric, non-binding lower bound (H0 spending)"
	}
	return fmt.Sprintf("TestType(%d)", int(t))
}

// extremeBound stands in for an absent bound on the Z scale.
const extremeBound = 20.0

// OpenBound is the Z magnitude at or beyond which a bound is treated as
// absent: upper bounds of OpenBound never cross, lower bounds of
// -OpenBound never stop.
const OpenBound = extremeBound

// Options are the numerical controls of the boundary engine.
type Options struct {
	// R sets the density of the integration grid (about 12R points per analysis).
	R int `json:"r" yaml:"r"`
	// Tol is the absolute tolerance on solved bounds and drift.
	Tol float64 `json:"tol" yaml:"tol"`
	// MaxIter caps root-finding iterations for each solve.
	MaxIter int `json:"max_iter" yaml:"max_iter"`
}

// DefaultOptions returns R=18, Tol=1e-9, MaxIter=200.
func DefaultOptions() Options {
	return Options{R: 18, Tol: 1e-9, MaxIter: 200}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if o.R < 1 || o.R > 200 {
		return core.InvalidParameter("options.r", o.R, "grid density must lie in [1, 200]")
	}
	if !(o.Tol > 0) || o.Tol > 1e-3 {
		return core.InvalidParameter("options.tol", o.Tol, "tolerance must lie in (0, 1e-3]")
	}
	if o.MaxIter < 10 {
		return core.InvalidParameter("options.max_iter", o.MaxIter, "at least 10 iterations are required")
	}
	return nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.R == 0 {
		o.R = d.R
	}
	if o.Tol == 0 {
		o.Tol = d.Tol
	}
	if o.MaxIter == 0 {
		o.MaxIter = d.MaxIter
	}
	return o
}

// Config holds the inputs of a group sequential design.
//
// Zero values select defaults: TestType 4, Alpha 0.025, Beta 0.1,
// equally spaced Timing, LDOF upper spending, HSD(-2) lower spending,
// NFix 1 and Astar 1-Alpha for test types 5 and 6.
type Config struct {
	K        int      `json:"k" yaml:"k"`
	TestType TestType `json:"test_type" yaml:"test_type"`
	Alpha    float64  `json:"alpha" yaml:"alpha"`
	Beta     float64  `json:"beta" yaml:"beta"`
	Astar    float64  `json:"astar,omitempty" yaml:"astar,omitempty"`

	// Timing holds information fractions of the interim analyses (K-1
	// values) or of all analyses (K values ending in 1).
	Timing []float64 `json:"timing,omitempty" yaml:"timing,omitempty"`
	// SpendingTime optionally replaces Timing as the argument of the
	// spending functions, e.g. calendar fractions. K values ending in 1.
	SpendingTime []float64 `json:"spending_time,omitempty" yaml:"spending_time,omitempty"`

	Upper spending.Function `json:"upper" yaml:"upper"`
	Lower spending.Function `json:"lower" yaml:"lower"`

	// NFix is the sample size (or event count) of the fixed design with the
	// same alpha and power. Delta, when positive, overrides it with the
	// standardized effect per unit of sample size.
	NFix  float64 `json:"n_fix,omitempty" yaml:"n_fix,omitempty"`
	Delta float64 `json:"delta,omitempty" yaml:"delta,omitempty"`

	Options Options `json:"options" yaml:"options"`
}

// Normalize fills defaults and validates, returning a new Config with
// Timing and SpendingTime expanded to K values.
func (c Config) Normalize() (Config, error) {
	if c.K == 0 {
		c.K = 3
	}
	if c.K < 1 || c.K > 25 {
		return c, core.InvalidParameter("k", c.K, "number of analyses must lie in [1, 25]")
	}
	if c.TestType == 0 {
		c.TestType = AsymmetricNonBinding
	}
	if !c.TestType.Valid() {
		return c, core.InvalidParameter("test_type", int(c.TestType), "test type must lie in [1, 6]")
	}
	if c.Alpha == 0 {
		c.Alpha = 0.025
	}
	if c.Beta == 0 {
		c.Beta = 0.1
	}
	if !(c.Alpha > 0 && c.Alpha < 0.5) {
		return c, core.InvalidParameter("alpha", c.Alpha, "alpha must lie in (0, 0.5)")
	}
	if !(c.Beta > 0 && c.Beta < 1-c.Alpha) {
		return c, core.InvalidParameter("beta", c.Beta, "beta must lie in (0, 1-alpha)")
	}
	if c.TestType == AsymmetricBindingH0 || c.TestType == AsymmetricNonBindingH0 {
		if c.Astar == 0 {
			c.Astar = 1 - c.Alpha
		}
		if !(c.Astar > 0 && c.Astar <= 1-c.Alpha+1e-12) {
			return c, core.InvalidParameter("astar", c.Astar, "astar must lie in (0, 1-alpha]")
		}
	} else {
		c.Astar = 0
	}

	timing, err := expandFractions("timing", c.Timing, c.K, true)
	if err != nil {
		return c, err
	}
	c.Timing = timing
	if len(c.SpendingTime) > 0 {
		st, err := expandFractions("spending_time", c.SpendingTime, c.K, false)
		if err != nil {
			return c, err
		}
		c.SpendingTime = st
	} else {
		c.SpendingTime = nil
	}

	if c.Upper.Family == "" {
		c.Upper = spending.MustNew(spending.LanDeMetsOBF)
	}
	if c.Lower.Family == "" {
		c.Lower = spending.MustNew(spending.HwangShihDeCani, -2)
	}
	if err := c.Upper.Validate(); err != nil {
		return c, err
	}
	if err := c.Lower.Validate(); err != nil {
		return c, err
	}

	if c.Delta < 0 || math.IsNaN(c.Delta) || math.IsInf(c.Delta, 0) {
		return c, core.InvalidParameter("delta", c.Delta, "delta must be a positive finite number")
	}
	if c.Delta > 0 {
		c.NFix = math.Pow(fixedDrift(c.Alpha, c.Beta)/c.Delta, 2)
	}
	if c.NFix == 0 {
		c.NFix = 1
	}
	if !(c.NFix > 0) || math.IsInf(c.NFix, 0) {
		return c, core.InvalidParameter("n_fix", c.NFix, "fixed design sample size must be positive")
	}

	c.Options = c.Options.withDefaults()
	if err := c.Options.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// expandFractions returns K fractions ending in 1. Information timing must
// be strictly increasing; spending time may repeat values.
func expandFractions(field string, in []float64, k int, strict bool) ([]float64, error) {
	if len(in) == 0 {
		out := make([]float64, k)
		for i := range out {
			out[i] = float64(i+1) / float64(k)
		}
		out[k-1] = 1
		return out, nil
	}
	out := append([]float64(nil), in...)
	switch len(out) {
	case k - 1:
		out = append(out, 1)
	case k:
		if math.Abs(out[k-1]-1) > 1e-12 {
			return nil, core.InvalidParameter(field, out[k-1], "final fraction must equal 1")
		}
		out[k-1] = 1
	default:
		return nil, core.InvalidParameter(field, in, "expected %d or %d fractions, got %d", k-1, k, len(in))
	}
	prev := 0.0
	for i, v := range out {
		if math.IsNaN(v) || v <= 0 || v > 1 {
			return nil, core.InvalidParameter(field, v, "fraction %d must lie in (0, 1]", i+1)
		}
		if strict && v <= prev {
			return nil, core.InvalidParameter(field, out, "fractions must be strictly increasing")
		}
		if !strict && v < prev {
			return nil, core.InvalidParameter(field, out, "fractions must be non-decreasing")
		}
		prev = v
	}
	return out, nil
}

// fixedDrift is the drift of a fixed design with the given one-sided
// alpha and power 1-beta.
func fixedDrift(alpha, beta float64) float64 {
	return zQuantile(1-alpha) + zQuantile(1-beta)
}
