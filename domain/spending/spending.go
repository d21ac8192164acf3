// Package spending implements error spending functions: maps from an
// information (or calendar) fraction in [0,1] to the cumulative share of a
// total error rate spent by that fraction.
package spending

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gsdesign/domain/core"
	"gsdesign/internal/numeric"
)

// Family names a spending function family.
type Family string

const (
	// LanDeMetsOBF approximates O'Brien-Fleming bounds; optional param rho (default 1).
	LanDeMetsOBF Family = "ldof"
	// LanDeMetsPocock approximates Pocock bounds; no params.
	LanDeMetsPocock Family = "ldpocock"
	// HwangShihDeCani takes gamma; more negative spends less early.
	HwangShihDeCani Family = "hsd"
	// Power (Kim-DeMets) takes rho > 0.
	Power Family = "power"
	// Exponential takes nu in (0, 10].
	Exponential Family = "exponential"
	// Logistic takes (a, b) with b > 0.
	Logistic Family = "logistic"
	// Normal takes (a, b) with b > 0.
	Normal Family = "normal"
	// BetaDist takes (a, b), both > 0.
	BetaDist Family = "beta"
	// Linear takes m timepoints in (0,1) then m cumulative proportions in [0,1].
	Linear Family = "linear"
)

// Families lists the recognised families.
func Families() []Family {
	return []Family{LanDeMetsOBF, LanDeMetsPocock, HwangShihDeCani, Power, Exponential, Logistic, Normal, BetaDist, Linear}
}

func familyList() string {
	names := make([]string, 0, len(Families()))
	for _, f := range Families() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// Function is an immutable spending function: a family plus its parameters.
// The zero value is not valid; use New.
type Function struct {
	Family Family    `json:"family" yaml:"family"`
	Params []float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// New validates the parameters for family and returns the function.
func New(family Family, params ...float64) (Function, error) {
	f := Function{Family: Family(strings.ToLower(string(family))), Params: append([]float64(nil), params...)}
	if err := f.Validate(); err != nil {
		return Function{}, err
	}
	return f, nil
}

// MustNew is New that panics; for package-level defaults and tests.
func MustNew(family Family, params ...float64) Function {
	f, err := New(family, params...)
	if err != nil {
		panic(err)
	}
	return f
}

// Validate checks the family is known and its parameters are in range.
func (f Function) Validate() error {
	p := f.Params
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.InvalidParameter("spending.params", v, "%s param %d is not finite", f.Family, i)
		}
	}
	switch f.Family {
	case LanDeMetsOBF:
		if len(p) > 1 {
			return core.InvalidParameter("spending.params", p, "ldof takes at most one parameter (rho)")
		}
		if len(p) == 1 && p[0] <= 0 {
			return core.InvalidParameter("spending.params", p[0], "ldof rho must be positive")
		}
	case LanDeMetsPocock:
		if len(p) != 0 {
			return core.InvalidParameter("spending.params", p, "ldpocock takes no parameters")
		}
	case HwangShihDeCani:
		if len(p) != 1 {
			return core.InvalidParameter("spending.params", p, "hsd requires exactly one parameter (gamma)")
		}
		if p[0] < -40 || p[0] > 40 {
			return core.InvalidParameter("spending.params", p[0], "hsd gamma must lie in [-40, 40]")
		}
	case Power:
		if len(p) != 1 || p[0] <= 0 {
			return core.InvalidParameter("spending.params", p, "power requires one positive parameter (rho)")
		}
	case Exponential:
		if len(p) != 1 || p[0] <= 0 || p[0] > 10 {
			return core.InvalidParameter("spending.params", p, "exponential requires one parameter nu in (0, 10]")
		}
	case Logistic, Normal:
		if len(p) != 2 || p[1] <= 0 {
			return core.InvalidParameter("spending.params", p, "%s requires parameters (a, b) with b > 0", f.Family)
		}
	case BetaDist:
		if len(p) != 2 || p[0] <= 0 || p[1] <= 0 {
			return core.InvalidParameter("spending.params", p, "beta requires two positive parameters")
		}
	case Linear:
		if len(p) == 0 || len(p)%2 != 0 {
			return core.InvalidParameter("spending.params", p, "linear requires m timepoints followed by m proportions")
		}
		m := len(p) / 2
		ts, ps := p[:m], p[m:]
		for i := 0; i < m; i++ {
			if ts[i] <= 0 || ts[i] >= 1 {
				return core.InvalidParameter("spending.params", ts[i], "linear timepoints must lie in (0, 1)")
			}
			if ps[i] < 0 || ps[i] > 1 {
				return core.InvalidParameter("spending.params", ps[i], "linear proportions must lie in [0, 1]")
			}
			if i > 0 && (ts[i] <= ts[i-1] || ps[i] < ps[i-1]) {
				return core.InvalidParameter("spending.params", p, "linear points must be increasing")
			}
		}
	case "":
		return core.InvalidParameter("spending.family", "", "spending family is required")
	default:
		return core.InvalidParameter("spending.family", f.Family, "unknown spending family (known: %s)", familyList())
	}
	return nil
}

// Spend returns the cumulative error spent by fraction t out of total.
// Spend(total, 0) == 0 and Spend(total, 1) == total for every family.
func (f Function) Spend(total, t float64) (float64, error) {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return 0, core.InvalidParameter("fraction", t, "spending fraction must lie in [0, 1]")
	}
	if total <= 0 || total >= 1 {
		return 0, core.InvalidParameter("total", total, "total error must lie in (0, 1)")
	}
	if err := f.Validate(); err != nil {
		return 0, err
	}
	switch t {
	case 0:
		return 0, nil
	case 1:
		return total, nil
	}
	v := total * f.share(total, t)
	return math.Min(total, math.Max(0, v)), nil
}

// Shares returns Spend(total, t_k) for each fraction.
func (f Function) Shares(total float64, t []float64) ([]float64, error) {
	out := make([]float64, len(t))
	for i, ti := range t {
		v, err := f.Spend(total, ti)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// share returns the proportion of total spent at t in (0,1).
func (f Function) share(total, t float64) float64 {
	p := f.Params
	switch f.Family {
	case LanDeMetsOBF:
		rho := 1.0
		if len(p) == 1 {
			rho = p[0]
		}
		z := numeric.NormalQuantile(1 - total/2)
		return 2 * numeric.NormalSurvival(z/math.Pow(t, rho/2)) / total
	case LanDeMetsPocock:
		return math.Log(1 + (math.E-1)*t)
	case HwangShihDeCani:
		g := p[0]
		if g == 0 {
			return t
		}
		return -math.Expm1(-g*t) / -math.Expm1(-g)
	case Power:
		return math.Pow(t, p[0])
	case Exponential:
		return math.Pow(total, math.Pow(t, -p[0])) / total
	case Logistic:
		x := math.Exp(p[0]) * math.Pow(t/(1-t), p[1])
		return x / (1 + x)
	case Normal:
		return numeric.NormalCDF(p[0] + p[1]*numeric.NormalQuantile(t))
	case BetaDist:
		return numeric.BetaCDF(t, p[0], p[1])
	case Linear:
		m := len(p) / 2
		ts := append([]float64{0}, p[:m]...)
		ps := append([]float64{0}, p[m:]...)
		ts = append(ts, 1)
		ps = append(ps, 1)
		j := sort.SearchFloat64s(ts, t)
		if ts[j] == t {
			return ps[j]
		}
		w := (t - ts[j-1]) / (ts[j] - ts[j-1])
		return ps[j-1] + w*(ps[j]-ps[j-1])
	}
	return math.NaN()
}

// String renders the function the way boundary tables label it.
func (f Function) String() string {
	switch f.Family {
	case LanDeMetsOBF:
		return "Lan-DeMets O'Brien-Fleming"
	case LanDeMetsPocock:
		return "Lan-DeMets Pocock"
	case HwangShihDeCani:
		return fmt.Sprintf("Hwang-Shih-DeCani (gamma = %g)", f.Params[0])
	case Power:
		return fmt.Sprintf("Kim-DeMets power (rho = %g)", f.Params[0])
	case Exponential:
		return fmt.Sprintf("Exponential (nu = %g)", f.Params[0])
	case Logistic:
		return fmt.Sprintf("Logistic (a = %g, b = %g)", f.Params[0], f.Params[1])
	case Normal:
		return fmt.Sprintf("Normal (a = %g, b = %g)", f.Params[0], f.Params[1])
	case BetaDist:
		return fmt.Sprintf("Beta distribution (a = %g, b = %g)", f.Params[0], f.Params[1])
	case Linear:
		return "Piecewise linear"
	}
	return string(f.Family)
}
