package design

import (
	"errors"
	"fmt"
	"math"

	"gsdesign/domain/core"
	"gsdesign/internal/numeric"
)

// negligible is the spending increment below which a bound is left open.
const negligible = 1e-15

// boundSet is the output of one boundary derivation.
type boundSet struct {
	upper, lower           []float64 // Z scale; lower is nil for one-sided designs
	upperSpend, lowerSpend []float64 // incremental spending per analysis
}

// engine derives bounds for a normalized Config.
type engine struct {
	cfg  Config
	root numeric.RootOptions
}

func newEngine(cfg Config) *engine {
	ro := numeric.DefaultRootOptions()
	ro.XTol = cfg.Options.Tol
	ro.FTol = math.Max(cfg.Options.Tol, 1e-12)
	ro.MaxIter = cfg.Options.MaxIter
	return &engine{cfg: cfg, root: ro}
}

func increments(cum []float64) []float64 {
	out := make([]float64, len(cum))
	prev := 0.0
	for i, v := range cum {
		out[i] = math.Max(0, v-prev)
		prev = v
	}
	return out
}

// spendingIncrements evaluates both spending functions at spending time st.
func (e *engine) spendingIncrements(st []float64) (up, lo []float64, err error) {
	cfg := e.cfg
	cumUp, err := cfg.Upper.Shares(cfg.Alpha, st)
	if err != nil {
		return nil, nil, err
	}
	up = increments(cumUp)
	if !cfg.TestType.HasLower() || cfg.TestType == TwoSidedSymmetric {
		return up, nil, nil
	}
	total := cfg.Beta
	if !cfg.TestType.BetaSpending() {
		total = cfg.Astar
	}
	cumLo, err := cfg.Lower.Shares(total, st)
	if err != nil {
		return nil, nil, err
	}
	return up, increments(cumLo), nil
}

// derive solves the bounds analysis by analysis. info are the information
// levels (any scale), st the spending times and theta the drift per unit of
// information used for beta spending.
func (e *engine) derive(info, st []float64, theta float64) (*boundSet, error) {
	cfg := e.cfg
	k := len(info)
	upInc, loInc, err := e.spendingIncrements(st)
	if err != nil {
		return nil, err
	}

	r := cfg.Options.R
	tt := cfg.TestType
	// hUp drives the efficacy solve under H0: lower crossings stop the
	// process only for binding designs.
	hUp := newStepper(info, 0, r)
	// hLo drives the lower solve: under theta for beta spending, under H0
	// with both bounds active otherwise.
	var hLo *stepper
	switch {
	case tt.BetaSpending():
		hLo = newStepper(info, theta, r)
	case tt == AsymmetricNonBindingH0:
		hLo = newStepper(info, 0, r)
	case tt == AsymmetricBindingH0:
		hLo = hUp
	}

	bs := &boundSet{upper: make([]float64, k), upperSpend: upInc}
	if tt.HasLower() {
		bs.lower = make([]float64, k)
	}
	if loInc != nil {
		bs.lowerSpend = loInc
	} else if tt == TwoSidedSymmetric {
		bs.lowerSpend = append([]float64(nil), upInc...)
	}

	for i := 0; i < k; i++ {
		b, err := e.solveUpper(hUp, upInc[i], i)
		if err != nil {
			return nil, err
		}
		a := -extremeBound
		switch {
		case tt == OneSided:
		case tt == TwoSidedSymmetric:
			a = -b
		case tt.BetaSpending() && i == k-1:
			a = b
		default:
			a, err = e.solveLower(hLo, loInc[i], b, i)
			if err != nil {
				return nil, err
			}
		}
		bs.upper[i] = b
		if bs.lower != nil {
			bs.lower[i] = a
		}
		if i == k-1 {
			break
		}
		if tt.Binding() {
			hUp.advance(a, b)
		} else {
			hUp.advance(-extremeBound, b)
		}
		if hLo != nil && hLo != hUp {
			hLo.advance(a, b)
		}
	}
	return bs, nil
}

// solveUpper finds b with P(reach analysis i, Z_i >= b) = target.
func (e *engine) solveUpper(s *stepper, target float64, i int) (float64, error) {
	if target < negligible {
		return extremeBound, nil
	}
	avail := s.upper(-extremeBound)
	if target >= avail {
		return 0, core.NonConvergent(fmt.Sprintf("upper[%d]", i+1), target,
			"spending increment exceeds the remaining probability %.3g; check timing and spending function", avail)
	}
	b, err := numeric.Brent(func(x float64) float64 { return s.upper(x) - target }, -extremeBound, extremeBound, e.root)
	if err != nil {
		return 0, wrapRoot(fmt.Sprintf("upper[%d]", i+1), target, err)
	}
	return b, nil
}

// solveLower finds a <= b with P(reach analysis i, Z_i <= a) = target,
// returning b when the target uses up the mass below b.
func (e *engine) solveLower(s *stepper, target, b float64, i int) (float64, error) {
	if target < negligible {
		return -extremeBound, nil
	}
	avail := s.lower(b)
	if target >= avail-1e-9 {
		return b, nil
	}
	a, err := numeric.Brent(func(x float64) float64 { return s.lower(x) - target }, -extremeBound, b, e.root)
	if err != nil {
		return 0, wrapRoot(fmt.Sprintf("lower[%d]", i+1), target, err)
	}
	return a, nil
}

func wrapRoot(field string, value interface{}, err error) error {
	if errors.Is(err, numeric.ErrNoBracket) || errors.Is(err, numeric.ErrMaxIter) {
		return core.NonConvergent(field, value, "%v", err)
	}
	return err
}

// solveDrift finds the drift on normalized information t (t_K = 1) giving
// power 1-beta, together with the bounds at that drift.
func (e *engine) solveDrift(t, st []float64) (float64, *boundSet, error) {
	cfg := e.cfg
	target := 1 - cfg.Beta
	fixed := fixedDrift(cfg.Alpha, cfg.Beta)
	// Power is evaluated on grids that move with the drift, so its
	// discretization error is not smooth in theta.
	ro := e.root
	ro.FTol = 1e-6

	if !cfg.TestType.BetaSpending() {
		bs, err := e.derive(t, st, 0)
		if err != nil {
			return 0, nil, err
		}
		lower := bs.lower
		if !cfg.TestType.HasLower() {
			lower = nil
		}
		power := func(theta float64) float64 {
			c, err := Probability(t, lower, bs.upper, theta, cfg.Options.R)
			if err != nil {
				return math.NaN()
			}
			return c.TotalUpper() - target
		}
		theta, err := numeric.Bracket(power, fixed, 1.2*fixed, 0, ro)
		if err != nil {
			return 0, nil, wrapRoot("drift", fixed, err)
		}
		return theta, bs, nil
	}

	// With beta spending the lower bounds move with the drift; the final
	// lower bound equals the upper one, so power is one minus the total
	// lower crossing probability.
	var solveErr error
	power := func(theta float64) float64 {
		bs, err := e.derive(t, st, theta)
		if err != nil {
			solveErr = err
			return math.NaN()
		}
		c, err := Probability(t, bs.lower, bs.upper, theta, cfg.Options.R)
		if err != nil {
			solveErr = err
			return math.NaN()
		}
		return c.TotalUpper() - target
	}
	theta, err := numeric.Bracket(power, fixed, 1.2*fixed, 0.05*fixed, ro)
	if err != nil {
		if solveErr != nil {
			return 0, nil, solveErr
		}
		return 0, nil, wrapRoot("drift", fixed, err)
	}
	bs, err := e.derive(t, st, theta)
	if err != nil {
		return 0, nil, err
	}
	return theta, bs, nil
}
