package numeric

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoBracket is returned when a sign change cannot be found.
var ErrNoBracket = errors.New("root not bracketed")

// ErrMaxIter is returned when the iteration cap is reached before tolerance.
var ErrMaxIter = errors.New("iteration limit reached")

// RootOptions controls Brent's method.
type RootOptions struct {
	XTol    float64 // absolute tolerance on the root
	FTol    float64 // accepted |f| at the root
	MaxIter int
	// MaxExpand bounds bracket expansions in Bracket.
	MaxExpand int
}

// DefaultRootOptions matches the engine defaults.
func DefaultRootOptions() RootOptions {
	return RootOptions{XTol: 1e-10, FTol: 1e-9, MaxIter: 200, MaxExpand: 60}
}

// Brent finds x in [a, b] with f(x) = 0. f(a) and f(b) must differ in sign.
func Brent(f func(float64) float64, a, b float64, opt RootOptions) (float64, error) {
	fa, fb := f(a), f(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return math.NaN(), fmt.Errorf("%w: NaN at bracket ends", ErrNoBracket)
	}
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return math.NaN(), fmt.Errorf("%w: f(%g)=%g, f(%g)=%g", ErrNoBracket, a, fa, b, fb)
	}

	c, fc := a, fa
	d := b - a
	e := d
	for i := 0; i < opt.MaxIter; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol := 2*2.220446049250313e-16*math.Abs(b) + 0.5*opt.XTol
		m := 0.5 * (c - b)
		if math.Abs(m) <= tol || fb == 0 {
			if math.Abs(fb) > opt.FTol {
				return b, fmt.Errorf("%w: |f|=%g above tolerance at x=%g", ErrMaxIter, math.Abs(fb), b)
			}
			return b, nil
		}
		if math.Abs(e) >= tol && math.Abs(fa) > math.Abs(fb) {
			var p, q float64
			s := fb / fa
			if a == c {
				p = 2 * m * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*m*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			} else {
				p = -p
			}
			if 2*p < math.Min(3*m*q-math.Abs(tol*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = m
				e = m
			}
		} else {
			d = m
			e = m
		}
		a, fa = b, fb
		if math.Abs(d) > tol {
			b += d
		} else if m > 0 {
			b += tol
		} else {
			b -= tol
		}
		fb = f(b)
		if math.IsNaN(fb) {
			return math.NaN(), fmt.Errorf("%w: NaN at x=%g", ErrMaxIter, b)
		}
	}
	return b, fmt.Errorf("%w: %d iterations", ErrMaxIter, opt.MaxIter)
}

// Bracket widens [lo, hi] geometrically until f changes sign, then solves.
// Expansion moves only the ends whose side still lacks a sign change;
// lo is never moved below floor.
func Bracket(f func(float64) float64, lo, hi, floor float64, opt RootOptions) (float64, error) {
	flo, fhi := f(lo), f(hi)
	for i := 0; flo != 0 && fhi != 0 && (flo > 0) == (fhi > 0); i++ {
		if i >= opt.MaxExpand {
			return math.NaN(), fmt.Errorf("%w: [%g, %g] after %d expansions", ErrNoBracket, lo, hi, opt.MaxExpand)
		}
		width := hi - lo
		if math.Abs(flo) < math.Abs(fhi) && lo > floor {
			lo = math.Max(floor, lo-width)
			flo = f(lo)
		} else {
			hi += width
			fhi = f(hi)
		}
		if math.IsNaN(flo) || math.IsNaN(fhi) {
			return math.NaN(), fmt.Errorf("%w: NaN while expanding", ErrNoBracket)
		}
	}
	return Brent(f, lo, hi, opt)
}
