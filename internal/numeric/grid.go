package numeric

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// Grid is a set of abscissae with quadrature weights.
type Grid struct {
	Z []float64
	W []float64
}

// Len returns the number of grid points.
func (g Grid) Len() int { return len(g.Z) }

// SimpsonGrid builds the Jennison & Turnbull (2000, ch. 19) grid for
// integrating against a normal density centred at mu on [lo, hi]: points
// are dense within mu±3 and spread logarithmically into the tails, the
// interval ends are always included, and Simpson's rule weights are applied
// over the points and their midpoints. r controls density; the result has
// at most 12r-1 points. An empty grid is returned when lo >= hi.
func SimpsonGrid(mu, lo, hi float64, r int) Grid {
	if !(lo < hi) {
		return Grid{}
	}
	m := 6*r - 1
	base := make([]float64, 0, m)
	fr := float64(r)
	for i := 1; i <= m; i++ {
		fi := float64(i)
		var x float64
		switch {
		case i < r:
			x = mu - 3 - 4*math.Log(fr/fi)
		case i <= 5*r:
			x = mu - 3 + 3*(fi-fr)/(2*fr)
		default:
			x = mu + 3 + 4*math.Log(fr/(6*fr-fi))
		}
		base = append(base, x)
	}

	pts := make([]float64, 0, m+2)
	pts = append(pts, lo)
	for _, x := range base {
		if x > lo && x < hi {
			pts = append(pts, x)
		}
	}
	pts = append(pts, hi)

	n := len(pts)
	z := make([]float64, 2*n-1)
	w := make([]float64, 2*n-1)
	z[0] = pts[0]
	for j := 1; j < n; j++ {
		d := pts[j] - pts[j-1]
		z[2*j] = pts[j]
		z[2*j-1] = 0.5 * (pts[j-1] + pts[j])
		w[2*j-2] += d / 6
		w[2*j-1] += 4 * d / 6
		w[2*j] += d / 6
	}
	return Grid{Z: z, W: w}
}

// LegendreGrid returns n Gauss-Legendre nodes and weights on [lo, hi].
func LegendreGrid(lo, hi float64, n int) Grid {
	if n <= 0 || !(lo < hi) {
		return Grid{}
	}
	g := Grid{Z: make([]float64, n), W: make([]float64, n)}
	quad.Legendre{}.FixedLocations(g.Z, g.W, lo, hi)
	return g
}
