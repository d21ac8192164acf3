package design

import (
	"math"

	"gsdesign/domain/core"
	"gsdesign/internal/numeric"

	"gonum.org/v1/gonum/floats"
)

func zQuantile(p float64) float64 { return numeric.NormalQuantile(p) }

// stepper propagates the sub-density of the test statistic on the
// continuation region one analysis at a time. After k analyses h holds
// density times quadrature weight at grid.Z, so sum(h) is the probability
// of not having stopped yet.
type stepper struct {
	theta float64
	r     int
	info  []float64
	k     int
	grid  numeric.Grid
	h     []float64
}

func newStepper(info []float64, theta float64, r int) *stepper {
	return &stepper{theta: theta, r: r, info: info}
}

func (s *stepper) mean(k int) float64 { return s.theta * math.Sqrt(s.info[k]) }

// standardize maps a value on the Z scale at the next analysis onto the
// standard normal scale of the increment from grid point z.
func (s *stepper) standardize(x, z float64) float64 {
	k := s.k
	dI := s.info[k] - s.info[k-1]
	return (x*math.Sqrt(s.info[k]) - z*math.Sqrt(s.info[k-1]) - s.theta*dI) / math.Sqrt(dI)
}

// upper is the probability of reaching the next analysis and having Z >= b.
func (s *stepper) upper(b float64) float64 {
	if s.k == 0 {
		return numeric.NormalSurvival(b - s.mean(0))
	}
	sum := 0.0
	for i, z := range s.grid.Z {
		sum += s.h[i] * numeric.NormalSurvival(s.standardize(b, z))
	}
	return sum
}

// lower is the probability of reaching the next analysis and having Z <= a.
func (s *stepper) lower(a float64) float64 {
	if s.k == 0 {
		return numeric.NormalCDF(a - s.mean(0))
	}
	sum := 0.0
	for i, z := range s.grid.Z {
		sum += s.h[i] * numeric.NormalCDF(s.standardize(a, z))
	}
	return sum
}

// mass is the probability of reaching the next analysis.
func (s *stepper) mass() float64 {
	if s.k == 0 {
		return 1
	}
	return floats.Sum(s.h)
}

// advance conditions on a < Z < b at the next analysis and moves past it.
func (s *stepper) advance(a, b float64) {
	k := s.k
	mu := s.mean(k)
	g := numeric.SimpsonGrid(mu, a, b, s.r)
	h := make([]float64, g.Len())
	if k == 0 {
		for j, z := range g.Z {
			h[j] = g.W[j] * numeric.NormalPDF(z-mu)
		}
	} else {
		scale := math.Sqrt(s.info[k] / (s.info[k] - s.info[k-1]))
		for j, zj := range g.Z {
			sum := 0.0
			for i, zi := range s.grid.Z {
				sum += s.h[i] * numeric.NormalPDF(s.standardize(zj, zi))
			}
			h[j] = g.W[j] * sum * scale
		}
	}
	s.grid, s.h = g, h
	s.k++
}

// Crossing holds boundary crossing probabilities at one drift.
type Crossing struct {
	Theta     float64   `json:"theta"`
	Upper     []float64 `json:"upper"`
	Lower     []float64 `json:"lower"`
	ExpectedN float64   `json:"expected_n"`
}

// TotalUpper is the probability of ever crossing the upper bound.
func (c Crossing) TotalUpper() float64 { return floats.Sum(c.Upper) }

// TotalLower is the probability of ever crossing the lower bound.
func (c Crossing) TotalLower() float64 { return floats.Sum(c.Lower) }

// Probability computes crossing probabilities for bounds a (lower) and b
// (upper) at information levels n when the drift per unit of information is
// theta, so that E[Z_k] = theta*sqrt(n_k). A nil a means no lower bound.
func Probability(n, a, b []float64, theta float64, r int) (Crossing, error) {
	k := len(n)
	if k == 0 || len(b) != k || (a != nil && len(a) != k) {
		return Crossing{}, core.InvalidParameter("bounds", k, "information and bounds must have matching non-zero lengths")
	}
	if r < 1 {
		return Crossing{}, core.InvalidParameter("options.r", r, "grid density must be positive")
	}
	prev := 0.0
	for i, v := range n {
		if !(v > prev) || math.IsInf(v, 0) {
			return Crossing{}, core.InvalidParameter("n", v, "information at analysis %d must be positive and increasing", i+1)
		}
		prev = v
	}
	lo := a
	if lo == nil {
		lo = make([]float64, k)
		for i := range lo {
			lo[i] = -extremeBound
		}
	}

	c := Crossing{Theta: theta, Upper: make([]float64, k), Lower: make([]float64, k)}
	s := newStepper(n, theta, r)
	for i := 0; i < k; i++ {
		c.Upper[i] = s.upper(b[i])
		if lo[i] > -extremeBound {
			c.Lower[i] = s.lower(lo[i])
		}
		if i < k-1 {
			s.advance(lo[i], b[i])
		}
	}
	c.ExpectedN = expectedN(n, c)
	return c, nil
}

func expectedN(n []float64, c Crossing) float64 {
	k := len(n)
	en, stopped := 0.0, 0.0
	for i := 0; i < k-1; i++ {
		p := c.Upper[i] + c.Lower[i]
		en += n[i] * p
		stopped += p
	}
	return en + n[k-1]*math.Max(0, 1-stopped)
}

