package inference

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/internal/numeric"
)

// Prior is a discretized distribution for the drift.
type Prior struct {
	Theta  []float64 `json:"theta"`
	Weight []float64 `json:"weight"`
}

// Validate checks the grid is usable: matching lengths, finite values,
// non-negative weights with a positive total.
func (p Prior) Validate() error {
	if len(p.Theta) == 0 {
		return core.InvalidParameter("prior.theta", p.Theta, "prior grid is empty")
	}
	if len(p.Weight) != len(p.Theta) {
		return core.InvalidParameter("prior.weight", len(p.Weight), "need one weight per grid point (%d)", len(p.Theta))
	}
	for i, th := range p.Theta {
		if math.IsNaN(th) || math.IsInf(th, 0) {
			return core.InvalidParameter("prior.theta", th, "grid point %d must be finite", i+1)
		}
		if w := p.Weight[i]; !(w >= 0) || math.IsInf(w, 0) {
			return core.InvalidParameter("prior.weight", w, "weight %d must be finite and non-negative", i+1)
		}
	}
	if !(floats.Sum(p.Weight) > 0) {
		return core.InvalidParameter("prior.weight", p.Weight, "weights must have a positive total")
	}
	return nil
}

// normalized returns a copy of the weights scaled to sum to one.
func (p Prior) normalized() []float64 {
	w := append([]float64(nil), p.Weight...)
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// NormalGrid discretizes a normal prior for the drift with the grid used
// for the boundary recursion, covering mean±6sd.
func NormalGrid(mean, sd float64, r int) (Prior, error) {
	if !(sd > 0) || math.IsInf(sd, 0) || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return Prior{}, core.InvalidParameter("prior.sd", sd, "normal prior needs finite mean and positive sd")
	}
	if r < 1 {
		return Prior{}, core.InvalidParameter("options.r", r, "grid density must be positive")
	}
	g := numeric.SimpsonGrid(0, -6, 6, r)
	return standardGrid(mean, sd, g), nil
}

// LegendreGrid discretizes a normal prior with n Gauss-Legendre points on
// mean±6sd.
func LegendreGrid(mean, sd float64, n int) (Prior, error) {
	if !(sd > 0) || math.IsInf(sd, 0) || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return Prior{}, core.InvalidParameter("prior.sd", sd, "normal prior needs finite mean and positive sd")
	}
	if n < 2 {
		return Prior{}, core.InvalidParameter("prior.points", n, "need at least 2 points")
	}
	return standardGrid(mean, sd, numeric.LegendreGrid(-6, 6, n)), nil
}

// standardGrid maps a quadrature grid on the standard normal scale to
// drift values with normal density weights.
func standardGrid(mean, sd float64, g numeric.Grid) Prior {
	p := Prior{Theta: make([]float64, g.Len()), Weight: make([]float64, g.Len())}
	for i, z := range g.Z {
		p.Theta[i] = mean + sd*z
		p.Weight[i] = g.W[i] * numeric.NormalPDF(z)
	}
	return p
}

// PredictiveProbability averages conditional power over the prior, with
// weights renormalized to sum to one.
func PredictiveProbability(d *design.Design, s State, p Prior) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return average(d, s, p.Theta, p.normalized())
}

// PosteriorPredictiveProbability first updates the prior with the interim
// likelihood, Z_k ~ N(theta*sqrt(I_k), 1), then averages conditional power
// over the posterior.
func PosteriorPredictiveProbability(d *design.Design, s State, p Prior) (float64, error) {
	post, err := Posterior(d, s, p)
	if err != nil {
		return 0, err
	}
	return average(d, s, post.Theta, post.Weight)
}

// Posterior returns the prior reweighted by the interim likelihood and
// normalized.
func Posterior(d *design.Design, s State, p Prior) (Prior, error) {
	if err := p.Validate(); err != nil {
		return Prior{}, err
	}
	ik, _, err := info(d, s)
	if err != nil {
		return Prior{}, err
	}
	rt := math.Sqrt(ik)
	post := Prior{Theta: append([]float64(nil), p.Theta...), Weight: make([]float64, len(p.Weight))}
	for i, th := range p.Theta {
		post.Weight[i] = p.Weight[i] * numeric.NormalPDF(s.Z-th*rt)
	}
	if !(floats.Sum(post.Weight) > 0) {
		return Prior{}, core.InvalidParameter("prior", nil, "prior has no support near the observed statistic")
	}
	post.Weight = post.normalized()
	return post, nil
}

func average(d *design.Design, s State, theta, w []float64) (float64, error) {
	ik, final, err := info(d, s)
	if err != nil {
		return 0, err
	}
	bK := d.UpperBound[d.K()-1]
	terminal := s.Analysis == d.K()
	sum := 0.0
	for i, th := range theta {
		sum += w[i] * conditionalPower(bK, s.Z, ik, final, th, terminal)
	}
	return math.Max(0, math.Min(1, sum)), nil
}
