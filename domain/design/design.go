// Package design derives group sequential boundaries from error spending
// functions and computes the sample size inflation they require.
//
// The joint distribution of the sequence of test statistics is handled by
// propagating a discretized sub-density across analyses (Jennison &
// Turnbull, 2000, ch. 19) rather than by multivariate integration.
package design

import (
	"math"

	"gsdesign/domain/core"
)

// Design is the result of a boundary derivation. It is never mutated after
// construction; Update returns a new Design.
type Design struct {
	Config Config `json:"config"`

	// N holds the sample size (or event count) at each analysis.
	N []float64 `json:"n"`
	// Timing holds N_k / N_K.
	Timing []float64 `json:"timing"`
	// Delta is the standardized effect per unit of N: E[Z_k] = Delta*sqrt(N_k)
	// under the alternative.
	Delta float64 `json:"delta"`
	// Inflation is N_K / NFix.
	Inflation float64 `json:"inflation"`

	UpperBound []float64 `json:"upper_bound"`
	LowerBound []float64 `json:"lower_bound,omitempty"`
	UpperSpend []float64 `json:"upper_spend"`
	LowerSpend []float64 `json:"lower_spend,omitempty"`

	// H0 and H1 are crossing probabilities under no effect and under Delta.
	H0 Crossing `json:"h0"`
	H1 Crossing `json:"h1"`

	Errors ErrorSummary `json:"errors"`
}

// ErrorSummary separates the Type I error with and without futility
// stopping. The design controls Alpha under its own binding assumption;
// the other figure is what a reader of a boundary table must be told.
type ErrorSummary struct {
	// AlphaFutilityIgnored is the H0 upper crossing probability when lower
	// bounds never stop the trial.
	AlphaFutilityIgnored float64 `json:"alpha_futility_ignored"`
	// AlphaFutilityObeyed is the H0 upper crossing probability when every
	// lower crossing stops the trial.
	AlphaFutilityObeyed float64 `json:"alpha_futility_obeyed"`
	// Power is the upper crossing probability under the alternative.
	Power float64 `json:"power"`
}

// K returns the number of analyses.
func (d *Design) K() int { return len(d.N) }

// TestType returns the design mode.
func (d *Design) TestType() TestType { return d.Config.TestType }

// MaxN is the sample size at the final analysis.
func (d *Design) MaxN() float64 { return d.N[len(d.N)-1] }

// New normalizes cfg, derives the bounds and solves the sample size.
func New(cfg Config) (*Design, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	e := newEngine(cfg)
	st := cfg.SpendingTime
	if st == nil {
		st = cfg.Timing
	}
	theta, bs, err := e.solveDrift(cfg.Timing, st)
	if err != nil {
		return nil, err
	}
	fixed := fixedDrift(cfg.Alpha, cfg.Beta)
	inflation := (theta / fixed) * (theta / fixed)
	n := make([]float64, cfg.K)
	for i, t := range cfg.Timing {
		n[i] = t * cfg.NFix * inflation
	}
	return assemble(cfg, n, fixed/math.Sqrt(cfg.NFix), bs)
}

// DeriveWithInformation computes bounds for fixed sample sizes n (no sample
// size solve). st optionally gives spending times; nil uses n/n_K. delta is
// the standardized effect per unit of n used by beta spending and for the
// alternative-hypothesis operating characteristics.
func DeriveWithInformation(cfg Config, n, st []float64, delta float64) (*Design, error) {
	if len(n) == 0 {
		return nil, core.InvalidParameter("n", n, "at least one analysis is required")
	}
	if !(delta > 0) || math.IsInf(delta, 0) {
		return nil, core.InvalidParameter("delta", delta, "delta must be positive and finite")
	}
	prev := 0.0
	for i, v := range n {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= prev {
			return nil, core.InvalidParameter("n", v, "sample size at analysis %d must be positive and increasing", i+1)
		}
		prev = v
	}
	k := len(n)
	cfg.K = k
	cfg.Timing = make([]float64, k)
	for i, v := range n {
		cfg.Timing[i] = v / n[k-1]
	}
	cfg.SpendingTime = st
	cfg.Delta = 0
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	spend := cfg.SpendingTime
	if spend == nil {
		spend = cfg.Timing
	}
	bs, err := newEngine(cfg).derive(n, spend, delta)
	if err != nil {
		return nil, err
	}
	return assemble(cfg, append([]float64(nil), n...), delta, bs)
}

// assemble fills the derived fields and operating characteristics.
func assemble(cfg Config, n []float64, delta float64, bs *boundSet) (*Design, error) {
	d := &Design{
		Config:     cfg,
		N:          n,
		Timing:     make([]float64, len(n)),
		Delta:      delta,
		Inflation:  n[len(n)-1] / cfg.NFix,
		UpperBound: bs.upper,
		LowerBound: bs.lower,
		UpperSpend: bs.upperSpend,
		LowerSpend: bs.lowerSpend,
	}
	for i, v := range n {
		d.Timing[i] = v / n[len(n)-1]
	}

	var err error
	if d.H0, err = Probability(n, d.LowerBound, d.UpperBound, 0, cfg.Options.R); err != nil {
		return nil, err
	}
	if d.H1, err = Probability(n, d.LowerBound, d.UpperBound, delta, cfg.Options.R); err != nil {
		return nil, err
	}
	d.Errors.Power = d.H1.TotalUpper()
	d.Errors.AlphaFutilityObeyed = d.H0.TotalUpper()
	if cfg.TestType.HasLower() {
		ignored, err := Probability(n, nil, d.UpperBound, 0, cfg.Options.R)
		if err != nil {
			return nil, err
		}
		d.Errors.AlphaFutilityIgnored = ignored.TotalUpper()
	} else {
		d.Errors.AlphaFutilityIgnored = d.Errors.AlphaFutilityObeyed
	}
	return d, nil
}

// Probability evaluates crossing probabilities of this design at each drift
// in thetas (per unit of N), e.g. for power curves.
func (d *Design) Probability(thetas ...float64) ([]Crossing, error) {
	out := make([]Crossing, 0, len(thetas))
	for _, th := range thetas {
		if math.IsNaN(th) || math.IsInf(th, 0) {
			return nil, core.InvalidParameter("theta", th, "drift must be finite")
		}
		c, err := Probability(d.N, d.LowerBound, d.UpperBound, th, d.Config.Options.R)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
