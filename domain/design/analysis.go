package design

import (
	"math"

	"gsdesign/internal/numeric"
)

// Analysis is one row of a boundary table.
type Analysis struct {
	Index  int     `json:"index"`
	N      float64 `json:"n"`
	Timing float64 `json:"timing"`

	UpperZ float64 `json:"upper_z"`
	// UpperP is the one-sided nominal p-value at the upper bound.
	UpperP float64 `json:"upper_p"`
	// UpperEffect is the standardized effect Z/sqrt(N) at the upper bound.
	UpperEffect float64 `json:"upper_effect"`
	UpperSpend  float64 `json:"upper_spend"`

	HasLower    bool    `json:"has_lower"`
	LowerZ      float64 `json:"lower_z,omitempty"`
	LowerP      float64 `json:"lower_p,omitempty"`
	LowerEffect float64 `json:"lower_effect,omitempty"`
	LowerSpend  float64 `json:"lower_spend,omitempty"`

	// Cumulative crossing probabilities under H0 and H1.
	CumUpperH0 float64 `json:"cum_upper_h0"`
	CumLowerH0 float64 `json:"cum_lower_h0"`
	CumUpperH1 float64 `json:"cum_upper_h1"`
	CumLowerH1 float64 `json:"cum_lower_h1"`
}

// Analyses returns one row per analysis.
func (d *Design) Analyses() []Analysis {
	rows := make([]Analysis, d.K())
	var u0, l0, u1, l1 float64
	for i := range rows {
		u0 += d.H0.Upper[i]
		l0 += d.H0.Lower[i]
		u1 += d.H1.Upper[i]
		l1 += d.H1.Lower[i]
		rt := math.Sqrt(d.N[i])
		row := Analysis{
			Index:       i + 1,
			N:           d.N[i],
			Timing:      d.Timing[i],
			UpperZ:      d.UpperBound[i],
			UpperP:      numeric.NormalSurvival(d.UpperBound[i]),
			UpperEffect: d.UpperBound[i] / rt,
			UpperSpend:  d.UpperSpend[i],
			CumUpperH0:  u0,
			CumLowerH0:  l0,
			CumUpperH1:  u1,
			CumLowerH1:  l1,
		}
		if d.LowerBound != nil && d.LowerBound[i] > -extremeBound {
			row.HasLower = true
			row.LowerZ = d.LowerBound[i]
			row.LowerP = numeric.NormalSurvival(d.LowerBound[i])
			row.LowerEffect = d.LowerBound[i] / rt
			if d.LowerSpend != nil {
				row.LowerSpend = d.LowerSpend[i]
			}
		}
		rows[i] = row
	}
	return rows
}

// BValue rescales a Z statistic at information fraction t: B = Z*sqrt(t).
func BValue(z, t float64) float64 { return z * math.Sqrt(t) }

// UpperB returns the upper bounds on the B-value scale.
func (d *Design) UpperB() []float64 {
	out := make([]float64, d.K())
	for i, z := range d.UpperBound {
		out[i] = BValue(z, d.Timing[i])
	}
	return out
}

// LowerB returns the lower bounds on the B-value scale, or nil.
func (d *Design) LowerB() []float64 {
	if d.LowerBound == nil {
		return nil
	}
	out := make([]float64, d.K())
	for i, z := range d.LowerBound {
		out[i] = BValue(z, d.Timing[i])
	}
	return out
}
