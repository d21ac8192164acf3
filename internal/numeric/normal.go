// Package numeric holds the numerical building blocks shared by the
// design engine: the standard normal distribution, bracketed root finding
// and integration grids.
package numeric

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// NormalCDF computes cumulative distribution function for standard normal
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormalSurvival computes 1 - Phi(x) without cancellation in the upper tail.
func NormalSurvival(x float64) float64 {
	return distuv.UnitNormal.Survival(x)
}

// NormalPDF computes the standard normal density
func NormalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// NormalQuantile computes quantile function for standard normal (inverse CDF)
func NormalQuantile(p float64) float64 {
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	}
	return distuv.UnitNormal.Quantile(p)
}

// BetaCDF computes cumulative distribution function for beta distribution
func BetaCDF(x, a, b float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 1
	}
	return distuv.Beta{Alpha: a, Beta: b}.CDF(x)
}
