package design

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gsdesign/domain/core"
	"gsdesign/domain/spending"
	"gsdesign/internal/numeric"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(tt TestType) Config {
	return Config{
		K:        3,
		TestType: tt,
		Alpha:    0.025,
		Beta:     0.1,
		Upper:    spending.MustNew(spending.LanDeMetsOBF),
		Lower:    spending.MustNew(spending.HwangShihDeCani, -2),
	}
}

func TestProbabilitySingleAnalysisClosedForm(t *testing.T) {
	c, err := Probability([]float64{100}, []float64{-0.5}, []float64{2}, 0.2, 18)
	require.NoError(t, err)
	mu := 0.2 * 10
	assert.InDelta(t, numeric.NormalSurvival(2-mu), c.Upper[0], 1e-12)
	assert.InDelta(t, numeric.NormalCDF(-0.5-mu), c.Lower[0], 1e-12)
	assert.Equal(t, 100.0, c.ExpectedN)
}

func TestProbabilityMatchesSimulation(t *testing.T) {
	n := []float64{1, 2, 3}
	a := []float64{-0.5, 0.3, 2.0}
	b := []float64{3.0, 2.4, 2.0}
	theta := 1.2
	c, err := Probability(n, a, b, theta, 18)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	const paths = 200000
	up := make([]float64, 3)
	lo := make([]float64, 3)
	for p := 0; p < paths; p++ {
		s := 0.0
		prev := 0.0
		for k := range n {
			s += theta*(n[k]-prev) + math.Sqrt(n[k]-prev)*rng.NormFloat64()
			prev = n[k]
			z := s / math.Sqrt(n[k])
			if z >= b[k] {
				up[k]++
				break
			}
			if z <= a[k] {
				lo[k]++
				break
			}
		}
	}
	for k := range n {
		assert.InDelta(t, up[k]/paths, c.Upper[k], 0.004, "upper %d", k)
		assert.InDelta(t, lo[k]/paths, c.Lower[k], 0.004, "lower %d", k)
	}
	// Final analysis with a = b accounts for every path.
	assert.InDelta(t, 1.0, c.TotalUpper()+c.TotalLower(), 1e-6)
}

func TestProbabilityRejectsBadInput(t *testing.T) {
	_, err := Probability([]float64{2, 1}, nil, []float64{2, 2}, 0, 18)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
	_, err = Probability([]float64{1, 2}, nil, []float64{2}, 0, 18)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
}

func TestFixedDesign(t *testing.T) {
	d, err := New(Config{K: 1, TestType: OneSided, Alpha: 0.025, Beta: 0.1, NFix: 500})
	require.NoError(t, err)
	assert.InDelta(t, 1.959964, d.UpperBound[0], 1e-5)
	assert.InDelta(t, 1.0, d.Inflation, 1e-6)
	assert.InDelta(t, 500, d.MaxN(), 1e-3)
	assert.InDelta(t, 0.9, d.Errors.Power, 1e-6)
}

func TestOBFShape(t *testing.T) {
	d, err := New(baseConfig(OneSided))
	require.NoError(t, err)

	assert.InDelta(t, 3.7103, d.UpperBound[0], 2e-3)
	assert.InDelta(t, 2.5114, d.UpperBound[1], 2e-3)
	assert.InDelta(t, 1.9930, d.UpperBound[2], 2e-3)
	assert.Greater(t, d.Inflation, 1.0)
	assert.Less(t, d.Inflation, 1.05)
	assert.Nil(t, d.LowerBound)
}

func TestPocockBoundsNearlyEqual(t *testing.T) {
	cfg := baseConfig(OneSided)
	cfg.Upper = spending.MustNew(spending.LanDeMetsPocock)
	d, err := New(cfg)
	require.NoError(t, err)
	lo, hi := d.UpperBound[0], d.UpperBound[0]
	for _, b := range d.UpperBound {
		lo = math.Min(lo, b)
		hi = math.Max(hi, b)
	}
	assert.Less(t, hi-lo, 0.1)
	assert.Greater(t, d.Inflation, 1.1)
}

func TestSpendingSumsToTotals(t *testing.T) {
	for tt := OneSided; tt <= AsymmetricNonBindingH0; tt++ {
		t.Run(tt.String(), func(t *testing.T) {
			d, err := New(baseConfig(tt))
			require.NoError(t, err)

			assert.InDelta(t, d.Config.Alpha, sumOf(d.UpperSpend), 1e-12)
			switch {
			case tt.BetaSpending():
				assert.InDelta(t, d.Config.Beta, sumOf(d.LowerSpend), 1e-12)
			case tt == AsymmetricBindingH0 || tt == AsymmetricNonBindingH0:
				assert.InDelta(t, d.Config.Astar, sumOf(d.LowerSpend), 1e-12)
			}

			// Achieved crossing probabilities match the budgets.
			if tt.Binding() {
				assert.InDelta(t, d.Config.Alpha, d.Errors.AlphaFutilityObeyed, 1e-6)
				assert.GreaterOrEqual(t, d.Errors.AlphaFutilityIgnored, d.Config.Alpha-1e-9)
			} else {
				assert.InDelta(t, d.Config.Alpha, d.Errors.AlphaFutilityIgnored, 1e-6)
				assert.LessOrEqual(t, d.Errors.AlphaFutilityObeyed, d.Config.Alpha+1e-9)
			}
			assert.InDelta(t, 0.9, d.Errors.Power, 1e-5)

			if tt.BetaSpending() {
				assert.InDelta(t, d.Config.Beta, d.H1.TotalLower(), 1e-5)
				assert.Equal(t, d.UpperBound[2], d.LowerBound[2])
				for i := 0; i < 2; i++ {
					assert.InDelta(t, d.LowerSpend[i], d.H1.Lower[i], 1e-6)
				}
			}
			if tt == TwoSidedSymmetric {
				for i := range d.UpperBound {
					assert.Equal(t, -d.UpperBound[i], d.LowerBound[i])
				}
			}
			for i := 0; i < d.K(); i++ {
				if d.LowerBound != nil {
					assert.LessOrEqual(t, d.LowerBound[i], d.UpperBound[i])
				}
				if i > 0 {
					assert.Greater(t, d.N[i], d.N[i-1])
				}
			}
		})
	}
}

func TestAsymmetricH0FinalBoundsMeet(t *testing.T) {
	d, err := New(baseConfig(AsymmetricBindingH0))
	require.NoError(t, err)
	assert.InDelta(t, d.UpperBound[2], d.LowerBound[2], 1e-4)
	assert.InDelta(t, 1.0, d.H0.TotalUpper()+d.H0.TotalLower(), 1e-5)
}

func TestNonBindingUpperIgnoresFutility(t *testing.T) {
	oneSided, err := New(baseConfig(OneSided))
	require.NoError(t, err)
	nonBinding, err := New(baseConfig(AsymmetricNonBinding))
	require.NoError(t, err)
	for i := range oneSided.UpperBound {
		assert.InDelta(t, oneSided.UpperBound[i], nonBinding.UpperBound[i], 1e-8)
	}
	// Futility stopping costs power, so more information is needed.
	assert.Greater(t, nonBinding.Inflation, oneSided.Inflation)
}

func TestConservativeFutilityDoesNotLowerEfficacyBounds(t *testing.T) {
	for _, tt := range []TestType{AsymmetricBinding, AsymmetricNonBinding} {
		aggressive := baseConfig(tt)
		aggressive.Lower = spending.MustNew(spending.HwangShihDeCani, -2)
		conservative := baseConfig(tt)
		conservative.Lower = spending.MustNew(spending.HwangShihDeCani, -7)

		da, err := New(aggressive)
		require.NoError(t, err)
		dc, err := New(conservative)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			assert.GreaterOrEqual(t, dc.UpperBound[i], da.UpperBound[i]-1e-6, "%s analysis %d", tt, i+1)
		}
	}
}

func TestUpdateWithPlannedCountsIsIdentity(t *testing.T) {
	for tt := OneSided; tt <= AsymmetricNonBindingH0; tt++ {
		cfg := baseConfig(tt)
		cfg.NFix = 400
		d, err := New(cfg)
		require.NoError(t, err)

		u, err := d.Update(d.N)
		require.NoError(t, err, tt.String())
		for i := range d.UpperBound {
			assert.InDelta(t, d.UpperBound[i], u.UpperBound[i], 1e-6, "%s upper %d", tt, i+1)
			if d.LowerBound != nil {
				assert.InDelta(t, d.LowerBound[i], u.LowerBound[i], 1e-6, "%s lower %d", tt, i+1)
			}
			assert.InDelta(t, d.N[i], u.N[i], 1e-9)
		}
		assert.InDelta(t, d.Errors.Power, u.Errors.Power, 1e-6)
	}
}

func TestUpdateDoesNotMutate(t *testing.T) {
	cfg := baseConfig(AsymmetricNonBinding)
	cfg.NFix = 400
	d, err := New(cfg)
	require.NoError(t, err)
	before := append([]float64(nil), d.UpperBound...)
	n := append([]float64(nil), d.N...)

	obs := []float64{d.N[0] * 1.2, d.N[1] * 0.95}
	u, err := d.Update(obs)
	require.NoError(t, err)

	assert.Equal(t, before, d.UpperBound)
	assert.Equal(t, n, d.N)
	assert.Equal(t, obs[0], u.N[0])
	assert.Equal(t, d.N[2], u.N[2])
	// Later first look spends more alpha, lowering the first bound.
	assert.Less(t, u.UpperBound[0], d.UpperBound[0])
	assert.InDelta(t, d.Config.Alpha, u.Errors.AlphaFutilityIgnored, 1e-6)
}

func TestUpdateRejectsInconsistentCounts(t *testing.T) {
	cfg := baseConfig(OneSided)
	cfg.NFix = 400
	d, err := New(cfg)
	require.NoError(t, err)

	cases := [][]float64{
		{},
		{100, 90},
		{0},
		{d.MaxN() + 1, d.MaxN() + 2},
		{d.N[0], d.N[1], d.N[2], d.N[2] + 10},
		{d.N[1] + d.N[2]},
	}
	for _, obs := range cases {
		_, err := d.Update(obs)
		assert.True(t, errors.Is(err, core.ErrInconsistentSchedule), "%v: %v", obs, err)
	}
}

func TestUpdateFinalCountMayExceedPlan(t *testing.T) {
	cfg := baseConfig(OneSided)
	cfg.NFix = 400
	d, err := New(cfg)
	require.NoError(t, err)
	u, err := d.Update([]float64{d.N[0], d.N[1], d.MaxN() * 1.1})
	require.NoError(t, err)
	assert.InDelta(t, d.Config.Alpha, u.Errors.AlphaFutilityObeyed, 1e-6)
	assert.InDelta(t, d.UpperBound[0], u.UpperBound[0], 1e-8)
	assert.InDelta(t, d.MaxN()*1.1, u.MaxN(), 1e-9)
}

func TestSpendingTimeDecoupledFromInformation(t *testing.T) {
	cfg := baseConfig(OneSided)
	cfg.SpendingTime = []float64{0.5, 0.8, 1}
	d, err := New(cfg)
	require.NoError(t, err)
	plain, err := New(baseConfig(OneSided))
	require.NoError(t, err)
	assert.Less(t, d.UpperBound[0], plain.UpperBound[0])
	assert.InDelta(t, 0.025, sumOf(d.UpperSpend), 1e-12)
}

func TestConfigValidation(t *testing.T) {
	bad := []Config{
		{K: 3, Timing: []float64{0.5, 0.5}},
		{K: 3, Timing: []float64{0.6, 0.3}},
		{K: 3, Timing: []float64{0.3, 0.6, 0.9}},
		{K: 3, Timing: []float64{0.3}},
		{K: 3, Alpha: 0.6},
		{K: 3, Beta: 0.99},
		{K: 3, TestType: 9},
		{K: 30},
		{K: 3, Upper: spending.Function{Family: spending.HwangShihDeCani}},
		{K: 3, Options: Options{R: -1}},
		{K: 3, Delta: math.Inf(1)},
	}
	for i, c := range bad {
		_, err := New(c)
		assert.True(t, errors.Is(err, core.ErrInvalidParameter), "case %d: %v", i, err)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Config{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.K)
	assert.Equal(t, AsymmetricNonBinding, cfg.TestType)
	assert.Equal(t, []float64{1.0 / 3, 2.0 / 3, 1}, cfg.Timing)
	assert.Equal(t, spending.LanDeMetsOBF, cfg.Upper.Family)
	assert.Equal(t, 18, cfg.Options.R)
}

func TestDeltaSetsFixedSampleSize(t *testing.T) {
	d, err := New(Config{K: 1, TestType: OneSided, Delta: 0.2})
	require.NoError(t, err)
	want := math.Pow((numeric.NormalQuantile(0.975)+numeric.NormalQuantile(0.9))/0.2, 2)
	assert.InDelta(t, want, d.MaxN(), 1e-6)
	assert.InDelta(t, 0.2, d.Delta, 1e-12)
}

func TestAnalysesRows(t *testing.T) {
	d, err := New(baseConfig(AsymmetricNonBinding))
	require.NoError(t, err)
	rows := d.Analyses()
	require.Len(t, rows, 3)
	assert.InDelta(t, d.Errors.Power, rows[2].CumUpperH1, 1e-12)
	assert.True(t, rows[0].HasLower)
	assert.InDelta(t, numeric.NormalSurvival(rows[0].UpperZ), rows[0].UpperP, 1e-15)
	assert.InDelta(t, rows[2].UpperZ, d.UpperB()[2], 1e-12)
	assert.InDelta(t, rows[0].UpperZ*math.Sqrt(d.Timing[0]), d.UpperB()[0], 1e-12)
}

func TestPowerCurve(t *testing.T) {
	d, err := New(baseConfig(OneSided))
	require.NoError(t, err)
	cs, err := d.Probability(0, d.Delta/2, d.Delta, 1.5*d.Delta)
	require.NoError(t, err)
	require.Len(t, cs, 4)
	assert.InDelta(t, 0.025, cs[0].TotalUpper(), 1e-6)
	assert.InDelta(t, 0.9, cs[2].TotalUpper(), 1e-5)
	for i := 1; i < len(cs); i++ {
		assert.Greater(t, cs[i].TotalUpper(), cs[i-1].TotalUpper())
		assert.Less(t, cs[i].ExpectedN, cs[i-1].ExpectedN+1e-9)
	}
}

func sumOf(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
