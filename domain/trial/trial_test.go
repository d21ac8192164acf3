package trial

import (
	"errors"
	"math"
	"testing"

	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/domain/spending"
	"gsdesign/domain/survival"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenario() Config {
	return Config{
		Design: design.Config{
			K:      3,
			Timing: []float64{0.25, 0.75, 1},
			Alpha:  0.025,
			Beta:   0.15,
			Upper:  spending.MustNew(spending.LanDeMetsOBF),
			Lower:  spending.MustNew(spending.HwangShihDeCani, -7),
		},
		Hazard:      survival.HazardProfile{Lambda: []float64{math.Ln2 / 12}, Dropout: []float64{0.001}},
		Accrual:     survival.AccrualProfile{Durations: []float64{1, 2, 3, 4}, Rates: []float64{1, 1.5, 2.5, 4}},
		HR:          0.75,
		T:           36,
		MinFollowUp: 12,
	}
}

func TestPlanEndToEnd(t *testing.T) {
	d, err := Plan(scenario())
	require.NoError(t, err)
	require.Len(t, d.Analyses, 3)

	for i := 1; i < 3; i++ {
		prev, cur := d.Analyses[i-1], d.Analyses[i]
		assert.Greater(t, cur.N, prev.N, "events increase")
		assert.Less(t, cur.UpperZ, prev.UpperZ, "upper bounds decrease")
		assert.Greater(t, cur.Time, prev.Time, "calendar times increase")
		assert.Greater(t, cur.UpperHR, prev.UpperHR, "hazard ratio bounds move toward 1")
	}
	assert.InDelta(t, 36, d.Analyses[2].Time, 1e-12)
	assert.InDelta(t, d.FixedEvents*d.Bounds.Inflation, d.MaxEvents(), 1e-9)
	assert.Greater(t, d.Bounds.Inflation, 1.0)
	assert.Less(t, d.Analyses[2].UpperHR, 1.0)

	for _, a := range d.Analyses {
		assert.InDelta(t, a.N, a.Events.Total(), 1e-4*a.N, "expected events at analysis %d", a.Index)
		assert.True(t, a.HasLower)
		assert.Less(t, a.LowerHR, 10.0)
		assert.Greater(t, a.LowerHR, a.UpperHR)
		assert.False(t, a.Observed)
	}
	assert.InDelta(t, d.MaxN(), d.Analyses[2].Enrolled.Total(), 1e-9)
	assert.InDelta(t, d.Analyses[0].Enrolled.Control, d.Analyses[0].Enrolled.Experimental, 1e-9)
	assert.InDelta(t, 0.85, d.Bounds.Errors.Power, 1e-4)
}

func TestPlanFixedEventsMatchSchoenfeld(t *testing.T) {
	d, err := Plan(scenario())
	require.NoError(t, err)
	want, err := survival.RequiredEvents(survival.Effect{Alpha: 0.025, Beta: 0.15, HR: 0.75})
	require.NoError(t, err)
	assert.InDelta(t, want, d.FixedEvents, 1e-9)
}

func TestPlanCalendarSchedule(t *testing.T) {
	cfg := scenario()
	cfg.Design.K = 0
	cfg.Design.Timing = nil
	cfg.CalendarTimes = []float64{12, 24}
	cfg.CalendarSpending = true

	d, err := Plan(cfg)
	require.NoError(t, err)
	require.Len(t, d.Analyses, 3)
	assert.Equal(t, []float64{12, 24, 36}, []float64{d.Analyses[0].Time, d.Analyses[1].Time, d.Analyses[2].Time})
	for _, a := range d.Analyses {
		assert.InDelta(t, a.N, a.Events.Total(), 1e-6*a.N)
	}
	require.Len(t, d.Bounds.Config.SpendingTime, 3)
	assert.InDelta(t, 1.0/3, d.Bounds.Config.SpendingTime[0], 1e-12)
	assert.Equal(t, 1.0, d.Bounds.Config.SpendingTime[2])
}

func TestPlanCalendarScheduleErrors(t *testing.T) {
	cfg := scenario()
	cfg.CalendarTimes = []float64{12, 24, 30, 36}
	_, err := Plan(cfg)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter), "k mismatch: %v", err)

	cfg = scenario()
	cfg.Design.K = 0
	cfg.CalendarTimes = []float64{24, 12}
	_, err = Plan(cfg)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter), "decreasing: %v", err)

	cfg = scenario()
	cfg.Design.K = 0
	cfg.CalendarTimes = []float64{12, 24}
	cfg.Mode = survival.SolveDuration
	_, err = Plan(cfg)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter), "mode: %v", err)

	cfg = scenario()
	cfg.CalendarSpending = true
	_, err = Plan(cfg)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter), "spending without times: %v", err)
}

func TestPlanSolveFollowUp(t *testing.T) {
	cfg := scenario()
	cfg.Mode = survival.SolveFollowUp
	cfg.Accrual = survival.AccrualProfile{Durations: []float64{24}, Rates: []float64{30}}
	d, err := Plan(cfg)
	require.NoError(t, err)
	assert.Greater(t, d.Schedule.MinFollowUp, 0.0)
	assert.InDelta(t, d.MaxEvents(), d.Schedule.Events.Total(), 1e-5*d.MaxEvents())
	assert.InDelta(t, d.Schedule.Study(), d.Analyses[2].Time, 1e-12)
}

func TestPlanInfeasibleFollowUp(t *testing.T) {
	cfg := scenario()
	cfg.Mode = survival.SolveFollowUp
	cfg.Accrual = survival.AccrualProfile{Durations: []float64{10}, Rates: []float64{10}}
	_, err := Plan(cfg)
	assert.True(t, errors.Is(err, core.ErrInfeasibleDesign), "%v", err)
}

func TestPlanNonInferiority(t *testing.T) {
	cfg := scenario()
	cfg.HR = 1
	cfg.HR0 = 1.3
	d, err := Plan(cfg)
	require.NoError(t, err)
	for _, a := range d.Analyses {
		assert.Less(t, a.UpperHR, 1.3)
	}
}

func TestUpdateWithPlannedEventsKeepsBounds(t *testing.T) {
	d, err := Plan(scenario())
	require.NoError(t, err)
	planned := append([]float64(nil), d.Bounds.N...)

	u, err := d.Update(planned[:2])
	require.NoError(t, err)
	for i := range d.Analyses {
		assert.InDelta(t, d.Analyses[i].UpperZ, u.Analyses[i].UpperZ, 1e-6)
		assert.InDelta(t, d.Analyses[i].Time, u.Analyses[i].Time, 1e-12)
	}
	assert.True(t, u.Analyses[0].Observed)
	assert.True(t, u.Analyses[1].Observed)
	assert.False(t, u.Analyses[2].Observed)
	assert.False(t, d.Analyses[0].Observed, "original untouched")
}

func TestPlanSingleAnalysisIsFixedDesign(t *testing.T) {
	cfg := scenario()
	cfg.Design.K = 1
	cfg.Design.Timing = nil
	cfg.Design.Beta = 0.1

	d, err := Plan(cfg)
	require.NoError(t, err)
	require.Len(t, d.Analyses, 1)
	assert.InDelta(t, 507.84, d.FixedEvents, 0.01)
	assert.InDelta(t, d.FixedEvents, d.MaxEvents(), 1e-3)
	assert.InDelta(t, 1.0, d.Bounds.Inflation, 1e-6)
	assert.InDelta(t, 768.9, d.MaxN(), 0.5)
	assert.InDelta(t, 0.9, d.Bounds.Errors.Power, 1e-4)
	assert.InDelta(t, 1.95996398, d.Analyses[0].UpperZ, 1e-6)
	assert.InDelta(t, 36, d.Analyses[0].Time, 1e-12)

	u, err := d.Update(d.Bounds.N)
	require.NoError(t, err)
	assert.InDelta(t, 1.95996398, u.Analyses[0].UpperZ, 1e-6)
	assert.True(t, u.Analyses[0].Observed)
}

func TestUpdateRejectsInconsistentEvents(t *testing.T) {
	d, err := Plan(scenario())
	require.NoError(t, err)
	_, err = d.Update([]float64{200, 150})
	assert.True(t, errors.Is(err, core.ErrInconsistentSchedule))
}

func TestPlanRejectsBadModel(t *testing.T) {
	cfg := scenario()
	cfg.HR = 0
	_, err := Plan(cfg)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))

	cfg = scenario()
	cfg.Design.Timing = []float64{0.5, 0.4}
	_, err = Plan(cfg)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
}
