package app

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"gsdesign/adapters/memory"
	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/domain/inference"
	"gsdesign/domain/spending"
	"gsdesign/domain/survival"
	"gsdesign/internal/config"
	"gsdesign/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDesignRepository records calls to the repository port
type MockDesignRepository struct {
	mock.Mock
}

func (m *MockDesignRepository) Save(ctx context.Context, rec *models.DesignRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockDesignRepository) Get(ctx context.Context, id core.DesignID) (*models.DesignRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*models.DesignRecord)
	return rec, args.Error(1)
}

func (m *MockDesignRepository) List(ctx context.Context, limit int) ([]*models.DesignRecord, error) {
	args := m.Called(ctx, limit)
	recs, _ := args.Get(0).([]*models.DesignRecord)
	return recs, args.Error(1)
}

func (m *MockDesignRepository) Revisions(ctx context.Context, rootID core.DesignID) ([]*models.DesignRecord, error) {
	args := m.Called(ctx, rootID)
	recs, _ := args.Get(0).([]*models.DesignRecord)
	return recs, args.Error(1)
}

func engine() config.EngineConfig {
	o := design.DefaultOptions()
	return config.EngineConfig{GridR: o.R, Tolerance: o.Tol, MaxIter: o.MaxIter}
}

func newService() *DesignService {
	return NewDesignService(memory.NewDesignRepository(), engine(), config.SweepConfig{Workers: 3, Timeout: time.Minute})
}

func plainScenario(name string, nfix float64) models.Scenario {
	return models.Scenario{
		Name: name,
		Design: design.Config{
			K:        3,
			TestType: design.OneSided,
			Upper:    spending.MustNew(spending.LanDeMetsOBF),
			NFix:     nfix,
		},
	}
}

func survivalScenario() models.Scenario {
	return models.Scenario{
		Name: "tte",
		Design: design.Config{
			K:     2,
			Beta:  0.1,
			Upper: spending.MustNew(spending.LanDeMetsOBF),
			Lower: spending.MustNew(spending.HwangShihDeCani, -2),
		},
		Survival: &models.Survival{
			MedianControl: 12,
			Accrual:       survival.AccrualProfile{Durations: []float64{12}, Rates: []float64{1}},
			HR:            0.7,
			T:             30,
			MinFollowUp:   12,
		},
	}
}

func TestCreateStoresRootRevision(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	rec, err := svc.Create(ctx, plainScenario("obf", 100))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, rec.RootID)
	assert.True(t, rec.ParentID.IsEmpty())
	assert.Nil(t, rec.Trial)
	assert.Greater(t, rec.Bounds.MaxN(), 100.0)
	assert.Equal(t, design.DefaultOptions().R, rec.Bounds.Config.Options.R)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Fingerprint, got.Fingerprint)

	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateSurvivalScenario(t *testing.T) {
	svc := newService()
	rec, err := svc.Create(context.Background(), survivalScenario())
	require.NoError(t, err)
	require.NotNil(t, rec.Trial)
	assert.Same(t, rec.Trial.Bounds, rec.Bounds)
	assert.InDelta(t, 30, rec.Trial.Analyses[1].Time, 1e-9)
}

func TestCreateRejectsInvalidScenario(t *testing.T) {
	repo := new(MockDesignRepository)
	svc := NewDesignService(repo, engine(), config.SweepConfig{Workers: 1})

	sc := plainScenario("", 100)
	_, err := svc.Create(context.Background(), sc)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateReportsStorageFailure(t *testing.T) {
	repo := new(MockDesignRepository)
	boom := errors.New("disk full")
	repo.On("Save", mock.Anything, mock.AnythingOfType("*models.DesignRecord")).Return(boom)
	svc := NewDesignService(repo, engine(), config.SweepConfig{Workers: 1})

	_, err := svc.Create(context.Background(), plainScenario("x", 100))
	assert.ErrorIs(t, err, boom)
	repo.AssertExpectations(t)
}

func TestUpdateStoresChildRevision(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	root, err := svc.Create(ctx, plainScenario("obf", 100))
	require.NoError(t, err)

	child, err := svc.Update(ctx, root.ID, []float64{40})
	require.NoError(t, err)
	assert.Equal(t, root.ID, child.ParentID)
	assert.Equal(t, root.ID, child.RootID)
	assert.Equal(t, []float64{40}, child.Observed)
	assert.Equal(t, 40.0, child.Bounds.N[0])

	revs, err := svc.Revisions(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, root.ID, revs[0].ID)
	assert.Equal(t, child.ID, revs[1].ID)
}

func TestUpdateSurvivalUsesEvents(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	root, err := svc.Create(ctx, survivalScenario())
	require.NoError(t, err)

	events := math.Round(root.Bounds.N[0]) + 5
	child, err := svc.Update(ctx, root.ID, []float64{events})
	require.NoError(t, err)
	require.NotNil(t, child.Trial)
	assert.True(t, child.Trial.Analyses[0].Observed)
	assert.Equal(t, events, child.Bounds.N[0])
}

func TestUpdateRejectsInconsistentCounts(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	root, err := svc.Create(ctx, plainScenario("obf", 100))
	require.NoError(t, err)

	_, err = svc.Update(ctx, root.ID, []float64{60, 50})
	assert.ErrorIs(t, err, core.ErrInconsistentSchedule)

	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1, "nothing stored on failure")
}

func TestUpdateUnknownDesign(t *testing.T) {
	_, err := newService().Update(context.Background(), core.NewDesignID(), []float64{10})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestConditionalPower(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	rec, err := svc.Create(ctx, plainScenario("obf", 100))
	require.NoError(t, err)

	state := inference.State{Analysis: 1, Z: 1.5}
	res, err := svc.ConditionalPower(ctx, rec.ID, ConditionalPowerRequest{State: state, Z: []float64{1.5}})
	require.NoError(t, err)
	assert.Equal(t, inference.EffectDesign, res.Effect)
	assert.InDelta(t, rec.Bounds.Delta, res.Theta, 1e-12)
	require.NotNil(t, res.Crossing)
	assert.Len(t, res.Crossing.Upper, 2)
	assert.Len(t, res.Path, 1)

	zero := 0.0
	null, err := svc.ConditionalPower(ctx, rec.ID, ConditionalPowerRequest{State: state, Theta: &zero})
	require.NoError(t, err)
	assert.Less(t, null.ConditionalPower, res.ConditionalPower)

	final, err := svc.ConditionalPower(ctx, rec.ID, ConditionalPowerRequest{State: inference.State{Analysis: 3, Z: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, final.ConditionalPower)
	assert.Nil(t, final.Crossing)

	_, err = svc.ConditionalPower(ctx, rec.ID, ConditionalPowerRequest{State: state, Effect: "optimistic"})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestPredictivePower(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	rec, err := svc.Create(ctx, plainScenario("obf", 100))
	require.NoError(t, err)
	delta := rec.Bounds.Delta

	state := inference.State{Analysis: 1, Z: 0.5}
	res, err := svc.PredictivePower(ctx, rec.ID, PredictivePowerRequest{State: state, SD: delta / 2})
	require.NoError(t, err)
	assert.InDelta(t, delta, res.PriorMean, 1e-6)
	assert.Less(t, res.PosteriorMean, res.PriorMean, "a weak interim pulls the posterior down")
	assert.Less(t, res.PosteriorPredictive, res.Predictive)

	simpson, err := svc.PredictivePower(ctx, rec.ID, PredictivePowerRequest{State: state, SD: delta / 2, Grid: "simpson"})
	require.NoError(t, err)
	assert.InDelta(t, res.Predictive, simpson.Predictive, 1e-3)

	point := inference.Prior{Theta: []float64{delta}, Weight: []float64{1}}
	pm, err := svc.PredictivePower(ctx, rec.ID, PredictivePowerRequest{State: state, Prior: &point})
	require.NoError(t, err)
	cp, err := inference.ConditionalPower(rec.Bounds, state, delta)
	require.NoError(t, err)
	assert.InDelta(t, cp, pm.Predictive, 1e-12)

	_, err = svc.PredictivePower(ctx, rec.ID, PredictivePowerRequest{State: state, SD: 0})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	_, err = svc.PredictivePower(ctx, rec.ID, PredictivePowerRequest{State: state, SD: 1, Grid: "trapezoid"})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}
