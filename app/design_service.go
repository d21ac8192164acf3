package app

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/domain/inference"
	"gsdesign/domain/trial"
	"gsdesign/internal"
	"gsdesign/internal/config"
	"gsdesign/models"
	"gsdesign/ports"
)

// DesignService derives, stores and re-derives group sequential designs and
// answers interim questions about stored designs.
type DesignService struct {
	repo    ports.DesignRepository
	opts    design.Options
	workers int
	timeout time.Duration
	logger  *internal.Logger
}

// NewDesignService creates a design service. Engine options fill in any
// scenario that leaves its numerical controls unset.
func NewDesignService(repo ports.DesignRepository, engine config.EngineConfig, sweep config.SweepConfig) *DesignService {
	workers := sweep.Workers
	if workers < 1 {
		workers = 1
	}
	return &DesignService{
		repo:    repo,
		opts:    engine.Options(),
		workers: workers,
		timeout: sweep.Timeout,
		logger:  internal.DefaultLogger.Named("design-service"),
	}
}

// derive computes the design for a scenario without storing it.
func (s *DesignService) derive(sc models.Scenario) (*design.Design, *trial.Design, error) {
	if err := sc.Validate(); err != nil {
		return nil, nil, err
	}
	if sc.IsSurvival() {
		td, err := trial.Plan(sc.TrialConfig(s.opts))
		if err != nil {
			return nil, nil, err
		}
		return td.Bounds, td, nil
	}
	d, err := design.New(sc.DesignConfig(s.opts))
	if err != nil {
		return nil, nil, err
	}
	return d, nil, nil
}

// Create derives a design from a scenario and stores it as a new root
// revision.
func (s *DesignService) Create(ctx context.Context, sc models.Scenario) (*models.DesignRecord, error) {
	start := time.Now()
	bounds, td, err := s.derive(sc)
	if err != nil {
		s.logger.Warn("scenario %q rejected: %v", sc.Name, err)
		return nil, err
	}
	rec, err := models.NewDesignRecord(sc, bounds, td)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint scenario: %w", err)
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save design: %w", err)
	}
	s.logger.Info("design %s (%q) derived in %s: K=%d max N %.2f", rec.ID, rec.Name, time.Since(start).Round(time.Millisecond), bounds.K(), bounds.MaxN())
	return rec, nil
}

// Get returns a stored design.
func (s *DesignService) Get(ctx context.Context, id core.DesignID) (*models.DesignRecord, error) {
	return s.repo.Get(ctx, id)
}

// List returns the most recent designs first.
func (s *DesignService) List(ctx context.Context, limit int) ([]*models.DesignRecord, error) {
	return s.repo.List(ctx, limit)
}

// Revisions returns every revision of the design family id belongs to,
// oldest first.
func (s *DesignService) Revisions(ctx context.Context, id core.DesignID) ([]*models.DesignRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.Revisions(ctx, rec.RootID)
}

// Update re-derives a stored design from the counts observed at its first
// len(observed) analyses and stores the result as a child revision. For
// time-to-event designs the counts are events.
func (s *DesignService) Update(ctx context.Context, id core.DesignID, observed []float64) (*models.DesignRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var (
		bounds *design.Design
		td     *trial.Design
	)
	if rec.Trial != nil {
		td, err = rec.Trial.Update(observed)
		if err == nil {
			bounds = td.Bounds
		}
	} else {
		bounds, err = rec.Bounds.Update(observed)
	}
	if err != nil {
		s.logger.Warn("update of design %s rejected: %v", id, err)
		return nil, err
	}
	child := rec.Revise(observed, bounds, td)
	if err := s.repo.Save(ctx, child); err != nil {
		return nil, fmt.Errorf("failed to save revision: %w", err)
	}
	s.logger.Info("design %s revised as %s after %d observed analyses", rec.ID, child.ID, len(observed))
	return child, nil
}

// ConditionalPowerRequest describes an interim result and the drift
// assumed afterwards. Theta, when set, overrides Effect.
type ConditionalPowerRequest struct {
	State  inference.State  `json:"state"`
	Effect inference.Effect `json:"effect,omitempty"`
	Theta  *float64         `json:"theta,omitempty"`
	// Z optionally holds the statistics observed so far, for the B-value path.
	Z []float64 `json:"z,omitempty"`
}

// ConditionalPowerResult answers a ConditionalPowerRequest.
type ConditionalPowerResult struct {
	DesignID         core.DesignID        `json:"design_id"`
	Effect           inference.Effect     `json:"effect"`
	Theta            float64              `json:"theta"`
	ConditionalPower float64              `json:"conditional_power"`
	Crossing         *design.Crossing     `json:"crossing,omitempty"`
	Projection       inference.Projection `json:"projection"`
	Path             []inference.Point    `json:"path,omitempty"`
}

// ConditionalPower evaluates an interim result against a stored design.
func (s *DesignService) ConditionalPower(ctx context.Context, id core.DesignID, req ConditionalPowerRequest) (*ConditionalPowerResult, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return conditionalPower(rec, req)
}

func conditionalPower(rec *models.DesignRecord, req ConditionalPowerRequest) (*ConditionalPowerResult, error) {
	d := rec.Bounds
	effect := req.Effect
	var theta float64
	var err error
	if req.Theta != nil {
		theta, effect = *req.Theta, "custom"
	} else {
		if effect == "" {
			effect = inference.EffectDesign
		}
		if theta, err = inference.Drift(d, req.State, effect); err != nil {
			return nil, err
		}
	}
	cp, err := inference.ConditionalPower(d, req.State, theta)
	if err != nil {
		return nil, err
	}
	proj, err := inference.Project(d, req.State)
	if err != nil {
		return nil, err
	}
	out := &ConditionalPowerResult{DesignID: rec.ID, Effect: effect, Theta: theta, ConditionalPower: cp, Projection: proj}
	if req.State.Analysis < d.K() {
		c, err := inference.ConditionalCrossing(d, req.State, theta)
		if err != nil {
			return nil, err
		}
		out.Crossing = &c
	}
	if len(req.Z) > 0 {
		if out.Path, err = inference.Path(d, req.Z); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PredictivePowerRequest describes an interim result and a prior for the
// drift. An explicit Prior wins; otherwise a normal prior with Mean
// (default: the design drift) and SD is discretized on Grid.
type PredictivePowerRequest struct {
	State  inference.State  `json:"state"`
	Prior  *inference.Prior `json:"prior,omitempty"`
	Mean   *float64         `json:"mean,omitempty"`
	SD     float64          `json:"sd,omitempty"`
	Grid   string           `json:"grid,omitempty"` // "legendre" (default) or "simpson"
	Points int              `json:"points,omitempty"`
}

// PredictivePowerResult answers a PredictivePowerRequest.
type PredictivePowerResult struct {
	DesignID            core.DesignID `json:"design_id"`
	Predictive          float64       `json:"predictive_probability"`
	PosteriorPredictive float64       `json:"posterior_predictive_probability"`
	PriorMean           float64       `json:"prior_mean"`
	PosteriorMean       float64       `json:"posterior_mean"`
}

// PredictivePower averages conditional power over a prior, before and
// after updating the prior with the interim result.
func (s *DesignService) PredictivePower(ctx context.Context, id core.DesignID, req PredictivePowerRequest) (*PredictivePowerResult, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d := rec.Bounds
	prior, err := s.prior(d, req)
	if err != nil {
		return nil, err
	}
	pp, err := inference.PredictiveProbability(d, req.State, prior)
	if err != nil {
		return nil, err
	}
	post, err := inference.Posterior(d, req.State, prior)
	if err != nil {
		return nil, err
	}
	ppp, err := inference.PosteriorPredictiveProbability(d, req.State, prior)
	if err != nil {
		return nil, err
	}
	return &PredictivePowerResult{
		DesignID:            rec.ID,
		Predictive:          pp,
		PosteriorPredictive: ppp,
		PriorMean:           mean(prior),
		PosteriorMean:       mean(post),
	}, nil
}

func (s *DesignService) prior(d *design.Design, req PredictivePowerRequest) (inference.Prior, error) {
	if req.Prior != nil {
		return *req.Prior, nil
	}
	m := d.Delta
	if req.Mean != nil {
		m = *req.Mean
	}
	switch req.Grid {
	case "", "legendre":
		n := req.Points
		if n == 0 {
			n = 32
		}
		return inference.LegendreGrid(m, req.SD, n)
	case "simpson":
		r := req.Points
		if r == 0 {
			r = s.opts.R
		}
		return inference.NormalGrid(m, req.SD, r)
	}
	return inference.Prior{}, core.InvalidParameter("grid", req.Grid, "must be legendre or simpson")
}

func mean(p inference.Prior) float64 {
	total := floats.Sum(p.Weight)
	if total == 0 {
		return 0
	}
	return floats.Dot(p.Theta, p.Weight) / total
}
