package app

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gsdesign/models"
)

// SweepRow is the outcome of one scenario in a sweep. Error is set, and the
// figures left zero, when the scenario could not be derived.
type SweepRow struct {
	Index int    `json:"index"`
	Name  string `json:"name"`

	// MaxN is the final sample size, or total enrollment for a
	// time-to-event scenario.
	MaxN        float64 `json:"max_n"`
	MaxEvents   float64 `json:"max_events,omitempty"`
	Inflation   float64 `json:"inflation"`
	ExpectedNH0 float64 `json:"expected_n_h0"`
	ExpectedNH1 float64 `json:"expected_n_h1"`
	Power       float64 `json:"power"`
	Duration    float64 `json:"duration,omitempty"`

	Error string `json:"error,omitempty"`
}

// Summary describes one metric across the successful rows of a sweep.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	P10    float64 `json:"p10"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// SweepResult holds the rows in input order and per-metric summaries.
type SweepResult struct {
	Rows      []SweepRow         `json:"rows"`
	Failed    int                `json:"failed"`
	Summary   map[string]Summary `json:"summary"`
	RuntimeMs int64              `json:"runtime_ms"`
}

// Sweep derives every scenario concurrently, with at most the configured
// number of workers. A scenario that fails is reported on its row and does
// not stop the others; only cancellation of ctx fails the sweep. Nothing is
// stored.
func (s *DesignService) Sweep(ctx context.Context, scenarios []models.Scenario) (*SweepResult, error) {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows := make([]SweepRow, len(scenarios))
	sem := semaphore.NewWeighted(int64(s.workers))
	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range scenarios {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = s.sweepRow(i, sc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sweep cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sweep cancelled: %w", err)
	}

	res := &SweepResult{Rows: rows, RuntimeMs: time.Since(start).Milliseconds()}
	for _, r := range rows {
		if r.Error != "" {
			res.Failed++
		}
	}
	summary, err := summarize(rows)
	if err != nil {
		return nil, err
	}
	res.Summary = summary
	s.logger.Info("sweep of %d scenarios finished in %dms (%d failed)", len(rows), res.RuntimeMs, res.Failed)
	return res, nil
}

func (s *DesignService) sweepRow(i int, sc models.Scenario) SweepRow {
	row := SweepRow{Index: i, Name: sc.Name}
	bounds, td, err := s.derive(sc)
	if err != nil {
		s.logger.Debug("sweep row %d (%q) failed: %v", i, sc.Name, err)
		row.Error = err.Error()
		return row
	}
	row.MaxN = bounds.MaxN()
	row.Inflation = bounds.Inflation
	row.ExpectedNH0 = bounds.H0.ExpectedN
	row.ExpectedNH1 = bounds.H1.ExpectedN
	row.Power = bounds.Errors.Power
	if td != nil {
		row.MaxN = td.MaxN()
		row.MaxEvents = td.MaxEvents()
		row.Duration = td.Schedule.Study()
	}
	return row
}

// sweepMetrics names the summarised columns.
var sweepMetrics = []struct {
	name string
	get  func(SweepRow) float64
}{
	{"max_n", func(r SweepRow) float64 { return r.MaxN }},
	{"max_events", func(r SweepRow) float64 { return r.MaxEvents }},
	{"inflation", func(r SweepRow) float64 { return r.Inflation }},
	{"expected_n_h1", func(r SweepRow) float64 { return r.ExpectedNH1 }},
	{"duration", func(r SweepRow) float64 { return r.Duration }},
}

func summarize(rows []SweepRow) (map[string]Summary, error) {
	out := make(map[string]Summary)
	for _, m := range sweepMetrics {
		var data stats.Float64Data
		for _, r := range rows {
			if v := m.get(r); r.Error == "" && v > 0 {
				data = append(data, v)
			}
		}
		if len(data) == 0 {
			continue
		}
		sum, err := describe(data)
		if err != nil {
			return nil, fmt.Errorf("failed to summarise %s: %w", m.name, err)
		}
		out[m.name] = sum
	}
	return out, nil
}

func describe(data stats.Float64Data) (Summary, error) {
	sum := Summary{Count: data.Len()}
	var err error
	if sum.Min, err = stats.Min(data); err != nil {
		return sum, err
	}
	if sum.Max, err = stats.Max(data); err != nil {
		return sum, err
	}
	if sum.Mean, err = stats.Mean(data); err != nil {
		return sum, err
	}
	if sum.Median, err = stats.Median(data); err != nil {
		return sum, err
	}
	if sum.P10, err = stats.PercentileNearestRank(data, 10); err != nil {
		return sum, err
	}
	if sum.P90, err = stats.PercentileNearestRank(data, 90); err != nil {
		return sum, err
	}
	return sum, nil
}
