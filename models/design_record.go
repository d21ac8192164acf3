package models

import (
	"time"

	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/domain/trial"
)

// DesignRecord is one stored design iteration. A re-derived design is a
// new record whose ParentID is the design it was updated from; RootID is
// shared by every revision of the same original design.
type DesignRecord struct {
	ID          core.DesignID `json:"id" db:"id"`
	RootID      core.DesignID `json:"root_id" db:"root_id"`
	ParentID    core.DesignID `json:"parent_id,omitempty" db:"parent_id"`
	Name        string        `json:"name" db:"name"`
	Fingerprint core.Hash     `json:"fingerprint" db:"fingerprint"`

	Scenario Scenario       `json:"scenario"`
	Bounds   *design.Design `json:"bounds"`
	Trial    *trial.Design  `json:"trial,omitempty"`
	// Observed holds the counts a revision was re-derived from.
	Observed []float64 `json:"observed,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewDesignRecord wraps a freshly derived design as a root revision.
func NewDesignRecord(sc Scenario, bounds *design.Design, td *trial.Design) (*DesignRecord, error) {
	fp, err := core.Fingerprint(sc)
	if err != nil {
		return nil, err
	}
	id := core.NewDesignID()
	return &DesignRecord{
		ID:          id,
		RootID:      id,
		Name:        sc.Name,
		Fingerprint: fp,
		Scenario:    sc,
		Bounds:      bounds,
		Trial:       td,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Revise returns a child record holding a re-derived design.
func (r *DesignRecord) Revise(observed []float64, bounds *design.Design, td *trial.Design) *DesignRecord {
	return &DesignRecord{
		ID:          core.NewDesignID(),
		RootID:      r.RootID,
		ParentID:    r.ID,
		Name:        r.Name,
		Fingerprint: r.Fingerprint,
		Scenario:    r.Scenario,
		Bounds:      bounds,
		Trial:       td,
		Observed:    append([]float64(nil), observed...),
		CreatedAt:   time.Now().UTC(),
	}
}
