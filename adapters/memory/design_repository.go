// Package memory provides in-process adapters used when no database is
// configured and in tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"gsdesign/domain/core"
	"gsdesign/models"
	"gsdesign/ports"
)

// DesignRepository keeps design records in a map. Records are stored as
// JSON so callers never share memory with the store.
type DesignRepository struct {
	mu      sync.RWMutex
	records map[core.DesignID][]byte
	order   []core.DesignID
}

// NewDesignRepository creates an empty in-memory design repository
func NewDesignRepository() ports.DesignRepository {
	return &DesignRepository{records: make(map[core.DesignID][]byte)}
}

func (r *DesignRepository) Save(ctx context.Context, rec *models.DesignRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.ID.IsEmpty() {
		return fmt.Errorf("design record must have an ID")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode design %s: %w", rec.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		r.order = append(r.order, rec.ID)
	}
	r.records[rec.ID] = data
	return nil
}

func (r *DesignRepository) Get(ctx context.Context, id core.DesignID) (*models.DesignRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	data, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("design %s: %w", id, core.ErrDesignNotFound)
	}
	return decode(data)
}

func (r *DesignRepository) List(ctx context.Context, limit int) ([]*models.DesignRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.DesignRecord, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		rec, err := decode(r.records[r.order[i]])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *DesignRepository) Revisions(ctx context.Context, rootID core.DesignID) ([]*models.DesignRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.DesignRecord
	for _, id := range r.order {
		rec, err := decode(r.records[id])
		if err != nil {
			return nil, err
		}
		if rec.RootID == rootID {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("design %s: %w", rootID, core.ErrDesignNotFound)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func decode(data []byte) (*models.DesignRecord, error) {
	var rec models.DesignRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode design record: %w", err)
	}
	return &rec, nil
}
