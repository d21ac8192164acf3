package ports

import (
	"context"

	"gsdesign/domain/core"
	"gsdesign/models"
)

// DesignRepository stores design iterations so they can be compared and
// re-derived later
type DesignRepository interface {
	// Save inserts or replaces a design record
	Save(ctx context.Context, rec *models.DesignRecord) error

	// Get retrieves a design by ID, or core.ErrDesignNotFound
	Get(ctx context.Context, id core.DesignID) (*models.DesignRecord, error)

	// List returns the most recent designs first, optionally limited
	List(ctx context.Context, limit int) ([]*models.DesignRecord, error)

	// Revisions returns every record sharing rootID, oldest first
	Revisions(ctx context.Context, rootID core.DesignID) ([]*models.DesignRecord, error)
}
