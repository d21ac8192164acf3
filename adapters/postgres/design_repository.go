package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gsdesign/domain/core"
	"gsdesign/models"
	"gsdesign/ports"

	"github.com/jmoiron/sqlx"
)

// DesignRepositoryImpl implements DesignRepository for PostgreSQL. The
// scenario, bounds and trial are stored as JSONB.
type DesignRepositoryImpl struct {
	db *sqlx.DB
}

// NewDesignRepository creates a new PostgreSQL design repository
func NewDesignRepository(db *sqlx.DB) ports.DesignRepository {
	return &DesignRepositoryImpl{db: db}
}

// designRow is the flat table shape of a design record
type designRow struct {
	ID          string         `db:"id"`
	RootID      string         `db:"root_id"`
	ParentID    sql.NullString `db:"parent_id"`
	Name        string         `db:"name"`
	Fingerprint string         `db:"fingerprint"`
	Scenario    []byte         `db:"scenario"`
	Bounds      []byte         `db:"bounds"`
	Trial       []byte         `db:"trial"`
	Observed    []byte         `db:"observed"`
	CreatedAt   time.Time      `db:"created_at"`
}

const selectColumns = `
	SELECT id, root_id, parent_id, name, fingerprint, scenario, bounds, trial, observed, created_at
	FROM design_revisions`

// Save saves a design record, replacing the payload of an existing ID
func (r *DesignRepositoryImpl) Save(ctx context.Context, rec *models.DesignRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO design_revisions (
			id, root_id, parent_id, name, fingerprint, scenario, bounds, trial, observed, created_at
		) VALUES (:id, :root_id, :parent_id, :name, :fingerprint, :scenario, :bounds, :trial, :observed, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			scenario = EXCLUDED.scenario,
			bounds = EXCLUDED.bounds,
			trial = EXCLUDED.trial,
			observed = EXCLUDED.observed`, row)
	if err != nil {
		return fmt.Errorf("failed to save design %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a design by ID
func (r *DesignRepositoryImpl) Get(ctx context.Context, id core.DesignID) (*models.DesignRecord, error) {
	var row designRow
	err := r.db.GetContext(ctx, &row, selectColumns+` WHERE id = $1`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("design %s: %w", id, core.ErrDesignNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get design %s: %w", id, err)
	}
	return fromRow(row)
}

// List returns designs newest first
func (r *DesignRepositoryImpl) List(ctx context.Context, limit int) ([]*models.DesignRecord, error) {
	query := selectColumns + ` ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	var rows []designRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list designs: %w", err)
	}
	return fromRows(rows)
}

// Revisions returns every revision of a root design, oldest first
func (r *DesignRepositoryImpl) Revisions(ctx context.Context, rootID core.DesignID) ([]*models.DesignRecord, error) {
	var rows []designRow
	if err := r.db.SelectContext(ctx, &rows, selectColumns+` WHERE root_id = $1 ORDER BY created_at ASC`, rootID.String()); err != nil {
		return nil, fmt.Errorf("failed to list revisions of %s: %w", rootID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("design %s: %w", rootID, core.ErrDesignNotFound)
	}
	return fromRows(rows)
}

func toRow(rec *models.DesignRecord) (designRow, error) {
	row := designRow{
		ID:          rec.ID.String(),
		RootID:      rec.RootID.String(),
		Name:        rec.Name,
		Fingerprint: rec.Fingerprint.String(),
		CreatedAt:   rec.CreatedAt,
	}
	if !rec.ParentID.IsEmpty() {
		row.ParentID = sql.NullString{String: rec.ParentID.String(), Valid: true}
	}
	var err error
	if row.Scenario, err = json.Marshal(rec.Scenario); err != nil {
		return row, fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if row.Bounds, err = json.Marshal(rec.Bounds); err != nil {
		return row, fmt.Errorf("failed to marshal bounds: %w", err)
	}
	if rec.Trial != nil {
		if row.Trial, err = json.Marshal(rec.Trial); err != nil {
			return row, fmt.Errorf("failed to marshal trial: %w", err)
		}
	}
	if rec.Observed != nil {
		if row.Observed, err = json.Marshal(rec.Observed); err != nil {
			return row, fmt.Errorf("failed to marshal observed counts: %w", err)
		}
	}
	return row, nil
}

func fromRow(row designRow) (*models.DesignRecord, error) {
	rec := &models.DesignRecord{
		ID:          core.DesignID(row.ID),
		RootID:      core.DesignID(row.RootID),
		Name:        row.Name,
		Fingerprint: core.Hash(row.Fingerprint),
		CreatedAt:   row.CreatedAt,
	}
	if row.ParentID.Valid {
		rec.ParentID = core.DesignID(row.ParentID.String)
	}
	if err := json.Unmarshal(row.Scenario, &rec.Scenario); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
	}
	if err := json.Unmarshal(row.Bounds, &rec.Bounds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bounds: %w", err)
	}
	if len(row.Trial) > 0 {
		if err := json.Unmarshal(row.Trial, &rec.Trial); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trial: %w", err)
		}
	}
	if len(row.Observed) > 0 {
		if err := json.Unmarshal(row.Observed, &rec.Observed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal observed counts: %w", err)
		}
	}
	return rec, nil
}

func fromRows(rows []designRow) ([]*models.DesignRecord, error) {
	out := make([]*models.DesignRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
