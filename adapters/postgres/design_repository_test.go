package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"gsdesign/adapters/db/postgres/migrations"
	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(t *testing.T) *models.DesignRecord {
	t.Helper()
	rec, err := models.NewDesignRecord(
		models.Scenario{Name: "row"},
		&design.Design{N: []float64{50, 100}, UpperBound: []float64{2.8, 1.97}},
		nil,
	)
	require.NoError(t, err)
	return rec
}

func TestRowMappingRoundTrip(t *testing.T) {
	rec := sampleRecord(t)
	child := rec.Revise([]float64{48}, rec.Bounds, nil)

	row, err := toRow(child)
	require.NoError(t, err)
	assert.True(t, row.ParentID.Valid)
	assert.Nil(t, row.Trial)

	back, err := fromRow(row)
	require.NoError(t, err)
	assert.Equal(t, child.ID, back.ID)
	assert.Equal(t, rec.ID, back.ParentID)
	assert.Equal(t, []float64{48}, back.Observed)
	assert.Equal(t, []float64{2.8, 1.97}, back.Bounds.UpperBound)
	assert.Nil(t, back.Trial)

	rootRow, err := toRow(rec)
	require.NoError(t, err)
	assert.False(t, rootRow.ParentID.Valid)
}

// TestRepositoryAgainstDatabase runs only when TEST_DATABASE_URL points at
// a disposable Postgres database.
func TestRepositoryAgainstDatabase(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, migrations.NewMigrator(db.DB).Up(ctx))

	repo := NewDesignRepository(db)
	rec := sampleRecord(t)
	require.NoError(t, repo.Save(ctx, rec))
	child := rec.Revise([]float64{48}, rec.Bounds, nil)
	require.NoError(t, repo.Save(ctx, child))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)

	revs, err := repo.Revisions(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, revs, 2)

	_, err = repo.Get(ctx, core.NewDesignID())
	assert.True(t, errors.Is(err, core.ErrDesignNotFound))
}
