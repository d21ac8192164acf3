package container

import (
	"context"
	"fmt"

	"gsdesign/adapters/db/postgres/migrations"
	"gsdesign/adapters/memory"
	"gsdesign/adapters/postgres"
	"gsdesign/app"
	"gsdesign/internal"
	"gsdesign/internal/config"
	"gsdesign/internal/errors"
	"gsdesign/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure; nil when designs are kept in memory
	DB *sqlx.DB

	DesignRepo    ports.DesignRepository
	DesignService *app.DesignService

	logger *internal.Logger
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Container{Config: cfg, logger: internal.DefaultLogger.Named("container")}, nil
}

// Init connects storage and builds the services. Without a database URL
// designs are kept in memory for the life of the process.
func (c *Container) Init(ctx context.Context) error {
	if c.Config.Database.URL == "" {
		c.logger.Info("DATABASE_URL not set, storing designs in memory")
		c.DesignRepo = memory.NewDesignRepository()
	} else {
		db, err := initDatabase(ctx, c.Config.Database)
		if err != nil {
			return err
		}
		c.DB = db
		c.DesignRepo = postgres.NewDesignRepository(db)
	}
	c.DesignService = app.NewDesignService(c.DesignRepo, c.Config.Engine, c.Config.Sweep)
	return nil
}

// initDatabase connects to PostgreSQL and applies pending migrations
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := migrations.NewMigrator(db.DB).Up(ctx); err != nil {
		db.Close()
		return nil, errors.DatabaseError("database migration failed", err)
	}
	return db, nil
}

// Close releases the database connection, if any
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
