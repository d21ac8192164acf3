package container

import (
	"context"
	"testing"
	"time"

	"gsdesign/adapters/memory"
	"gsdesign/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestInitWithoutDatabaseUsesMemory(t *testing.T) {
	c, err := New(&config.Config{
		Engine: config.EngineConfig{GridR: 18, Tolerance: 1e-9, MaxIter: 200},
		Sweep:  config.SweepConfig{Workers: 2, Timeout: time.Minute},
	})
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))
	defer c.Close()

	assert.Nil(t, c.DB)
	assert.IsType(t, &memory.DesignRepository{}, c.DesignRepo)
	assert.NotNil(t, c.DesignService)
}
