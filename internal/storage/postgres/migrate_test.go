package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/d20sheet/internal/storage/postgres"
	"github.com/cory-johannsen/d20sheet/internal/testutil"
)

func TestMigrate(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	dsn := pc.Config.DSN()
	dir := testutil.MigrationsDir()
	logger := zaptest.NewLogger(t)

	res, err := postgres.Migrate(dsn, dir, postgres.Up, 0, logger)
	require.NoError(t, err)
	assert.False(t, res.NoChange)
	assert.Equal(t, uint(2), res.Version)
	assert.False(t, res.Dirty)

	res, err = postgres.Migrate(dsn, dir, postgres.Up, 0, logger)
	require.NoError(t, err)
	assert.True(t, res.NoChange)

	res, err = postgres.Migrate(dsn, dir, postgres.Down, 1, logger)
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.Version)

	_, err = postgres.Migrate(dsn, dir, postgres.Direction("sideways"), 0, logger)
	assert.ErrorContains(t, err, "invalid direction")
}
