package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&RunRecord{}))

	return db
}

func TestGormRunRepository_Save(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRepository(db)
	ctx := context.Background()

	run := &RunRecord{
		UUID:         "run-uuid-1",
		N:            4,
		P:            2,
		TreeScore:    12.5,
		TotalSeconds: 0.01,
		MPISeconds:   0.002,
		Newick:       "((2,1),(4,3))",
	}

	require.NoError(t, repo.Save(ctx, run))
	assert.NotZero(t, run.ID)
}

func TestGormRunRepository_GetByUUID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRepository(db)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		run, err := repo.GetByUUID(ctx, "nonexistent")
		assert.Error(t, err)
		assert.Nil(t, run)
		assert.Contains(t, err.Error(), "run not found")
	})

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &RunRecord{
			UUID: "run-uuid-2",
			N:    4,
			P:    1,
		}))

		run, err := repo.GetByUUID(ctx, "run-uuid-2")
		require.NoError(t, err)
		assert.Equal(t, "run-uuid-2", run.UUID)
	})
}

func TestGormRunRepository_ListRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &RunRecord{UUID: "run-a", N: 4, P: 1}))
	require.NoError(t, repo.Save(ctx, &RunRecord{UUID: "run-b", N: 4, P: 2}))
	require.NoError(t, repo.Save(ctx, &RunRecord{UUID: "run-c", N: 4, P: 4}))

	runs, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].UUID)
	assert.Equal(t, "run-b", runs[1].UUID)
}
