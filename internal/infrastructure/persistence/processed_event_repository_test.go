package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupProcessedEventTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&ProcessedEventModel{})
	require.NoError(t, err)

	return db
}

func TestProcessedEventRepository_MarkProcessed(t *testing.T) {
	db := setupProcessedEventTestDB(t)
	repo := NewProcessedEventRepository(db)
	ctx := context.Background()

	t.Run("first claim succeeds, retry is dropped", func(t *testing.T) {
		isNew, err := repo.MarkProcessed(ctx, "evt_1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = repo.MarkProcessed(ctx, "evt_1", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew, "redelivered event must not be claimed twice")
	})

	t.Run("distinct events claim independently", func(t *testing.T) {
		isNew, err := repo.MarkProcessed(ctx, "evt_2", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestProcessedEventRepository_Unmark(t *testing.T) {
	db := setupProcessedEventTestDB(t)
	repo := NewProcessedEventRepository(db)
	ctx := context.Background()

	isNew, err := repo.MarkProcessed(ctx, "evt_fail", time.Hour)
	require.NoError(t, err)
	require.True(t, isNew)

	require.NoError(t, repo.Unmark(ctx, "evt_fail"))

	isNew, err = repo.MarkProcessed(ctx, "evt_fail", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "released event should be claimable by the retry")
}

func TestProcessedEventRepository_IsProcessed(t *testing.T) {
	db := setupProcessedEventTestDB(t)
	repo := NewProcessedEventRepository(db)
	ctx := context.Background()

	processed, err := repo.IsProcessed(ctx, "evt_unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = repo.MarkProcessed(ctx, "evt_seen", time.Hour)
	require.NoError(t, err)

	processed, err = repo.IsProcessed(ctx, "evt_seen")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestProcessedEventRepository_PruneOlderThan(t *testing.T) {
	db := setupProcessedEventTestDB(t)
	repo := NewProcessedEventRepository(db)
	ctx := context.Background()

	// Backdate a row past the retention window
	old := &ProcessedEventModel{
		EventID:     "evt_old",
		ProcessedAt: time.Now().Add(-31 * 24 * time.Hour),
		ExpiresAt:   time.Now().Add(-24 * time.Hour),
	}
	require.NoError(t, db.Create(old).Error)

	_, err := repo.MarkProcessed(ctx, "evt_recent", time.Hour)
	require.NoError(t, err)

	pruned, err := repo.PruneOlderThan(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	processed, err := repo.IsProcessed(ctx, "evt_recent")
	require.NoError(t, err)
	assert.True(t, processed, "rows inside the retention window survive pruning")
}
