package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jgivc/mirrord/internal/common"
	"github.com/jgivc/mirrord/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "docs")
	assert.ErrorIs(t, err, common.ErrStatusNotFound)

	first := &entity.SyncStatus{
		Mirror:     "docs",
		SyncID:     "first",
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Success:    true,
		Bytes:      10,
	}
	require.NoError(t, repo.Save(ctx, first))

	got, err := repo.Get(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := &entity.SyncStatus{Mirror: "docs", SyncID: "second", Error: "fetch failed"}
	require.NoError(t, repo.Save(ctx, second))

	got, err = repo.Get(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "second", got.SyncID)
	assert.False(t, got.Success)

	_, err = repo.Get(ctx, "packages")
	assert.ErrorIs(t, err, common.ErrStatusNotFound)
}

func TestMemoryRepositoryConcurrent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_ = repo.Save(ctx, &entity.SyncStatus{Mirror: "docs", SyncID: string(rune('a' + i))})
			_, _ = repo.Get(ctx, "docs")
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", got.Mirror)
}
