// Package status stores the outcome of the most recent sync attempt per
// mirror. Sync success or failure is otherwise visible only in the logs.
package status

import (
	"context"
	"sync"

	"github.com/jgivc/mirrord/internal/common"
	"github.com/jgivc/mirrord/internal/entity"
)

type Repository interface {
	Save(ctx context.Context, status *entity.SyncStatus) error
	Get(ctx context.Context, mirror string) (*entity.SyncStatus, error)
}

type memoryRepository struct {
	mu       sync.RWMutex
	statuses map[string]entity.SyncStatus
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		statuses: make(map[string]entity.SyncStatus),
	}
}

func (r *memoryRepository) Save(_ context.Context, status *entity.SyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses[status.Mirror] = *status

	return nil
}

func (r *memoryRepository) Get(_ context.Context, mirror string) (*entity.SyncStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, exists := r.statuses[mirror]
	if !exists {
		return nil, common.ErrStatusNotFound
	}

	return &status, nil
}
