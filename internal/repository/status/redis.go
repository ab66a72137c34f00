package status

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jgivc/mirrord/internal/common"
	"github.com/jgivc/mirrord/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	keyStatus    = "ms" // HASH. ms:{mirror} field: value
	keySeparator = ":"

	fieldSyncID     = "sync_id"
	fieldStartedAt  = "started_at"
	fieldFinishedAt = "finished_at"
	fieldBytes      = "bytes"
	fieldSuccess    = "success"
	fieldError      = "error"
)

type redisRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

// NewRedisRepository keeps the last sync status in redis so it survives
// process restarts.
func NewRedisRepository(cl *redis.Client, log *slog.Logger) Repository {
	return &redisRepository{
		cl:  cl,
		log: log.With(slog.String("item", "StatusRepository")),
	}
}

func (r *redisRepository) Save(ctx context.Context, status *entity.SyncStatus) error {
	fields := map[string]any{
		fieldSyncID:     status.SyncID,
		fieldStartedAt:  status.StartedAt.Format(time.RFC3339Nano),
		fieldFinishedAt: status.FinishedAt.Format(time.RFC3339Nano),
		fieldBytes:      status.Bytes,
		fieldSuccess:    strconv.FormatBool(status.Success),
		fieldError:      status.Error,
	}

	if _, err := r.cl.HSet(ctx, getKey(keyStatus, status.Mirror), fields).Result(); err != nil {
		r.log.Error("Cannot save sync status", slog.String("mirror", status.Mirror), slog.Any("error", err))

		return fmt.Errorf("cannot save sync status: %w", err)
	}

	return nil
}

func (r *redisRepository) Get(ctx context.Context, mirror string) (*entity.SyncStatus, error) {
	fields, err := r.cl.HGetAll(ctx, getKey(keyStatus, mirror)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get sync status: %w", err)
	}

	if len(fields) < 1 {
		return nil, common.ErrStatusNotFound
	}

	status := &entity.SyncStatus{
		Mirror: mirror,
		SyncID: fields[fieldSyncID],
		Error:  fields[fieldError],
	}

	if startedAt, err := time.Parse(time.RFC3339Nano, fields[fieldStartedAt]); err == nil {
		status.StartedAt = startedAt
	}
	if finishedAt, err := time.Parse(time.RFC3339Nano, fields[fieldFinishedAt]); err == nil {
		status.FinishedAt = finishedAt
	}
	if bytes, err := strconv.ParseInt(fields[fieldBytes], 10, 64); err == nil {
		status.Bytes = bytes
	}
	status.Success, _ = strconv.ParseBool(fields[fieldSuccess])

	return status, nil
}

func getKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}
