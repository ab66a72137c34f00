// Package sync implements the mirror refresh pipeline: fetch the remote
// archive to a scratch file, extract it into the serving directory, record
// the outcome. Per-mirror exclusion guarantees that no two syncs of the same
// mirror ever overlap; mirrors are fully independent of each other.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/mirrord/internal/common"
	"github.com/jgivc/mirrord/internal/config"
	"github.com/jgivc/mirrord/internal/entity"
	"github.com/jgivc/mirrord/internal/registry"
	"github.com/spf13/afero"
)

const (
	serviceName = "sync"

	statusSaveTimeout = 5 * time.Second
	defaultExt        = ".zip"
)

type Fetcher interface {
	Fetch(ctx context.Context, source, dest string) (int64, error)
}

type Installer interface {
	Unarchive(ctx context.Context, archivePath, destDir string) error
}

// InstallerFactory picks an installer for the given archive path, so the
// pipeline stays independent of concrete archive formats.
type InstallerFactory func(archivePath string) Installer

type StatusRepository interface {
	Save(ctx context.Context, status *entity.SyncStatus) error
}

type SyncService struct {
	reg        *registry.Registry
	fetcher    Fetcher
	installers InstallerFactory
	repo       StatusRepository
	fs         afero.Fs

	dataDir string
	tmpDir  string
	timeout time.Duration

	// One exclusion flag per mirror, preallocated from the immutable
	// registry. This is the only mutable shared state in the pipeline.
	flags map[string]*atomic.Bool
	wg    gosync.WaitGroup

	log *slog.Logger
}

func NewSyncService(cfg *config.Config, reg *registry.Registry, fetcher Fetcher,
	installers InstallerFactory, repo StatusRepository, fs afero.Fs, log *slog.Logger) *SyncService {
	flags := make(map[string]*atomic.Bool, reg.Len())
	for _, mirror := range reg.All() {
		flags[mirror.Name] = &atomic.Bool{}
	}

	return &SyncService{
		reg:        reg,
		fetcher:    fetcher,
		installers: installers,
		repo:       repo,
		fs:         fs,
		dataDir:    cfg.DataDir,
		tmpDir:     cfg.TmpDir,
		timeout:    cfg.SyncTimeout.Std(),
		flags:      flags,
		log:        log.With(slog.String("service", serviceName)),
	}
}

// Start begins a sync attempt for the named mirror. The lookup and the
// exclusion-flag acquisition happen synchronously so callers get
// ErrMirrorNotFound and ErrSyncAlreadyInProgress immediately; the attempt
// itself runs detached with its own bounded context and reports on the
// returned channel. Callers may await the channel or drop it.
func (s *SyncService) Start(_ context.Context, name string) (<-chan error, error) {
	mirror, exists := s.reg.Get(name)
	if !exists {
		return nil, common.ErrMirrorNotFound
	}

	flag := s.flags[name]
	if !flag.CompareAndSwap(false, true) {
		return nil, common.ErrSyncAlreadyInProgress
	}

	done := make(chan error, 1)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		err := s.run(mirror)

		// Release before delivering the outcome so an awaiting caller can
		// retry immediately without observing ErrSyncAlreadyInProgress.
		flag.Store(false)
		done <- err
	}()

	return done, nil
}

// Sync runs one attempt and waits for its outcome.
func (s *SyncService) Sync(ctx context.Context, name string) error {
	done, err := s.Start(ctx, name)
	if err != nil {
		return err
	}

	return <-done
}

// Close waits for in-flight sync attempts to drain, up to the context
// deadline.
func (s *SyncService) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)

		s.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cannot drain sync attempts: %w", ctx.Err())
	}
}

func (s *SyncService) run(mirror *entity.Mirror) error {
	syncID := uuid.NewString()
	log := s.log.With(slog.String("mirror", mirror.Name), slog.String("sync_id", syncID))

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log.Info("Sync started", slog.String("source", mirror.Source))

	startedAt := time.Now()
	written, err := s.attempt(ctx, mirror, log)

	status := &entity.SyncStatus{
		Mirror:     mirror.Name,
		SyncID:     syncID,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Bytes:      written,
	}

	if err != nil {
		status.Error = err.Error()
		log.Error("Sync failed", slog.Any("error", err))
	} else {
		status.Success = true
		log.Info("Sync finished", slog.Int64("bytes", written),
			slog.Duration("elapsed", status.FinishedAt.Sub(startedAt)))
	}

	saveCtx, saveCancel := context.WithTimeout(context.Background(), statusSaveTimeout)
	defer saveCancel()

	if saveErr := s.repo.Save(saveCtx, status); saveErr != nil {
		log.Warn("Cannot save sync status", slog.Any("error", saveErr))
	}

	return err
}

func (s *SyncService) attempt(ctx context.Context, mirror *entity.Mirror, log *slog.Logger) (int64, error) {
	if err := s.fs.MkdirAll(s.tmpDir, 0o755); err != nil {
		return 0, fmt.Errorf("cannot create tmp dir: %w", err)
	}

	// Deterministic scratch name per mirror: a crashed prior attempt is
	// overwritten by the fetcher, never accumulated.
	archivePath := filepath.Join(s.tmpDir, mirror.Name+archiveExt(mirror.Source))

	written, err := s.fetcher.Fetch(ctx, mirror.Source, archivePath)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err := s.fs.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			log.Warn("Cannot remove download file", slog.String("path", archivePath), slog.Any("error", err))
		}
	}()

	destDir := filepath.Join(s.dataDir, mirror.Name)
	if err := s.installers(archivePath).Unarchive(ctx, archivePath, destDir); err != nil {
		return written, err
	}

	return written, nil
}

// archiveExt derives the scratch-file extension from the source URL path so
// the installer can be selected by format. Unknown sources default to zip.
func archiveExt(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return defaultExt
	}

	lower := strings.ToLower(u.Path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"):
		return ".tar.gz"
	case strings.HasSuffix(lower, ".tgz"):
		return ".tgz"
	}

	if ext := path.Ext(lower); ext != "" {
		return ext
	}

	return defaultExt
}
