package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jgivc/mirrord/internal/adapter/fetcher"
	"github.com/jgivc/mirrord/internal/adapter/unarchive"
	"github.com/jgivc/mirrord/internal/common"
	"github.com/jgivc/mirrord/internal/config"
	httphandler "github.com/jgivc/mirrord/internal/handler/http"
	"github.com/jgivc/mirrord/internal/registry"
	"github.com/jgivc/mirrord/internal/repository/status"
	syncsrv "github.com/jgivc/mirrord/internal/service/sync"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
)

const (
	stopTimeout  = 5 * time.Second
	drainTimeout = 30 * time.Second
)

type App struct {
	cfgPath string
	cfg     *config.Config
	reg     *registry.Registry
	syncSrv *syncsrv.SyncService
	cron    *cron.Cron
	servers []*http.Server
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	reg, err := registry.New(a.cfg.Mirrors)
	if err != nil {
		panic(err)
	}
	a.reg = reg

	fs := afero.NewOsFs()
	for _, mirror := range reg.All() {
		if err := fs.MkdirAll(filepath.Join(a.cfg.DataDir, mirror.Name), 0o755); err != nil {
			panic(err)
		}
	}

	repo := a.newStatusRepository(log)

	installers := func(archivePath string) syncsrv.Installer {
		return unarchive.ForPath(fs, archivePath, log)
	}
	a.syncSrv = syncsrv.NewSyncService(a.cfg, reg, fetcher.NewHTTPFetcher(log), installers, repo, fs, log)

	a.cron = cron.New()
	for _, mirror := range reg.All() {
		log.Info("Initializing mirror", slog.String("mirror", mirror.Name))

		if mirror.Schedule == "" {
			continue
		}

		name := mirror.Name
		if _, err := a.cron.AddFunc(mirror.Schedule, func() {
			if _, err := a.syncSrv.Start(context.Background(), name); err != nil {
				if errors.Is(err, common.ErrSyncAlreadyInProgress) {
					log.Debug("Skip scheduled sync, previous attempt still running", slog.String("mirror", name))

					return
				}

				log.Error("Cannot start scheduled sync", slog.String("mirror", name), slog.Any("error", err))
			}
		}); err != nil {
			panic(fmt.Errorf("cannot schedule sync for %s: %w", name, err))
		}

		log.Info("Initializing sync task", slog.String("mirror", name), slog.String("schedule", mirror.Schedule))
	}

	if a.cfg.StartupSync() {
		a.SyncAll()
	}

	a.startContentServers(fs)
	a.startAdminServer(fs, repo)
	a.cron.Start()
}

// SyncAll fires a detached sync attempt for every mirror. Mirrors whose
// previous attempt is still running are skipped.
func (a *App) SyncAll() {
	for _, mirror := range a.reg.All() {
		if _, err := a.syncSrv.Start(context.Background(), mirror.Name); err != nil {
			if errors.Is(err, common.ErrSyncAlreadyInProgress) {
				continue
			}

			a.log.Error("Cannot start sync", slog.String("mirror", mirror.Name), slog.Any("error", err))
		}
	}
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	for _, srv := range a.servers {
		srv.Shutdown(ctx)
	}

	<-a.cron.Stop().Done()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()

	if err := a.syncSrv.Close(drainCtx); err != nil {
		a.log.Warn("Sync attempts did not drain in time", slog.Any("error", err))
	}
}

func (a *App) newStatusRepository(log *slog.Logger) status.Repository {
	if a.cfg.RedisURL == "" {
		return status.NewMemoryRepository()
	}

	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		panic(err)
	}

	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		panic(err)
	}

	return status.NewRedisRepository(rdb, log)
}

func (a *App) startContentServers(fs afero.Fs) {
	httpFs := afero.NewHttpFs(fs)

	for _, mirror := range a.reg.All() {
		if mirror.Serve == "" {
			continue
		}

		a.log.Info("Initializing content server", slog.String("mirror", mirror.Name), slog.String("listen", mirror.Serve))

		root := filepath.Join(a.cfg.DataDir, mirror.Name)
		srv := &http.Server{
			Addr:    mirror.Serve,
			Handler: http.FileServer(httpFs.Dir(root)),
		}

		a.serve(srv)
	}
}

func (a *App) startAdminServer(fs afero.Fs, repo status.Repository) {
	if a.cfg.AdminServer == nil {
		return
	}

	a.log.Info("Initializing admin server", slog.String("listen", a.cfg.AdminServer.Listen))

	auth := httphandler.NewAuthMiddleware(a.cfg.AdminServer.Token, a.log)

	mux := http.NewServeMux()
	mux.Handle("POST /sync/{name}", auth(httphandler.NewSyncHandler(a.syncSrv, a.log)))
	mux.Handle("GET /status/{name}", auth(httphandler.NewStatusHandler(repo, a.log)))
	mux.Handle("GET /{$}", auth(httphandler.NewDashboardHandler(a.reg, repo, fs, a.cfg.AdminServer.Description, a.log)))

	srv := &http.Server{
		Addr:    a.cfg.AdminServer.Listen,
		Handler: mux,
	}

	a.serve(srv)
}

func (a *App) serve(srv *http.Server) {
	a.servers = append(a.servers, srv)

	go func() {
		a.log.Info("Start listen", slog.String("addr", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Could not serve", slog.String("listen_addr", srv.Addr), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}
