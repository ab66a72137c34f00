package httphandler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jgivc/mirrord/internal/common"
	"github.com/jgivc/mirrord/internal/entity"
)

type SyncService interface {
	Start(ctx context.Context, name string) (<-chan error, error)
}

type StatusProvider interface {
	Get(ctx context.Context, mirror string) (*entity.SyncStatus, error)
}

// NewAuthMiddleware rejects every request whose Authorization header does
// not carry exactly the expected bearer token.
func NewAuthMiddleware(token string, log *slog.Logger) func(http.Handler) http.Handler {
	log = log.With(slog.String("handler", "AuthMiddleware"))
	expected := []byte("Bearer " + token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				log.Warn("Reject unauthorized request", slog.String("remote", r.RemoteAddr), slog.String("path", r.URL.Path))
				http.Error(w, "Forbidden", http.StatusForbidden)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewSyncHandler triggers a sync for the mirror named in the path. The sync
// runs detached: a 200 response means "sync started", not "sync completed".
func NewSyncHandler(srv SyncService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SyncHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		if _, err := srv.Start(r.Context(), name); err != nil {
			switch {
			case errors.Is(err, common.ErrMirrorNotFound):
				http.Error(w, "Mirror not found", http.StatusNotFound)
			case errors.Is(err, common.ErrSyncAlreadyInProgress):
				http.Error(w, "Sync has already started", http.StatusConflict)
			default:
				http.Error(w, "Cannot start sync", http.StatusInternalServerError)
			}

			return
		}

		log.Info("Sync triggered", slog.String("mirror", name), slog.String("remote", r.RemoteAddr))

		w.Write([]byte("sync started"))
	}
}

// NewStatusHandler reports the last sync outcome for the mirror named in
// the path.
func NewStatusHandler(provider StatusProvider, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatusHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		status, err := provider.Get(r.Context(), name)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrStatusNotFound):
				http.Error(w, "No sync status", http.StatusNotFound)
			default:
				http.Error(w, "Cannot get sync status", http.StatusInternalServerError)
			}

			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error("Cannot encode sync status", slog.String("mirror", name), slog.Any("error", err))
		}
	}
}
