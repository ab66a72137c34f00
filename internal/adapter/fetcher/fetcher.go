package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jgivc/mirrord/internal/common"
	"github.com/spf13/afero"
)

// HTTPFetcher streams a remote archive to a local temporary file. It never
// buffers the whole payload in memory and never touches the serving
// directory.
type HTTPFetcher struct {
	client *http.Client
	fs     afero.Fs
	log    *slog.Logger
}

func NewHTTPFetcher(log *slog.Logger) *HTTPFetcher {
	return NewHTTPFetcherWithFS(afero.NewOsFs(), http.DefaultClient, log)
}

func NewHTTPFetcherWithFS(fs afero.Fs, client *http.Client, log *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: client,
		fs:     fs,
		log:    log.With(slog.String("item", "HTTPFetcher")),
	}
}

// Fetch downloads source into dest and returns the number of bytes written.
// A stale dest file from a crashed prior attempt is removed first, so
// repeated calls with the same dest never accumulate leftovers.
func (f *HTTPFetcher) Fetch(ctx context.Context, source, dest string) (int64, error) {
	if err := f.fs.Remove(dest); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("cannot remove stale download file: %w", err)
	}

	if err := f.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("cannot create download dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return 0, &common.FetchError{URL: source, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, &common.FetchError{URL: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &common.FetchError{URL: source, StatusCode: resp.StatusCode}
	}

	file, err := f.fs.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("cannot create download file: %w", err)
	}

	written, err := io.Copy(file, resp.Body)
	closeErr := file.Close()

	if err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := f.fs.Remove(dest); rmErr != nil {
			f.log.Warn("Cannot remove partial download file", slog.String("path", dest), slog.Any("error", rmErr))
		}

		return 0, &common.FetchError{URL: source, Err: err}
	}

	f.log.Debug("Fetched archive", slog.String("url", source), slog.Int64("bytes", written))

	return written, nil
}
