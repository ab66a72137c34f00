// Package unarchive extracts downloaded archives into a mirror's serving
// directory. The archive format is pluggable so the sync pipeline never
// depends on a concrete format.
package unarchive

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

type Unarchiver interface {
	Unarchive(ctx context.Context, archivePath, destDir string) error
}

// ForPath selects an unarchiver by file extension. Zip is the default
// because mirror downloads are named {name}.zip unless the source URL says
// otherwise.
func ForPath(fs afero.Fs, path string, log *slog.Logger) Unarchiver {
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return NewTarGzUnarchiver(fs, log)
	default:
		return NewZipUnarchiver(fs, log)
	}
}

// resolveEntry maps an archive entry name onto destDir and reports whether
// the result stays inside destDir. Entries that would escape (absolute
// paths, ".." components) must be skipped by the caller.
func resolveEntry(destDir, name string) (string, bool) {
	path := filepath.Join(destDir, filepath.FromSlash(name))

	base := filepath.Clean(destDir)
	if path != base && !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", false
	}

	return path, true
}
