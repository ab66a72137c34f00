package unarchive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jgivc/mirrord/internal/common"
	"github.com/spf13/afero"
)

type zipUnarchiver struct {
	fs  afero.Fs
	log *slog.Logger
}

func NewZipUnarchiver(fs afero.Fs, log *slog.Logger) Unarchiver {
	return &zipUnarchiver{
		fs:  fs,
		log: log.With(slog.String("item", "ZipUnarchiver")),
	}
}

// Unarchive extracts every entry of the zip at archivePath into destDir,
// overwriting files of the same relative path. Entries resolving outside
// destDir are skipped, not fatal.
func (u *zipUnarchiver) Unarchive(ctx context.Context, archivePath, destDir string) error {
	file, err := u.fs.Open(archivePath)
	if err != nil {
		return &common.InstallError{Archive: archivePath, Err: fmt.Errorf("cannot open archive: %w", err)}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return &common.InstallError{Archive: archivePath, Err: fmt.Errorf("cannot stat archive: %w", err)}
	}

	reader, err := zip.NewReader(file, stat.Size())
	if err != nil {
		return &common.InstallError{Archive: archivePath, Err: fmt.Errorf("cannot read archive: %w", err)}
	}

	if err := u.fs.MkdirAll(destDir, 0o755); err != nil {
		return &common.InstallError{Archive: archivePath, Err: fmt.Errorf("cannot create dest dir: %w", err)}
	}

	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return &common.InstallError{Archive: archivePath, Err: err}
		}

		if err := u.extractEntry(entry, destDir); err != nil {
			return &common.InstallError{Archive: archivePath, Err: err}
		}
	}

	return nil
}

func (u *zipUnarchiver) extractEntry(entry *zip.File, destDir string) error {
	path, ok := resolveEntry(destDir, entry.Name)
	if !ok {
		u.log.Warn("Skip entry outside dest dir", slog.String("entry", entry.Name))

		return nil
	}

	if entry.FileInfo().IsDir() || strings.HasSuffix(entry.Name, "/") {
		if err := u.fs.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("cannot create dir %s: %w", path, err)
		}

		return nil
	}

	if err := u.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create dir for %s: %w", path, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("cannot open entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := u.fs.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create file %s: %w", path, err)
	}

	_, err = io.Copy(dst, src)
	closeErr := dst.Close()

	if err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("cannot write file %s: %w", path, err)
	}

	return nil
}
