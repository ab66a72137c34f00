package unarchive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/jgivc/mirrord/internal/common"
	"github.com/spf13/afero"
)

type tarGzUnarchiver struct {
	fs  afero.Fs
	log *slog.Logger
}

func NewTarGzUnarchiver(fs afero.Fs, log *slog.Logger) Unarchiver {
	return &tarGzUnarchiver{
		fs:  fs,
		log: log.With(slog.String("item", "TarGzUnarchiver")),
	}
}

func (u *tarGzUnarchiver) Unarchive(ctx context.Context, archivePath, destDir string) error {
	file, err := u.fs.Open(archivePath)
	if err != nil {
		return &common.InstallError{Archive: archivePath, Err: fmt.Errorf("cannot open archive: %w", err)}
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return &common.InstallError{Archive: archivePath, Err: fmt.Errorf("cannot read archive: %w", err)}
	}
	defer gz.Close()

	if err := u.fs.MkdirAll(destDir, 0o755); err != nil {
		return &common.InstallError{Archive: archivePath, Err: fmt.Errorf("cannot create dest dir: %w", err)}
	}

	reader := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return &common.InstallError{Archive: archivePath, Err: err}
		}

		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &common.InstallError{Archive: archivePath, Err: fmt.Errorf("cannot read archive entry: %w", err)}
		}

		if err := u.extractEntry(header, reader, destDir); err != nil {
			return &common.InstallError{Archive: archivePath, Err: err}
		}
	}
}

func (u *tarGzUnarchiver) extractEntry(header *tar.Header, src io.Reader, destDir string) error {
	path, ok := resolveEntry(destDir, header.Name)
	if !ok {
		u.log.Warn("Skip entry outside dest dir", slog.String("entry", header.Name))

		return nil
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err := u.fs.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("cannot create dir %s: %w", path, err)
		}
	case tar.TypeReg:
		if err := u.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("cannot create dir for %s: %w", path, err)
		}

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
	default:
		u.log.Warn("Skip unsupported entry type", slog.String("entry", header.Name), slog.Int("type", int(header.Typeflag)))
	}

	return nil
}
