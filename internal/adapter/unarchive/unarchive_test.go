package unarchive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jgivc/mirrord/internal/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildZip(t *testing.T, entries map[string]string, dirs ...string) []byte {
	t.Helper()

	buf := bytes.Buffer{}
	w := zip.NewWriter(&buf)

	for _, dir := range dirs {
		_, err := w.Create(dir)
		require.NoError(t, err)
	}

	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return buf.Bytes()
}

func buildTarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	buf := bytes.Buffer{}
	gz := gzip.NewWriter(&buf)
	w := tar.NewWriter(gz)

	for name, content := range entries {
		require.NoError(t, w.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := w.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func requireFileContent(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestZipUnarchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	archive := buildZip(t, map[string]string{
		"a.txt":     "hello",
		"sub/b.txt": "world",
	}, "empty/")
	require.NoError(t, afero.WriteFile(fs, "tmp/docs.zip", archive, 0o644))

	u := NewZipUnarchiver(fs, newTestLogger())
	require.NoError(t, u.Unarchive(context.Background(), "tmp/docs.zip", "data/docs"))

	requireFileContent(t, fs, "data/docs/a.txt", "hello")
	requireFileContent(t, fs, "data/docs/sub/b.txt", "world")

	isDir, err := afero.IsDir(fs, "data/docs/empty")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestZipUnarchiveOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "data/docs/a.txt", []byte("old snapshot"), 0o644))

	archive := buildZip(t, map[string]string{"a.txt": "new snapshot"})
	require.NoError(t, afero.WriteFile(fs, "tmp/docs.zip", archive, 0o644))

	u := NewZipUnarchiver(fs, newTestLogger())
	require.NoError(t, u.Unarchive(context.Background(), "tmp/docs.zip", "data/docs"))

	requireFileContent(t, fs, "data/docs/a.txt", "new snapshot")
}

func TestZipUnarchiveSkipsTraversalEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	archive := buildZip(t, map[string]string{
		"ok.txt":               "fine",
		"../evil.txt":          "escape",
		"sub/../../evil2.txt":  "escape",
		"/abs/../../evil3.txt": "escape",
	})
	require.NoError(t, afero.WriteFile(fs, "tmp/docs.zip", archive, 0o644))

	u := NewZipUnarchiver(fs, newTestLogger())
	require.NoError(t, u.Unarchive(context.Background(), "tmp/docs.zip", "data/docs"))

	requireFileContent(t, fs, "data/docs/ok.txt", "fine")

	for _, path := range []string{"data/evil.txt", "data/evil2.txt", "data/evil3.txt"} {
		exists, err := afero.Exists(fs, path)
		require.NoError(t, err)
		assert.False(t, exists, "entry %s must not be written", path)
	}
}

func TestZipUnarchiveCorruptArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "tmp/docs.zip", []byte("this is not a zip"), 0o644))

	u := NewZipUnarchiver(fs, newTestLogger())
	err := u.Unarchive(context.Background(), "tmp/docs.zip", "data/docs")

	var installErr *common.InstallError
	require.True(t, errors.As(err, &installErr))
	assert.Equal(t, "tmp/docs.zip", installErr.Archive)
}

func TestZipUnarchiveMissingArchive(t *testing.T) {
	u := NewZipUnarchiver(afero.NewMemMapFs(), newTestLogger())
	err := u.Unarchive(context.Background(), "tmp/nope.zip", "data/docs")

	var installErr *common.InstallError
	assert.True(t, errors.As(err, &installErr))
}

func TestTarGzUnarchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	archive := buildTarGz(t, map[string]string{
		"a.txt":       "hello",
		"sub/b.txt":   "world",
		"../evil.txt": "escape",
	})
	require.NoError(t, afero.WriteFile(fs, "tmp/docs.tar.gz", archive, 0o644))

	u := NewTarGzUnarchiver(fs, newTestLogger())
	require.NoError(t, u.Unarchive(context.Background(), "tmp/docs.tar.gz", "data/docs"))

	requireFileContent(t, fs, "data/docs/a.txt", "hello")
	requireFileContent(t, fs, "data/docs/sub/b.txt", "world")

	exists, err := afero.Exists(fs, "data/evil.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestForPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	log := newTestLogger()

	assert.IsType(t, &zipUnarchiver{}, ForPath(fs, "tmp/docs.zip", log))
	assert.IsType(t, &zipUnarchiver{}, ForPath(fs, "tmp/docs.unknown", log))
	assert.IsType(t, &tarGzUnarchiver{}, ForPath(fs, "tmp/docs.tar.gz", log))
	assert.IsType(t, &tarGzUnarchiver{}, ForPath(fs, "tmp/docs.tgz", log))
}

func TestResolveEntry(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		want string
	}{
		{name: "a.txt", ok: true, want: "data/docs/a.txt"},
		{name: "sub/b.txt", ok: true, want: "data/docs/sub/b.txt"},
		{name: "../evil.txt", ok: false},
		{name: "sub/../../evil.txt", ok: false},
		{name: ".", ok: true, want: "data/docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := resolveEntry("data/docs", tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, path)
			}
		})
	}
}
