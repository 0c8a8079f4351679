package source_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"edgelytics/ingest/source"
)

func TestFileOpenAndCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	f := source.File{Path: path}
	require.False(t, f.Compressed())
	require.Equal(t, path, f.Name())

	r, err := f.Open(context.Background())
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))

	require.True(t, source.File{Path: path + ".gz"}.Compressed())
}

func TestFileOpenMissingIsReadError(t *testing.T) {
	f := source.File{Path: filepath.Join(t.TempDir(), "missing.log")}
	_, err := f.Open(context.Background())
	require.Error(t, err)

	var readErr *source.ReadError
	require.True(t, errors.As(err, &readErr))
	require.Equal(t, f.Path, readErr.Source)
}

func TestGlobOrdersMatches(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.log.gz", "a.log.gz", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	sources, err := source.Glob([]string{filepath.Join(dir, "*.log.gz")})
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, filepath.Join(dir, "a.log.gz"), sources[0].Name())
	require.Equal(t, filepath.Join(dir, "b.log.gz"), sources[1].Name())
}

func TestGlobNoMatches(t *testing.T) {
	sources, err := source.Glob([]string{filepath.Join(t.TempDir(), "*.gz")})
	require.NoError(t, err)
	require.Empty(t, sources)
}
