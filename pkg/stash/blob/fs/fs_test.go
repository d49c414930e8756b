package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/stash/pkg/stash/blob"
	"github.com/tendant/stash/pkg/stash/blob/fs"
)

func TestFilesystemRoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend, err := fs.New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	key := "alice/01J0000000000000000000000/report.pdf"
	require.NoError(t, backend.Put(ctx, key, []byte("%PDF"), "application/pdf"))

	raw, err := backend.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), raw)

	require.NoError(t, backend.Delete(ctx, key))

	_, err = backend.Get(ctx, key)
	assert.ErrorIs(t, err, blob.ErrObjectNotFound)
	assert.ErrorIs(t, backend.Delete(ctx, key), blob.ErrObjectNotFound)

	// emptied key directories are pruned, the base stays
	_, err = os.Stat(filepath.Join(dir, "alice"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestFilesystemOverwrite(t *testing.T) {
	backend, err := fs.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "k", []byte("one"), ""))
	require.NoError(t, backend.Put(ctx, "k", []byte("two"), ""))

	raw, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), raw)
}

func TestFilesystemRejectsEscapingKeys(t *testing.T) {
	backend, err := fs.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "../outside", "a/../../outside", "."} {
		assert.ErrorIs(t, backend.Put(ctx, key, []byte("x"), ""), fs.ErrInvalidKey, key)
	}
}

func TestFilesystemThroughGateway(t *testing.T) {
	backend, err := fs.New(t.TempDir())
	require.NoError(t, err)
	gw := blob.NewGateway(backend)
	ctx := context.Background()

	require.NoError(t, gw.UploadBytes(ctx, "bob/notes.txt", []byte("hi"), "text/plain"))
	data, err := gw.DownloadBytes(ctx, "bob/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)

	require.NoError(t, gw.DeleteBytes(ctx, "bob/notes.txt"))
	require.NoError(t, gw.DeleteBytes(ctx, "bob/notes.txt"))
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := fs.New("")
	assert.Error(t, err)
}
