package images_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/shelf/internal/storage/images"
)

func TestNew(t *testing.T) {
	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data", "pictures")
		store, err := images.New(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, store.Dir())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := images.New("  ")
		assert.Error(t, err)
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		_, err := images.New(file)
		assert.Error(t, err)
	})
}

func TestPut(t *testing.T) {
	dir := t.TempDir()
	store, err := images.New(dir)
	require.NoError(t, err)

	path, err := store.Put(context.Background(), "syrniki-123.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "syrniki-123.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	// overwrite
	_, err = store.Put(context.Background(), "syrniki-123.jpg", []byte("png"))
	require.NoError(t, err)
	data, _ = os.ReadFile(path)
	assert.Equal(t, "png", string(data))
}

func TestPut_Rejects(t *testing.T) {
	store, err := images.New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../escape.jpg", []byte("x"))
	assert.ErrorContains(t, err, "path traversal")

	_, err = store.Put(context.Background(), "", []byte("x"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "a.jpg", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
