package photostore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/marketlabel/internal/catalog"
	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/tablestore/local"
)

func setupPhotos(t *testing.T) (string, *FolderPhotoStore) {
	t.Helper()
	base := t.TempDir()
	images := filepath.Join(base, "2024-06-01", "Abilene_files")
	require.NoError(t, os.MkdirAll(images, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(images, "1.png"), []byte("png data"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "2024-06-01", "Abilene.csv"), []byte("photo_url\nhttps://img/1.png\n"), 0644))

	root, err := local.NewLocalStore(base)
	require.NoError(t, err)
	return images, NewFolderPhotoStore(catalog.NewLoader(root, "Abilene", 0), time.Hour)
}

func TestFolderPhotoStoreGet(t *testing.T) {
	_, photos := setupPhotos(t)

	rc, mimeType, err := photos.Get(context.Background(), "1.png")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png data", string(data))
	assert.Equal(t, "image/png", mimeType)
}

func TestFolderPhotoStoreMissingImage(t *testing.T) {
	_, photos := setupPhotos(t)

	_, _, err := photos.Get(context.Background(), "2.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFolderPhotoStoreRejectsPaths(t *testing.T) {
	_, photos := setupPhotos(t)

	for _, name := range []string{"", "..", "../Abilene.csv", `a\b.png`} {
		_, _, err := photos.Get(context.Background(), name)
		assert.ErrorIs(t, err, domain.ErrNotFound, name)
	}
}

func TestFolderPhotoStoreCachesIDs(t *testing.T) {
	images, photos := setupPhotos(t)
	ctx := context.Background()

	rc, _, err := photos.Get(ctx, "1.png")
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, 1, photos.ids.ItemCount())

	require.NoError(t, os.Remove(filepath.Join(images, "1.png")))
	_, _, err = photos.Get(ctx, "1.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFolderPhotoStoreZeroTTLDoesNotCache(t *testing.T) {
	base := t.TempDir()
	images := filepath.Join(base, "2024-06-01", "Abilene_files")
	require.NoError(t, os.MkdirAll(images, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(images, "1.png"), []byte("png data"), 0644))
	root, err := local.NewLocalStore(base)
	require.NoError(t, err)
	photos := NewFolderPhotoStore(catalog.NewLoader(root, "Abilene", 0), 0)

	rc, _, err := photos.Get(context.Background(), "1.png")
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Zero(t, photos.ids.ItemCount())
}
