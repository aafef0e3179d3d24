package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/tablestore/local"
)

const catalogCSV = `listing_url,photo_url,price,title,location,origin_city_list
https://market/1,https://img/a/1.jpg,$20,Drill,"Abilene, TX",Abilene
https://market/2,https://img/a/2.jpg,$35,Saw,"Abilene, TX",Abilene
https://market/2,https://img/a/2.jpg,$35,Saw,"Abilene, TX",Abilene
https://market/3,,$5,No photo,"Abilene, TX",Abilene
`

type countingRoot struct {
	*local.LocalStore
	lists int
}

func (c *countingRoot) Namespaces(ctx context.Context) ([]string, error) {
	c.lists++
	return c.LocalStore.Namespaces(ctx)
}

func writeDataset(t *testing.T, base, namespace, content string) {
	t.Helper()
	dir := filepath.Join(base, namespace)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Abilene.csv"), []byte(content), 0644))
}

func TestLoaderPicksLatestDataset(t *testing.T) {
	base := t.TempDir()
	writeDataset(t, base, "2024-05-01", "photo_url\nhttps://img/old.jpg\n")
	writeDataset(t, base, "2024-06-01", catalogCSV)

	root, err := local.NewLocalStore(base)
	require.NoError(t, err)

	c, err := NewLoader(root, "Abilene", 0).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", c.Namespace)
	assert.Equal(t, "Abilene_files", c.ImageCollection)
	require.Len(t, c.Items, 2)
	assert.Equal(t, "Drill", c.Items[0].Title)
	assert.Equal(t, "Abilene, TX", c.Items[0].Location)

	item, ok := c.Lookup("https://img/a/2.jpg")
	assert.True(t, ok)
	assert.Equal(t, "$35", item.Price)

	_, ok = c.Lookup("https://img/old.jpg")
	assert.False(t, ok)
}

func TestLoaderNoDatasets(t *testing.T) {
	root, err := local.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewLoader(root, "Abilene", 0).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoaderMissingCatalogFileIsEmpty(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "2024-06-01"), 0755))
	root, err := local.NewLocalStore(base)
	require.NoError(t, err)

	c, err := NewLoader(root, "Abilene", 0).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestLoaderCaches(t *testing.T) {
	base := t.TempDir()
	writeDataset(t, base, "2024-06-01", catalogCSV)
	ls, err := local.NewLocalStore(base)
	require.NoError(t, err)
	root := &countingRoot{LocalStore: ls}
	ctx := context.Background()

	loader := NewLoader(root, "Abilene", time.Hour)
	first, err := loader.Load(ctx)
	require.NoError(t, err)
	second, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, root.lists)

	loader.Invalidate()
	_, err = loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, root.lists)
}

func TestLoaderWithoutCacheReloads(t *testing.T) {
	base := t.TempDir()
	writeDataset(t, base, "2024-06-01", catalogCSV)
	ls, err := local.NewLocalStore(base)
	require.NoError(t, err)
	root := &countingRoot{LocalStore: ls}
	ctx := context.Background()

	loader := NewLoader(root, "Abilene", 0)
	_, err = loader.Load(ctx)
	require.NoError(t, err)
	_, err = loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, root.lists)
}

func TestLatest(t *testing.T) {
	got, ok := Latest([]string{"2024-05-01", "2024-06-15", "2023-12-31", ""})
	assert.True(t, ok)
	assert.Equal(t, "2024-06-15", got)

	_, ok = Latest([]string{" "})
	assert.False(t, ok)
}
