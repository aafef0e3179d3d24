package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/table"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func labelsTable() *table.Table {
	t := table.New("photo_url", "user_id", "score")
	t.Rows = [][]string{
		{"https://img/1.jpg", "a@x.com", "3"},
		{"https://img/2.jpg", "b@x.com", "5"},
	}
	return t
}

func TestLocalStoreWriteAndReadAll(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	want := labelsTable()
	require.NoError(t, store.WriteAll(ctx, "labels", want))

	got, err := store.ReadAll(ctx, "labels")
	require.NoError(t, err)
	assert.Equal(t, want.Columns, got.Columns)
	assert.ElementsMatch(t, want.Rows, got.Rows)
}

func TestLocalStoreReadAllMissingCollection(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	got, err := store.ReadAll(context.Background(), "users")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestLocalStoreWriteAllReplaces(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.WriteAll(ctx, "labels", labelsTable()))

	replacement := table.New("company")
	replacement.Rows = [][]string{{"Acme"}}
	require.NoError(t, store.WriteAll(ctx, "labels", replacement))

	got, err := store.ReadAll(ctx, "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"company"}, got.Columns)
	assert.Equal(t, 1, got.Len())

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStoreConcurrentAppendsKeepAllRows(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			row := table.New("user_id")
			row.Rows = [][]string{{"a@x.com"}}
			assert.NoError(t, store.Append(ctx, "labels", row))
		}()
	}
	wg.Wait()

	got, err := store.ReadAll(ctx, "labels")
	require.NoError(t, err)
	assert.Equal(t, 20, got.Len())
}

func TestLocalStoreFindRecordIDInCSV(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.WriteAll(ctx, "labels", labelsTable()))

	id, found, err := store.FindRecordID(ctx, "labels", "user_id", "b@x.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", id)

	_, found, err = store.FindRecordID(ctx, "labels", "user_id", "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.FindRecordID(ctx, "labels", "no_such_column", "x")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLocalStoreFilesAndNamespaces(t *testing.T) {
	dir := t.TempDir()
	imgDir := filepath.Join(dir, "2024-06-01", "Abilene_files")
	require.NoError(t, os.MkdirAll(imgDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(imgDir, "123.png"), []byte("png data"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2024-05-01"), 0755))

	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2024-06-01", "2024-05-01"}, names)

	ns, err := store.Namespace(ctx, "2024-06-01")
	require.NoError(t, err)

	id, found, err := ns.FindRecordID(ctx, "Abilene_files", tablestore.FileNameField, "123.png")
	require.NoError(t, err)
	require.True(t, found)

	rc, mime, err := ns.(tablestore.BlobOpener).Open(ctx, "Abilene_files", id)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png data", string(data))
	assert.Equal(t, "image/png", mime)

	_, found, err = ns.FindRecordID(ctx, "Abilene_files", tablestore.FileNameField, "missing.jpg")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLocalStoreNamespaceNotFound(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Namespace(context.Background(), "2099-01-01")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocalStoreOpenNotFound(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Open(context.Background(), "images", "nonexistent.jpg")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocalStorePathTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = store.Open(ctx, "images", "../../etc/passwd")
	assert.Error(t, err)

	_, err = store.ReadAll(ctx, "../../etc/passwd")
	assert.Error(t, err)

	_, err = store.Namespace(ctx, "..")
	assert.Error(t, err)
}
