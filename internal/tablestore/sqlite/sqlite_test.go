package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/marketlabel/internal/db"
	"github.com/vbonduro/marketlabel/internal/table"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	database, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewSQLiteStore(database)
}

func labelsTable() *table.Table {
	t := table.New("photo_url", "user_id", "score")
	t.Rows = [][]string{
		{"https://img/1.jpg", "a@x.com", "3"},
		{"https://img/2.jpg", "b@x.com", "5"},
	}
	return t
}

func TestSQLiteStoreReadAllMissingCollection(t *testing.T) {
	store := setupStore(t)

	got, err := store.ReadAll(context.Background(), "labels")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestSQLiteStoreWriteAndReadAll(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	want := labelsTable()
	require.NoError(t, store.WriteAll(ctx, "labels", want))

	got, err := store.ReadAll(ctx, "labels")
	require.NoError(t, err)
	assert.Equal(t, want.Columns, got.Columns)
	assert.ElementsMatch(t, want.Rows, got.Rows)
}

func TestSQLiteStoreWriteAllReplaces(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.WriteAll(ctx, "labels", labelsTable()))

	replacement := table.New("company")
	replacement.Rows = [][]string{{"Acme"}}
	require.NoError(t, store.WriteAll(ctx, "labels", replacement))

	got, err := store.ReadAll(ctx, "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"company"}, got.Columns)
	assert.Equal(t, [][]string{{"Acme"}}, got.Rows)
}

func TestSQLiteStoreCollectionsAreIndependent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.WriteAll(ctx, "labels", labelsTable()))

	companies := table.New("company")
	companies.Rows = [][]string{{"Acme"}}
	require.NoError(t, store.WriteAll(ctx, "companies", companies))

	got, err := store.ReadAll(ctx, "labels")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestSQLiteStoreAppendAddsColumns(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.WriteAll(ctx, "labels", labelsTable()))

	extra := table.New("user_id", "company")
	extra.Rows = [][]string{{"c@x.com", "Acme"}}
	require.NoError(t, store.Append(ctx, "labels", extra))

	got, err := store.ReadAll(ctx, "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"photo_url", "user_id", "score", "company"}, got.Columns)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, "", got.Value(0, "company"))
	assert.Equal(t, "c@x.com", got.Value(2, "user_id"))
	assert.Equal(t, "Acme", got.Value(2, "company"))
}

func TestSQLiteStoreConcurrentAppendsKeepAllRows(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := table.New("user_id", "photo_url")
			row.Rows = [][]string{{"a@x.com", fmt.Sprintf("https://img/%d.jpg", i)}}
			assert.NoError(t, store.Append(ctx, "labels", row))
		}(i)
	}
	wg.Wait()

	got, err := store.ReadAll(ctx, "labels")
	require.NoError(t, err)
	assert.Equal(t, 20, got.Len())
}

func TestSQLiteStoreFindRecordID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.WriteAll(ctx, "labels", labelsTable()))

	first, found, err := store.FindRecordID(ctx, "labels", "user_id", "a@x.com")
	require.NoError(t, err)
	require.True(t, found)

	second, found, err := store.FindRecordID(ctx, "labels", "user_id", "b@x.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEqual(t, first, second)

	_, found, err = store.FindRecordID(ctx, "labels", "user_id", "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.FindRecordID(ctx, "users", "email", "a@x.com")
	require.NoError(t, err)
	assert.False(t, found)
}
