package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTesting(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	assert.NoError(t, db.Ping())
}

func TestOpenForTestingIsolated(t *testing.T) {
	a, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	b, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, b.Close()) })

	_, err = a.Exec("INSERT INTO collections (name) VALUES ('users')")
	require.NoError(t, err)

	var n int
	require.NoError(t, b.QueryRow("SELECT COUNT(*) FROM collections").Scan(&n))
	assert.Zero(t, n)
}

func TestMigrationsApply(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	var tableName string

	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='collections'").Scan(&tableName)
	assert.NoError(t, err)
	assert.Equal(t, "collections", tableName)

	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='records'").Scan(&tableName)
	assert.NoError(t, err)
	assert.Equal(t, "records", tableName)
}

func TestOpenFileTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketlabel.db")

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Exec("INSERT INTO collections (name) VALUES ('labels')")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Reopening must not re-run applied migrations.
	second, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, second.Close()) })

	var n int
	require.NoError(t, second.QueryRow("SELECT COUNT(*) FROM collections").Scan(&n))
	assert.Equal(t, 1, n)
}
