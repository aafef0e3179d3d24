// Package tablestore defines the tabular record store: named, schema-less
// collections that are read and replaced whole.
package tablestore

import (
	"context"
	"io"

	"github.com/vbonduro/marketlabel/internal/table"
)

// Store is the persistence primitive for users, companies, catalog and labels.
type Store interface {
	// ReadAll returns the full collection. A collection that does not exist
	// yet yields an empty table, not an error.
	ReadAll(ctx context.Context, collection string) (*table.Table, error)
	// WriteAll replaces the collection. A subsequent ReadAll observes either
	// the previous or the new contents, never a mix. Concurrent writers race
	// and the last one wins.
	WriteAll(ctx context.Context, collection string, t *table.Table) error
	// FindRecordID returns the identifier of the first record in collection
	// whose field equals value. found is false when nothing matches.
	FindRecordID(ctx context.Context, collection, field, value string) (id string, found bool, err error)
}

// Appender is implemented by stores that can add rows without replacing the
// collection, which removes the lost-update window of read-modify-WriteAll.
type Appender interface {
	Append(ctx context.Context, collection string, rows *table.Table) error
}

// BlobOpener is implemented by file-backed stores whose collections may hold
// raw files (listing images) addressed by the id FindRecordID returns.
type BlobOpener interface {
	Open(ctx context.Context, collection, id string) (io.ReadCloser, string, error)
}

// Namespacer resolves child namespaces (Drive sub-folders, sub-directories)
// of a store.
type Namespacer interface {
	// Namespaces lists child namespace names in no particular order.
	Namespaces(ctx context.Context) ([]string, error)
	// Namespace returns the store rooted at the named child namespace.
	Namespace(ctx context.Context, name string) (Store, error)
}

// FileStore is a Store that also serves raw files and child namespaces.
type FileStore interface {
	Store
	BlobOpener
	Namespacer
}

// Field names recognised by file-backed stores when FindRecordID targets a
// folder of raw files rather than a CSV collection.
const (
	FileNameField = "name"
	FileIDField   = "id"
)

// AppendRows appends rows to the collection, using Appender when the store
// supports it and read-modify-WriteAll otherwise.
func AppendRows(ctx context.Context, s Store, collection string, rows *table.Table) error {
	if a, ok := s.(Appender); ok {
		return a.Append(ctx, collection, rows)
	}
	current, err := s.ReadAll(ctx, collection)
	if err != nil {
		return err
	}
	current.AppendTable(rows)
	return s.WriteAll(ctx, collection, current)
}
