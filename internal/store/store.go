// Package store maps domain types onto collections of a tablestore.Store.
package store

import (
	"context"
	"fmt"

	"github.com/vbonduro/marketlabel/internal/table"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

// Collection names as they appear in the backing store.
const (
	UsersCollection     = "users"
	CompaniesCollection = "companies"
	LabelsCollection    = "labels"
)

var (
	UserColumns    = []string{"first_name", "last_name", "email", "company", "password"}
	CompanyColumns = []string{"company"}
	LabelColumns   = []string{
		"listing_url", "photo_url", "price", "title", "location", "origin_city_list",
		"user_id", "company", "image_file", "score", "binary_flag", "timestamp",
	}
)

// readCollection reads a collection and gives an empty one the default schema.
func readCollection(ctx context.Context, s tablestore.Store, collection string, columns []string) (*table.Table, error) {
	t, err := s.ReadAll(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}
	if len(t.Columns) == 0 {
		t.Columns = append(t.Columns, columns...)
	}
	return t, nil
}

// appendToSnapshot adds rec to the collection. Stores with Appender get a
// single-row append; others get current plus rec written back whole.
func appendToSnapshot(ctx context.Context, s tablestore.Store, collection string, current *table.Table, rec map[string]string) error {
	if a, ok := s.(tablestore.Appender); ok {
		row := table.New(current.Columns...)
		row.AppendRecord(rec)
		if err := a.Append(ctx, collection, row); err != nil {
			return fmt.Errorf("failed to append to %s: %w", collection, err)
		}
		return nil
	}

	current.AppendRecord(rec)
	if err := s.WriteAll(ctx, collection, current); err != nil {
		return fmt.Errorf("failed to write %s: %w", collection, err)
	}
	return nil
}
