// Package sqlite keeps collections in a SQLite database. Each record is a
// JSON object keyed by column name, and the column order of a collection is
// stored alongside it.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vbonduro/marketlabel/internal/table"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

type SQLiteStore struct {
	db *sql.DB
}

var (
	_ tablestore.Store    = (*SQLiteStore)(nil)
	_ tablestore.Appender = (*SQLiteStore)(nil)
)

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) ReadAll(ctx context.Context, collection string) (*table.Table, error) {
	columns, found, err := loadColumns(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	if !found {
		return table.New(), nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM records WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	t := table.New(columns...)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec map[string]string
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = rec[c]
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return t, nil
}

// WriteAll deletes and re-inserts the collection inside one transaction.
func (s *SQLiteStore) WriteAll(ctx context.Context, collection string, t *table.Table) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		if err := saveColumns(ctx, tx, collection, t.Columns); err != nil {
			return err
		}
		return insertRows(ctx, tx, collection, t)
	})
}

// Append adds rows in one transaction without rewriting existing records.
// Columns the collection does not have yet are added to its schema.
func (s *SQLiteStore) Append(ctx context.Context, collection string, rows *table.Table) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		columns, _, err := loadColumns(ctx, tx, collection)
		if err != nil {
			return err
		}
		merged := table.New(columns...)
		merged.AppendTable(rows)

		if err := saveColumns(ctx, tx, collection, merged.Columns); err != nil {
			return err
		}
		return insertRows(ctx, tx, collection, merged)
	})
}

// FindRecordID returns the row id of the first record, in insertion order,
// whose field equals value.
func (s *SQLiteStore) FindRecordID(ctx context.Context, collection, field, value string) (string, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM records WHERE collection = ? AND json_extract(data, ?) = ? ORDER BY id LIMIT 1`,
		collection, jsonPath(field), value,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to find record: %w", err)
	}
	return strconv.FormatInt(id, 10), true, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (also failed to roll back: %v)", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadColumns(ctx context.Context, q querier, collection string) ([]string, bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT columns FROM collections WHERE name = ?`, collection).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load collection: %w", err)
	}
	var columns []string
	if err := json.Unmarshal([]byte(raw), &columns); err != nil {
		return nil, false, fmt.Errorf("failed to decode columns: %w", err)
	}
	return columns, true, nil
}

func saveColumns(ctx context.Context, tx *sql.Tx, collection string, columns []string) error {
	if columns == nil {
		columns = []string{}
	}
	raw, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to encode columns: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO collections (name, columns, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET columns = excluded.columns, updated_at = excluded.updated_at`,
		collection, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, collection string, t *table.Table) error {
	if t.Len() == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (collection, data) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range t.Rows {
		data, err := json.Marshal(t.Record(i))
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, collection, string(data)); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}
	return nil
}

// jsonPath quotes field as a single JSON object key.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}
