// Package local stores collections as CSV files in a directory tree. Child
// directories are namespaces and may also hold raw files such as listing
// images.
package local

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/table"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

const csvExt = ".csv"

type LocalStore struct {
	basePath string
	// mu serializes writers within this process.
	mu *sync.Mutex
}

var (
	_ tablestore.FileStore = (*LocalStore)(nil)
	_ tablestore.Appender  = (*LocalStore)(nil)
)

func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &LocalStore{basePath: basePath, mu: &sync.Mutex{}}, nil
}

func (s *LocalStore) ReadAll(ctx context.Context, collection string) (*table.Table, error) {
	filePath, err := s.safeJoin(collection + csvExt)
	if err != nil {
		return nil, err
	}
	return readTable(filePath)
}

func (s *LocalStore) WriteAll(ctx context.Context, collection string, t *table.Table) error {
	filePath, err := s.safeJoin(collection + csvExt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeTableAtomic(filePath, t)
}

// Append re-reads and rewrites the collection while holding the writer lock,
// so appends from one process never lose each other's rows.
func (s *LocalStore) Append(ctx context.Context, collection string, rows *table.Table) error {
	filePath, err := s.safeJoin(collection + csvExt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := readTable(filePath)
	if err != nil {
		return err
	}
	current.AppendTable(rows)
	return writeTableAtomic(filePath, current)
}

// FindRecordID matches file names when collection is a directory and a CSV
// column otherwise. For CSV collections the id is the 0-based row index.
func (s *LocalStore) FindRecordID(ctx context.Context, collection, field, value string) (string, bool, error) {
	dirPath, err := s.safeJoin(collection)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(dirPath); err == nil && info.IsDir() {
		if field != tablestore.FileNameField && field != tablestore.FileIDField {
			return "", false, fmt.Errorf("unsupported field %q for file collection", field)
		}
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			return "", false, fmt.Errorf("failed to list %s: %w", collection, err)
		}
		for _, e := range entries {
			if !e.IsDir() && e.Name() == value {
				return e.Name(), true, nil
			}
		}
		return "", false, nil
	}

	t, err := s.ReadAll(ctx, collection)
	if err != nil {
		return "", false, err
	}
	if t.ColumnIndex(field) < 0 {
		return "", false, nil
	}
	for i := range t.Rows {
		if t.Value(i, field) == value {
			return strconv.Itoa(i), true, nil
		}
	}
	return "", false, nil
}

func (s *LocalStore) Open(ctx context.Context, collection, id string) (io.ReadCloser, string, error) {
	filePath, err := s.safeJoin(filepath.Join(collection, id))
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("file %s/%s: %w", collection, id, domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return f, extToMimeType(filePath), nil
}

func (s *LocalStore) Namespaces(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *LocalStore) Namespace(ctx context.Context, name string) (tablestore.Store, error) {
	dirPath, err := s.safeJoin(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("namespace %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat namespace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("namespace %s is not a directory: %w", name, domain.ErrNotFound)
	}
	return &LocalStore{basePath: dirPath, mu: s.mu}, nil
}

func readTable(filePath string) (*table.Table, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return table.New(), nil
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("failed to close file", "path", filePath, "error", err)
		}
	}()

	t, err := table.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(filePath), err)
	}
	return t, nil
}

// writeTableAtomic writes to a temp file in the target directory and renames
// it over the target.
func writeTableAtomic(filePath string, t *table.Table) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()

	cleanup := func() {
		if rerr := os.Remove(tmpPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			slog.Error("failed to remove temp file", "path", tmpPath, "error", rerr)
		}
	}

	w := bufio.NewWriter(f)
	if err := table.WriteCSV(w, t); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("failed to flush file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

// safeJoin resolves rel relative to basePath and rejects directory traversal.
func (s *LocalStore) safeJoin(rel string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, rel))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func extToMimeType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case csvExt:
		return "text/csv"
	default:
		return "image/jpeg"
	}
}
