// Package drive stores collections as CSV files inside a Google Drive folder.
// Sub-folders are namespaces, and folders of raw files (listing images) can be
// searched by file name and opened.
package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/gdrive"
	"github.com/vbonduro/marketlabel/internal/table"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

const (
	csvExt      = ".csv"
	csvMimeType = "text/csv"
)

type DriveStore struct {
	client   *gdrive.Client
	folderID string
}

var _ tablestore.FileStore = (*DriveStore)(nil)

// NewDriveStore returns a store rooted at the folder with the given id.
func NewDriveStore(client *gdrive.Client, folderID string) *DriveStore {
	return &DriveStore{client: client, folderID: folderID}
}

// OpenRoot resolves the top-level folder named rootName and returns a store
// rooted there.
func OpenRoot(ctx context.Context, client *gdrive.Client, rootName string) (*DriveStore, error) {
	id, found, err := client.FindFolder(ctx, rootName, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root folder: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("root folder %q: %w", rootName, domain.ErrNotFound)
	}
	return NewDriveStore(client, id), nil
}

func (s *DriveStore) ReadAll(ctx context.Context, collection string) (*table.Table, error) {
	f, err := s.client.FindFile(ctx, collection+csvExt, s.folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", collection, err)
	}
	if f == nil {
		return table.New(), nil
	}

	rc, _, err := s.client.Download(ctx, f.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", collection, err)
	}
	defer rc.Close()

	t, err := table.ReadCSV(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return t, nil
}

// WriteAll encodes the table in memory and upserts it by file name. The
// upsert is check-then-act, so two processes writing a new collection at the
// same time may each create a file.
func (s *DriveStore) WriteAll(ctx context.Context, collection string, t *table.Table) error {
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, t); err != nil {
		return fmt.Errorf("failed to encode %s: %w", collection, err)
	}
	if _, err := s.client.Upsert(ctx, collection+csvExt, s.folderID, csvMimeType, &buf); err != nil {
		return fmt.Errorf("failed to upload %s: %w", collection, err)
	}
	return nil
}

// FindRecordID searches a sub-folder named collection when field is the file
// name or id, returning the Drive file id. Otherwise it matches a column of
// the CSV collection and returns the 0-based row index.
func (s *DriveStore) FindRecordID(ctx context.Context, collection, field, value string) (string, bool, error) {
	if field == tablestore.FileNameField || field == tablestore.FileIDField {
		folderID, found, err := s.client.FindFolder(ctx, collection, s.folderID)
		if err != nil {
			return "", false, fmt.Errorf("failed to resolve %s: %w", collection, err)
		}
		if found {
			return s.findFile(ctx, folderID, field, value)
		}
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

func (s *DriveStore) findFile(ctx context.Context, folderID, field, value string) (string, bool, error) {
	if field == tablestore.FileIDField {
		return value, value != "", nil
	}
	f, err := s.client.FindFile(ctx, value, folderID)
	if err != nil {
		return "", false, fmt.Errorf("failed to find file %s: %w", value, err)
	}
	if f == nil {
		return "", false, nil
	}
	return f.Id, true, nil
}

// Open downloads the Drive file with the given id. collection is not needed
// to address a Drive file and is ignored.
func (s *DriveStore) Open(ctx context.Context, collection, id string) (io.ReadCloser, string, error) {
	rc, mimeType, err := s.client.Download(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s/%s: %w", collection, id, err)
	}
	return rc, mimeType, nil
}

func (s *DriveStore) Namespaces(ctx context.Context) ([]string, error) {
	folders, err := s.client.ListFolders(ctx, s.folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	names := make([]string, 0, len(folders))
	for _, f := range folders {
		names = append(names, f.Name)
	}
	return names, nil
}

func (s *DriveStore) Namespace(ctx context.Context, name string) (tablestore.Store, error) {
	id, found, err := s.client.FindFolder(ctx, name, s.folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve namespace %s: %w", name, err)
	}
	if !found {
		return nil, fmt.Errorf("namespace %s: %w", name, domain.ErrNotFound)
	}
	return NewDriveStore(s.client, id), nil
}
