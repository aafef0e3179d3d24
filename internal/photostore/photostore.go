// Package photostore serves listing images from the image collection of the
// current catalog.
package photostore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/vbonduro/marketlabel/internal/catalog"
	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

type PhotoStore interface {
	Get(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// CatalogSource yields the catalog whose image collection is served.
type CatalogSource interface {
	Load(ctx context.Context) (*catalog.Catalog, error)
}

// FolderPhotoStore resolves an image file name to a store record id with
// FindRecordID and opens it. Resolved ids are cached for idTTL; a ttl of zero
// resolves on every request.
type FolderPhotoStore struct {
	catalogs CatalogSource
	ids      *cache.Cache
	idTTL    time.Duration
}

var _ PhotoStore = (*FolderPhotoStore)(nil)

func NewFolderPhotoStore(catalogs CatalogSource, idTTL time.Duration) *FolderPhotoStore {
	return &FolderPhotoStore{catalogs: catalogs, ids: cache.New(idTTL, 0), idTTL: idTTL}
}

func (s *FolderPhotoStore) Get(ctx context.Context, name string) (io.ReadCloser, string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, "", fmt.Errorf("image %q: %w", name, domain.ErrNotFound)
	}

	c, err := s.catalogs.Load(ctx)
	if err != nil {
		return nil, "", err
	}
	opener, ok := c.Store.(tablestore.BlobOpener)
	if !ok {
		return nil, "", fmt.Errorf("dataset store cannot serve files")
	}

	id, err := s.lookup(ctx, c, name)
	if err != nil {
		return nil, "", err
	}

	rc, mimeType, err := opener.Open(ctx, c.ImageCollection, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image %s: %w", name, err)
	}
	return rc, mimeType, nil
}

func (s *FolderPhotoStore) lookup(ctx context.Context, c *catalog.Catalog, name string) (string, error) {
	key := c.Namespace + "/" + name
	if s.idTTL > 0 {
		if v, ok := s.ids.Get(key); ok {
			return v.(string), nil
		}
	}

	id, found, err := c.Store.FindRecordID(ctx, c.ImageCollection, tablestore.FileNameField, name)
	if err != nil {
		return "", fmt.Errorf("failed to find image %s: %w", name, err)
	}
	if !found {
		return "", fmt.Errorf("image %s: %w", name, domain.ErrNotFound)
	}

	if s.idTTL > 0 {
		s.ids.SetDefault(key, id)
	}
	return id, nil
}
