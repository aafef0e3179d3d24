// Package catalog resolves the current dataset and loads its items.
//
// Datasets live in dated namespaces of the file store (for example
// "2024-06-01"). The latest namespace by name holds the catalog collection
// <dataset> and the image collection <dataset>_files.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/store"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

const (
	imageSuffix = "_files"
	cacheKey    = "catalog"
)

// Catalog is the item list of one dataset plus the store its images live in.
type Catalog struct {
	Namespace       string
	Items           []domain.Item
	Store           tablestore.Store
	ImageCollection string

	byPhoto map[string]int
}

// Lookup returns the item with the given photo URL.
func (c *Catalog) Lookup(photoURL string) (domain.Item, bool) {
	i, ok := c.byPhoto[photoURL]
	if !ok {
		return domain.Item{}, false
	}
	return c.Items[i], true
}

type Loader struct {
	root    tablestore.Namespacer
	dataset string
	cache   *cache.Cache
	ttl     time.Duration
}

// NewLoader returns a loader for the named dataset. A ttl of zero disables
// caching and every Load reads the store.
func NewLoader(root tablestore.Namespacer, dataset string, ttl time.Duration) *Loader {
	return &Loader{
		root:    root,
		dataset: dataset,
		// No janitor: there is a single key and expiry is checked on Get.
		cache: cache.New(ttl, 0),
		ttl:   ttl,
	}
}

// Load returns the catalog of the latest dataset namespace. It returns
// ErrNotFound when there are no dataset namespaces.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	if l.ttl > 0 {
		if v, ok := l.cache.Get(cacheKey); ok {
			return v.(*Catalog), nil
		}
	}

	c, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	if l.ttl > 0 {
		l.cache.SetDefault(cacheKey, c)
	}
	return c, nil
}

// Invalidate drops the cached catalog.
func (l *Loader) Invalidate() {
	l.cache.Delete(cacheKey)
}

func (l *Loader) load(ctx context.Context) (*Catalog, error) {
	names, err := l.root.Namespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	latest, ok := Latest(names)
	if !ok {
		return nil, fmt.Errorf("dataset folders: %w", domain.ErrNotFound)
	}

	ns, err := l.root.Namespace(ctx, latest)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", latest, err)
	}

	t, err := ns.ReadAll(ctx, l.dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s/%s: %w", latest, l.dataset, err)
	}

	c := &Catalog{
		Namespace:       latest,
		Store:           ns,
		ImageCollection: l.dataset + imageSuffix,
		byPhoto:         make(map[string]int, t.Len()),
	}
	for i := range t.Rows {
		item := store.ItemFromRecord(t.Record(i))
		if item.PhotoURL == "" {
			continue
		}
		if _, dup := c.byPhoto[item.PhotoURL]; dup {
			continue
		}
		c.byPhoto[item.PhotoURL] = len(c.Items)
		c.Items = append(c.Items, item)
	}

	slog.Info("catalog loaded", "dataset", l.dataset, "namespace", latest, "items", len(c.Items))
	return c, nil
}

// Latest returns the greatest non-blank name. Dated names in YYYY-MM-DD form
// therefore resolve to the most recent date.
func Latest(names []string) (string, bool) {
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			sorted = append(sorted, n)
		}
	}
	if len(sorted) == 0 {
		return "", false
	}
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	return sorted[0], true
}
