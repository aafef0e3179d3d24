package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/table"
	"github.com/vbonduro/marketlabel/internal/tablestore"
)

// Layouts accepted when reading label timestamps. Older files carry local
// timestamps without a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

type LabelStore struct {
	store tablestore.Store
}

func NewLabelStore(s tablestore.Store) *LabelStore {
	return &LabelStore{store: s}
}

// List returns every label of every user in stored order.
func (s *LabelStore) List(ctx context.Context) ([]*domain.Label, error) {
	t, err := readCollection(ctx, s.store, LabelsCollection, LabelColumns)
	if err != nil {
		return nil, err
	}

	labels := make([]*domain.Label, 0, t.Len())
	for i := range t.Rows {
		labels = append(labels, labelFromRecord(t.Record(i)))
	}
	return labels, nil
}

// Append persists one label. The collection is re-read immediately before
// the write unless the store appends natively.
func (s *LabelStore) Append(ctx context.Context, label *domain.Label) error {
	row := table.New(LabelColumns...)
	row.AppendRecord(labelRecord(label))
	if err := tablestore.AppendRows(ctx, s.store, LabelsCollection, row); err != nil {
		return fmt.Errorf("failed to append label: %w", err)
	}
	return nil
}

func labelRecord(l *domain.Label) map[string]string {
	return map[string]string{
		"listing_url":      l.ListingURL,
		"photo_url":        l.PhotoURL,
		"price":            l.Price,
		"title":            l.Title,
		"location":         l.Location,
		"origin_city_list": l.OriginCityList,
		"user_id":          l.UserID,
		"company":          l.Company,
		"image_file":       l.ImageFile,
		"score":            strconv.Itoa(l.Score),
		"binary_flag":      l.BinaryFlag,
		"timestamp":        l.Timestamp.UTC().Format(time.RFC3339),
	}
}

func labelFromRecord(rec map[string]string) *domain.Label {
	userID := rec["user_id"]
	if userID == "" {
		userID = rec["email"]
	}
	return &domain.Label{
		Item:       ItemFromRecord(rec),
		UserID:     NormalizeUserID(userID),
		Company:    rec["company"],
		ImageFile:  rec["image_file"],
		Score:      parseScore(rec["score"]),
		BinaryFlag: rec["binary_flag"],
		Timestamp:  parseTimestamp(rec["timestamp"]),
	}
}

// NormalizeUserID returns the canonical form of a login e-mail. Rows written
// before user ids were canonical may carry the address as typed.
func NormalizeUserID(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ItemFromRecord maps a catalog or label row onto an Item.
func ItemFromRecord(rec map[string]string) domain.Item {
	return domain.Item{
		ListingURL:     rec["listing_url"],
		PhotoURL:       rec["photo_url"],
		Price:          rec["price"],
		Title:          rec["title"],
		Location:       rec["location"],
		OriginCityList: rec["origin_city_list"],
	}
}

// parseScore accepts integers and integral floats such as "3.0". Anything
// else reads as 0.
func parseScore(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	return 0
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return ts
		}
	}
	return time.Time{}
}
