package domain

import (
	"strings"
	"time"
)

const (
	// BatchSize is the number of labels that make up one batch.
	BatchSize = 30

	MinScore = 1
	MaxScore = 5

	FlagYes = "Yes"
	FlagNo  = "No"
)

// Item is one marketplace listing from the catalog. PhotoURL is unique within
// a catalog.
type Item struct {
	ListingURL     string
	PhotoURL       string
	Price          string
	Title          string
	Location       string
	OriginCityList string
}

// ImageFile is the filename of the listing image: the last path segment of
// the photo URL.
func (i Item) ImageFile() string {
	if idx := strings.LastIndexByte(i.PhotoURL, '/'); idx >= 0 {
		return i.PhotoURL[idx+1:]
	}
	return i.PhotoURL
}

// Label is one user's judgment on one item. Item attributes are copied at
// submission time.
type Label struct {
	Item
	UserID     string
	Company    string
	ImageFile  string
	Score      int
	BinaryFlag string
	Timestamp  time.Time
}

type User struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
	Password  string
}

type Company struct {
	Name string
}

// Progress is derived from the label collection on every access and never
// stored.
type Progress struct {
	Labeled          int
	CompletedBatches int
	BatchPosition    int
}

// Remaining returns how many labels are left in the current batch.
func (p Progress) Remaining() int {
	return BatchSize - p.BatchPosition
}

// Session identifies the authenticated user for the duration of one login.
// AckedBatches is presentation state: the number of completed batches the
// user has already been shown the "batch complete" screen for.
type Session struct {
	UserID       string
	Company      string
	AckedBatches int
}
