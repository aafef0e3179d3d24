// Package labeling decides what a user labels next and accounts for their
// progress. Everything here is a pure function of its arguments.
package labeling

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/vbonduro/marketlabel/internal/domain"
)

// ComputeProgress counts the labels submitted by userID and splits the
// count into completed batches and a position in the current batch.
func ComputeProgress(labels []*domain.Label, userID string) domain.Progress {
	n := 0
	for _, l := range labels {
		if l.UserID == userID {
			n++
		}
	}
	return domain.Progress{
		Labeled:          n,
		CompletedBatches: n / domain.BatchSize,
		BatchPosition:    n % domain.BatchSize,
	}
}

// Remaining returns the catalog items userID has not labeled, in catalog
// order. Labels of other users do not affect the result.
func Remaining(catalog []domain.Item, labels []*domain.Label, userID string) []domain.Item {
	done := make(map[string]struct{})
	for _, l := range labels {
		if l.UserID == userID {
			done[l.PhotoURL] = struct{}{}
		}
	}

	remaining := make([]domain.Item, 0, len(catalog))
	for _, item := range catalog {
		if _, ok := done[item.PhotoURL]; !ok {
			remaining = append(remaining, item)
		}
	}
	return remaining
}

// SelectNext picks one remaining item uniformly at random, or nil when
// userID has labeled the whole catalog. A nil rng uses the global source.
func SelectNext(catalog []domain.Item, labels []*domain.Label, userID string, rng *rand.Rand) *domain.Item {
	remaining := Remaining(catalog, labels, userID)
	if len(remaining) == 0 {
		return nil
	}

	var i int
	if rng != nil {
		i = rng.IntN(len(remaining))
	} else {
		i = rand.IntN(len(remaining))
	}
	item := remaining[i]
	return &item
}

// StartNewBatch returns the batch position to display once the user
// dismisses a finished batch: zero when position has reached BatchSize,
// position otherwise. Stored data is never touched.
func StartNewBatch(position int) int {
	if position >= domain.BatchSize {
		return 0
	}
	return position
}

// DisplayPosition is the batch position shown to a user who has dismissed
// ackedBatches finished batches. A batch that was just completed and not yet
// dismissed shows as full (BatchSize) rather than wrapping to zero.
func DisplayPosition(p domain.Progress, ackedBatches int) int {
	if p.CompletedBatches > ackedBatches && p.BatchPosition == 0 {
		return domain.BatchSize
	}
	return p.BatchPosition
}

// NewLabel builds the label record for one submission. It returns a
// *domain.ValidationError when score is outside [MinScore, MaxScore] or flag
// is not FlagYes or FlagNo.
func NewLabel(item domain.Item, sess domain.Session, score int, flag string, now time.Time) (*domain.Label, error) {
	var errs []domain.FieldError
	if strings.TrimSpace(sess.UserID) == "" {
		errs = append(errs, domain.FieldError{Field: "user_id", Message: "is required"})
	}
	if score < domain.MinScore || score > domain.MaxScore {
		errs = append(errs, domain.FieldError{Field: "score", Message: "must be between 1 and 5"})
	}
	if flag != domain.FlagYes && flag != domain.FlagNo {
		errs = append(errs, domain.FieldError{Field: "binary_flag", Message: "must be Yes or No"})
	}
	if err := domain.NewValidationErrors(errs); err != nil {
		return nil, err
	}

	return &domain.Label{
		Item:       item,
		UserID:     sess.UserID,
		Company:    sess.Company,
		ImageFile:  item.ImageFile(),
		Score:      score,
		BinaryFlag: flag,
		Timestamp:  now,
	}, nil
}
