package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/vbonduro/marketlabel/internal/catalog"
	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/labeling"
	"github.com/vbonduro/marketlabel/internal/metrics"
)

// labelRepository is the subset of store.LabelStore that LabelService requires.
type labelRepository interface {
	List(ctx context.Context) ([]*domain.Label, error)
	Append(ctx context.Context, label *domain.Label) error
}

// catalogSource is the subset of catalog.Loader that LabelService requires.
type catalogSource interface {
	Load(ctx context.Context) (*catalog.Catalog, error)
}

type LabelService struct {
	labels   labelRepository
	catalogs catalogSource
	metrics  *metrics.Metrics
	logger   *slog.Logger

	now func() time.Time
	rng *rand.Rand
}

func NewLabelService(labels labelRepository, catalogs catalogSource, m *metrics.Metrics, logger *slog.Logger) *LabelService {
	return &LabelService{
		labels:   labels,
		catalogs: catalogs,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Assignment is what the labeling page presents: progress plus either the
// next item, a finished-batch notice, or nothing left to label.
type Assignment struct {
	Progress         domain.Progress
	Position         int
	Item             *domain.Item
	BatchComplete    bool
	NoItemsRemaining bool
}

func (s *LabelService) Assign(ctx context.Context, sess domain.Session) (*Assignment, error) {
	labels, err := s.labels.List(ctx)
	if err != nil {
		return nil, err
	}

	progress := labeling.ComputeProgress(labels, sess.UserID)
	a := &Assignment{
		Progress: progress,
		Position: labeling.DisplayPosition(progress, sess.AckedBatches),
	}
	if a.Position >= domain.BatchSize {
		a.BatchComplete = true
		return a, nil
	}

	c, err := s.catalogs.Load(ctx)
	if err != nil {
		return nil, err
	}

	a.Item = labeling.SelectNext(c.Items, labels, sess.UserID, s.rng)
	a.NoItemsRemaining = a.Item == nil
	return a, nil
}

func (s *LabelService) Progress(ctx context.Context, userID string) (domain.Progress, error) {
	labels, err := s.labels.List(ctx)
	if err != nil {
		return domain.Progress{}, err
	}
	return labeling.ComputeProgress(labels, userID), nil
}

// Submit records one judgment on the catalog item with the given photo URL
// and returns the label with the user's updated progress. Progress comes from
// the labels read before the write plus the new one, so a stored label is
// never reported as a failure. There is no check for an existing label of
// the same user and item.
func (s *LabelService) Submit(ctx context.Context, sess domain.Session, photoURL string, score int, flag string) (*domain.Label, domain.Progress, error) {
	c, err := s.catalogs.Load(ctx)
	if err != nil {
		return nil, domain.Progress{}, err
	}
	item, ok := c.Lookup(photoURL)
	if !ok {
		return nil, domain.Progress{}, fmt.Errorf("item %s: %w", photoURL, domain.ErrNotFound)
	}

	label, err := labeling.NewLabel(item, sess, score, flag, s.now().UTC())
	if err != nil {
		return nil, domain.Progress{}, err
	}

	existing, err := s.labels.List(ctx)
	if err != nil {
		return nil, domain.Progress{}, err
	}
	if err := s.labels.Append(ctx, label); err != nil {
		return nil, domain.Progress{}, err
	}
	s.metrics.LabelSubmitted(flag)
	s.logger.Info("label submitted",
		"user_id", sess.UserID,
		"image_file", label.ImageFile,
		"score", label.Score,
		"binary_flag", label.BinaryFlag,
	)

	return label, labeling.ComputeProgress(append(existing[:len(existing):len(existing)], label), sess.UserID), nil
}

// AcknowledgeBatch dismisses a finished batch so the displayed position
// resets to zero. A session in the middle of a batch is returned unchanged.
// Only the session changes; stored labels are untouched.
func (s *LabelService) AcknowledgeBatch(ctx context.Context, sess domain.Session) (domain.Session, error) {
	progress, err := s.Progress(ctx, sess.UserID)
	if err != nil {
		return sess, err
	}

	shown := labeling.DisplayPosition(progress, sess.AckedBatches)
	position := labeling.StartNewBatch(shown)
	if position == shown {
		return sess, nil
	}
	sess.AckedBatches = progress.CompletedBatches
	s.logger.Debug("batch acknowledged",
		"user_id", sess.UserID,
		"completed_batches", progress.CompletedBatches,
		"position", position,
	)
	return sess, nil
}

// LabeledByUser counts stored labels per user id.
func (s *LabelService) LabeledByUser(ctx context.Context) (map[string]int, error) {
	labels, err := s.labels.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l.UserID]++
	}
	return counts, nil
}
