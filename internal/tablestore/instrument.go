package tablestore

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/vbonduro/marketlabel/internal/table"
)

// Observer receives one call per store operation.
type Observer interface {
	ObserveStoreOp(backend, op string, d time.Duration, err error)
}

// Instrument wraps s so every operation is timed, counted and debug-logged.
// Optional capabilities of s (Appender, BlobOpener, Namespacer) stay visible
// through the wrapper only when s implements them.
func Instrument(s Store, backend string, obs Observer, logger *slog.Logger) Store {
	base := &instrumented{next: s, backend: backend, obs: obs, logger: logger}

	_, canAppend := s.(Appender)
	fs, isFileStore := s.(FileStore)
	switch {
	case isFileStore && canAppend:
		return &instrumentedFileAppender{instrumentedFile{instrumented: base, files: fs}}
	case isFileStore:
		return &instrumentedFile{instrumented: base, files: fs}
	case canAppend:
		return &instrumentedAppender{instrumented: base}
	default:
		return base
	}
}

type instrumented struct {
	next    Store
	backend string
	obs     Observer
	logger  *slog.Logger
}

func (s *instrumented) observe(op, collection string, start time.Time, err error) {
	d := time.Since(start)
	if s.obs != nil {
		s.obs.ObserveStoreOp(s.backend, op, d, err)
	}
	if s.logger != nil {
		s.logger.Debug("store operation",
			"backend", s.backend,
			"op", op,
			"collection", collection,
			"duration_ms", d.Milliseconds(),
			"error", err,
		)
	}
}

func (s *instrumented) ReadAll(ctx context.Context, collection string) (*table.Table, error) {
	start := time.Now()
	t, err := s.next.ReadAll(ctx, collection)
	s.observe("read_all", collection, start, err)
	return t, err
}

func (s *instrumented) WriteAll(ctx context.Context, collection string, t *table.Table) error {
	start := time.Now()
	err := s.next.WriteAll(ctx, collection, t)
	s.observe("write_all", collection, start, err)
	return err
}

func (s *instrumented) FindRecordID(ctx context.Context, collection, field, value string) (string, bool, error) {
	start := time.Now()
	id, found, err := s.next.FindRecordID(ctx, collection, field, value)
	s.observe("find_record_id", collection, start, err)
	return id, found, err
}

type instrumentedAppender struct {
	*instrumented
}

func (s *instrumentedAppender) Append(ctx context.Context, collection string, rows *table.Table) error {
	start := time.Now()
	err := s.next.(Appender).Append(ctx, collection, rows)
	s.observe("append", collection, start, err)
	return err
}

type instrumentedFile struct {
	*instrumented
	files FileStore
}

func (s *instrumentedFile) Open(ctx context.Context, collection, id string) (io.ReadCloser, string, error) {
	start := time.Now()
	rc, mime, err := s.files.Open(ctx, collection, id)
	s.observe("open", collection, start, err)
	return rc, mime, err
}

func (s *instrumentedFile) Namespaces(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := s.files.Namespaces(ctx)
	s.observe("namespaces", "", start, err)
	return names, err
}

func (s *instrumentedFile) Namespace(ctx context.Context, name string) (Store, error) {
	start := time.Now()
	child, err := s.files.Namespace(ctx, name)
	s.observe("namespace", name, start, err)
	if err != nil {
		return nil, err
	}
	return Instrument(child, s.backend, s.obs, s.logger), nil
}

type instrumentedFileAppender struct {
	instrumentedFile
}

func (s *instrumentedFileAppender) Append(ctx context.Context, collection string, rows *table.Table) error {
	start := time.Now()
	err := s.next.(Appender).Append(ctx, collection, rows)
	s.observe("append", collection, start, err)
	return err
}
