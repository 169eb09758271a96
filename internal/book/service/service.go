package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/librosapp/libros/backend/go-services/internal/book"
	"github.com/librosapp/libros/backend/go-services/internal/book/repository"
	"github.com/librosapp/libros/backend/go-services/internal/storage"
	"github.com/librosapp/libros/backend/go-services/pkg/metrics"
	"go.uber.org/zap"
)

// RecentLimit is how many books ListRecent returns at most.
const RecentLimit = 3

// cleanupTimeout bounds a single background cover removal.
const cleanupTimeout = 30 * time.Second

// Service implements the catalog operations over a record store and a cover
// file store.
type Service struct {
	repo    repository.Repository
	files   storage.FileStore
	log     *zap.Logger
	cleanup sync.WaitGroup
}

func New(repo repository.Repository, files storage.FileStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, files: files, log: log}
}

// Create validates in, stores the optional cover and persists the book.
func (s *Service) Create(ctx context.Context, in book.CreateInput, cover *storage.Upload) (b *book.Book, err error) {
	defer func() { observe("create", err) }()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	b = in.Book()
	if cover != nil {
		name, err := s.saveCover(ctx, *cover)
		if err != nil {
			return nil, err
		}
		b.CoverImage = name
	}
	if err := s.repo.Insert(ctx, b); err != nil {
		if b.CoverImage != "" {
			s.discardCover(b.CoverImage)
		}
		return nil, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id string) (b *book.Book, err error) {
	defer func() { observe("get", err) }()
	return s.repo.Get(ctx, id)
}

// List returns every book in insertion order.
func (s *Service) List(ctx context.Context) (out []*book.Book, err error) {
	defer func() { observe("list", err) }()
	return s.repo.List(ctx)
}

// Update merges the supplied fields over the stored book. A new cover
// replaces the old one, which is removed in the background.
func (s *Service) Update(ctx context.Context, id string, in book.UpdateInput, cover *storage.Upload) (b *book.Book, err error) {
	defer func() { observe("update", err) }()
	if err := in.Validate(cover != nil); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ch := book.Changes{UpdateInput: in}
	if cover != nil {
		name, err := s.saveCover(ctx, *cover)
		if err != nil {
			return nil, err
		}
		ch.CoverImage = &name
	}
	b, err = s.repo.Update(ctx, id, ch)
	if err != nil {
		if ch.CoverImage != nil {
			s.discardCover(*ch.CoverImage)
		}
		return nil, err
	}
	if ch.CoverImage != nil && current.CoverImage != "" && current.CoverImage != *ch.CoverImage {
		s.discardCover(current.CoverImage)
	}
	return b, nil
}

// Delete removes the book and returns it. Its cover file is kept.
func (s *Service) Delete(ctx context.Context, id string) (b *book.Book, err error) {
	defer func() { observe("delete", err) }()
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, c book.SearchCriteria) (out []*book.Book, err error) {
	defer func() { observe("search", err) }()
	return s.repo.Search(ctx, c)
}

// ListRecent returns up to RecentLimit books, newest first, or
// book.ErrNotFound when the catalog is empty.
func (s *Service) ListRecent(ctx context.Context) (out []*book.Book, err error) {
	defer func() { observe("recent", err) }()
	out, err = s.repo.Recent(ctx, RecentLimit)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, book.ErrNotFound
	}
	return out, nil
}

// UploadCover stores a standalone cover upload and returns its name.
func (s *Service) UploadCover(ctx context.Context, up storage.Upload) (string, error) {
	return s.saveCover(ctx, up)
}

// OpenCover opens a stored cover for streaming.
func (s *Service) OpenCover(ctx context.Context, name string) (*storage.Object, error) {
	return s.files.Open(ctx, name)
}

// Ping reports whether the record store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Drain waits for background cover removals to finish or ctx to end.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.cleanup.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) saveCover(ctx context.Context, up storage.Upload) (string, error) {
	name, err := s.files.Save(ctx, up)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedMedia) {
			metrics.CoverUploads.WithLabelValues("rejected").Inc()
			return "", err
		}
		metrics.CoverUploads.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("store cover: %w", err)
	}
	metrics.CoverUploads.WithLabelValues("stored").Inc()
	return name, nil
}

// discardCover removes a cover without blocking the caller. Failures are
// logged and counted only.
func (s *Service) discardCover(name string) {
	s.cleanup.Add(1)
	go func() {
		defer s.cleanup.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := s.files.Delete(ctx, name); err != nil {
			metrics.CoverCleanupFailures.Inc()
			s.log.Warn("cover cleanup failed", zap.String("file", name), zap.Error(err))
			return
		}
		s.log.Debug("cover removed", zap.String("file", name))
	}()
}

func observe(op string, err error) {
	outcome := "ok"
	var verr *book.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		outcome = "invalid"
	case errors.Is(err, book.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, storage.ErrUnsupportedMedia):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	metrics.BookOperations.WithLabelValues(op, outcome).Inc()
}
