package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/librosapp/libros/backend/go-services/internal/book"
	"github.com/librosapp/libros/backend/go-services/internal/book/repository"
	"github.com/librosapp/libros/backend/go-services/internal/storage"
	"github.com/librosapp/libros/backend/go-services/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

func validInput() book.CreateInput {
	return book.CreateInput{ISBN: "123", Title: "X", Author: "Y", Publisher: "Z", PageCount: 10}
}

func pngUpload(name string) *storage.Upload {
	return &storage.Upload{Name: name, ContentType: "image/png", Body: strings.NewReader(pngHeader + name)}
}

func newLocal(t *testing.T) (*Service, *repository.MemoryRepo, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	repo := repository.NewMemoryRepo()
	return New(repo, files, zap.NewNop()), repo, dir
}

func fileExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// recordingStore is a FileStore whose Delete can be made to fail.
type recordingStore struct {
	mu        sync.Mutex
	saved     []string
	deleted   []string
	deleteErr error
	saveErr   error
}

func (r *recordingStore) Save(_ context.Context, up storage.Upload) (string, error) {
	if r.saveErr != nil {
		return "", r.saveErr
	}
	if _, err := storage.Admit(up); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := "stored-" + up.Name
	r.saved = append(r.saved, name)
	return name, nil
}

func (r *recordingStore) Open(context.Context, string) (*storage.Object, error) {
	return nil, storage.ErrFileNotFound
}

func (r *recordingStore) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, name)
	return r.deleteErr
}

// failingRepo fails every write.
type failingRepo struct {
	*repository.MemoryRepo
}

func (failingRepo) Insert(context.Context, *book.Book) error { return errors.New("db down") }

func (failingRepo) Update(context.Context, string, book.Changes) (*book.Book, error) {
	return nil, errors.New("db down")
}

func drain(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Drain(ctx))
}

func TestCreateGetUpdateDeleteScenario(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newLocal(t)

	created, err := s.Create(ctx, validInput(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "", created.CoverImage)
	require.False(t, created.CreatedAt.IsZero())

	pages := 20
	updated, err := s.Update(ctx, created.ID, book.UpdateInput{PageCount: &pages}, nil)
	require.NoError(t, err)
	require.Equal(t, 20, updated.PageCount)
	require.Equal(t, "123", updated.ISBN)
	require.Equal(t, "X", updated.Title)
	require.Equal(t, "Y", updated.Author)
	require.Equal(t, "Z", updated.Publisher)

	deleted, err := s.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, deleted.ID)

	_, err = s.Get(ctx, created.ID)
	require.True(t, errors.Is(err, book.ErrNotFound))
}

func TestCreateValidationPersistsNothing(t *testing.T) {
	ctx := context.Background()
	s, repo, dir := newLocal(t)
	before := testutil.ToFloat64(metrics.BookOperations.WithLabelValues("create", "invalid"))

	in := validInput()
	in.PageCount = 0
	_, err := s.Create(ctx, in, pngUpload("c.png"))
	var verr *book.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "pageCount", verr.Fields[0].Field)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.BookOperations.WithLabelValues("create", "invalid")))
}

func TestCreateWithCover(t *testing.T) {
	ctx := context.Background()
	s, _, dir := newLocal(t)

	created, err := s.Create(ctx, validInput(), pngUpload("portada.png"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(created.CoverImage, "-portada.png"))
	require.True(t, fileExists(dir, created.CoverImage))
}

func TestCreateRejectsUnsupportedCover(t *testing.T) {
	ctx := context.Background()
	s, repo, dir := newLocal(t)

	_, err := s.Create(ctx, validInput(), &storage.Upload{Name: "a.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF-1.4")})
	require.True(t, errors.Is(err, storage.ErrUnsupportedMedia))
	list, _ := repo.List(ctx)
	require.Empty(t, list)
	entries, _ := os.ReadDir(dir)
	require.Empty(t, entries)
}

func TestCreateRemovesCoverWhenInsertFails(t *testing.T) {
	files := &recordingStore{}
	s := New(failingRepo{repository.NewMemoryRepo()}, files, zap.NewNop())

	_, err := s.Create(context.Background(), validInput(), pngUpload("c.png"))
	require.Error(t, err)
	drain(t, s)
	require.Equal(t, []string{"stored-c.png"}, files.deleted)
}

func TestCreateWrapsStoreFailures(t *testing.T) {
	s := New(repository.NewMemoryRepo(), &recordingStore{saveErr: errors.New("disk full")}, zap.NewNop())
	_, err := s.Create(context.Background(), validInput(), pngUpload("c.png"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "store cover")
}

func TestUpdateReplacesCoverAndRemovesOldOne(t *testing.T) {
	ctx := context.Background()
	s, _, dir := newLocal(t)

	created, err := s.Create(ctx, validInput(), pngUpload("old.png"))
	require.NoError(t, err)
	oldCover := created.CoverImage

	updated, err := s.Update(ctx, created.ID, book.UpdateInput{}, pngUpload("new.png"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(updated.CoverImage, "-new.png"))
	require.Equal(t, "X", updated.Title)

	drain(t, s)
	require.False(t, fileExists(dir, oldCover))
	require.True(t, fileExists(dir, updated.CoverImage))
}

func TestUpdateSucceedsWhenOldCoverCleanupFails(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	files := &recordingStore{deleteErr: storage.ErrFileNotFound}
	s := New(repository.NewMemoryRepo(), files, zap.New(core))
	before := testutil.ToFloat64(metrics.CoverCleanupFailures)

	created, err := s.Create(ctx, validInput(), pngUpload("old.png"))
	require.NoError(t, err)
	updated, err := s.Update(ctx, created.ID, book.UpdateInput{}, pngUpload("new.png"))
	require.NoError(t, err)
	require.Equal(t, "stored-new.png", updated.CoverImage)

	drain(t, s)
	require.Equal(t, []string{"stored-old.png"}, files.deleted)
	require.Equal(t, 1, logs.FilterMessage("cover cleanup failed").Len())
	require.Equal(t, before+1, testutil.ToFloat64(metrics.CoverCleanupFailures))
}

func TestUpdateRemovesNewCoverWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	inner := repository.NewMemoryRepo()
	b := &book.Book{ISBN: "1", Title: "T", Author: "A", Publisher: "P", PageCount: 1}
	require.NoError(t, inner.Insert(ctx, b))
	files := &recordingStore{}
	s := New(failingRepo{inner}, files, zap.NewNop())

	_, err := s.Update(ctx, b.ID, book.UpdateInput{}, pngUpload("new.png"))
	require.Error(t, err)
	drain(t, s)
	require.Equal(t, []string{"stored-new.png"}, files.deleted)
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newLocal(t)

	pages := 5
	_, err := s.Update(ctx, "nope", book.UpdateInput{PageCount: &pages}, nil)
	require.True(t, errors.Is(err, book.ErrNotFound))

	_, err = s.Update(ctx, "nope", book.UpdateInput{}, nil)
	var verr *book.ValidationError
	require.True(t, errors.As(err, &verr))

	created, err := s.Create(ctx, validInput(), nil)
	require.NoError(t, err)
	zero := 0
	_, err = s.Update(ctx, created.ID, book.UpdateInput{PageCount: &zero}, nil)
	require.True(t, errors.As(err, &verr))
	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 10, got.PageCount)
}

func TestDeleteKeepsCoverFile(t *testing.T) {
	ctx := context.Background()
	s, _, dir := newLocal(t)
	created, err := s.Create(ctx, validInput(), pngUpload("keep.png"))
	require.NoError(t, err)

	_, err = s.Delete(ctx, created.ID)
	require.NoError(t, err)
	drain(t, s)
	require.True(t, fileExists(dir, created.CoverImage))

	_, err = s.Delete(ctx, created.ID)
	require.True(t, errors.Is(err, book.ErrNotFound))
}

func TestListRecent(t *testing.T) {
	ctx := context.Background()
	step := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := repository.NewMemoryRepo().WithClock(func() time.Time {
		step = step.Add(time.Minute)
		return step
	})
	s := New(repo, &recordingStore{}, nil)

	_, err := s.ListRecent(ctx)
	require.True(t, errors.Is(err, book.ErrNotFound))

	for _, title := range []string{"a", "b", "c", "d"} {
		in := validInput()
		in.Title = title
		_, err := s.Create(ctx, in, nil)
		require.NoError(t, err)
	}
	recent, err := s.ListRecent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "d", recent[0].Title)
	require.Equal(t, "c", recent[1].Title)
	require.Equal(t, "b", recent[2].Title)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newLocal(t)
	for _, in := range []book.CreateInput{
		{ISBN: "1", Title: "Rayuela", Author: "Julio Cortázar", Publisher: "Sudamericana", PageCount: 600},
		{ISBN: "2", Title: "Ficciones", Author: "Jorge Luis Borges", Publisher: "Sur", PageCount: 200},
	} {
		_, err := s.Create(ctx, in, nil)
		require.NoError(t, err)
	}

	got, err := s.Search(ctx, book.SearchCriteria{Author: "borges"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Ficciones", got[0].Title)

	got, err = s.Search(ctx, book.SearchCriteria{Search: "sud"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = s.Search(ctx, book.SearchCriteria{Author: ".*"})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDrainHonoursContext(t *testing.T) {
	s := New(repository.NewMemoryRepo(), &recordingStore{}, nil)
	s.cleanup.Add(1)
	defer s.cleanup.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Drain(ctx), context.DeadlineExceeded)
}
