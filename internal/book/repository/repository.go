package repository

import (
	"context"

	"github.com/librosapp/libros/backend/go-services/internal/book"
)

// Repository is the record store for books. Implementations return
// book.ErrNotFound (possibly wrapped) for unknown ids.
type Repository interface {
	// Insert assigns ID, CreatedAt and UpdatedAt and persists b.
	Insert(ctx context.Context, b *book.Book) error
	Get(ctx context.Context, id string) (*book.Book, error)
	List(ctx context.Context) ([]*book.Book, error)
	// Update applies ch and returns the stored record after the change.
	Update(ctx context.Context, id string, ch book.Changes) (*book.Book, error)
	// Delete removes the record and returns it as it was.
	Delete(ctx context.Context, id string) (*book.Book, error)
	Search(ctx context.Context, c book.SearchCriteria) ([]*book.Book, error)
	// Recent returns at most limit books, newest first.
	Recent(ctx context.Context, limit int) ([]*book.Book, error)
	Ping(ctx context.Context) error
}
