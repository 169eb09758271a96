package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/librosapp/libros/backend/go-services/internal/book"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo is an in-memory repository used by unit tests and as the
// fallback store when no MongoDB URI is configured. Records are copied in and
// out so callers never share state with the store.
type MemoryRepo struct {
	mu    sync.RWMutex
	order []string
	store map[string]*book.Book
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*book.Book), now: utcNow}
}

// WithClock replaces the time source; used by tests that need distinct
// creation times.
func (m *MemoryRepo) WithClock(now func() time.Time) *MemoryRepo {
	m.now = now
	return m
}

func (m *MemoryRepo) Insert(_ context.Context, b *book.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = primitive.NewObjectID().Hex()
	b.CreatedAt = m.now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.store[b.ID] = &cp
	m.order = append(m.order, b.ID)
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*book.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.store[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, book.ErrNotFound
}

func (m *MemoryRepo) List(_ context.Context) ([]*book.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(*book.Book) bool { return true }), nil
}

func (m *MemoryRepo) Update(_ context.Context, id string, ch book.Changes) (*book.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[id]
	if !ok {
		return nil, book.ErrNotFound
	}
	b.Apply(ch)
	b.UpdatedAt = m.now()
	cp := *b
	return &cp, nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) (*book.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[id]
	if !ok {
		return nil, book.ErrNotFound
	}
	delete(m.store, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return b, nil
}

func (m *MemoryRepo) Search(_ context.Context, c book.SearchCriteria) ([]*book.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(c.Matches), nil
}

func (m *MemoryRepo) Recent(_ context.Context, limit int) ([]*book.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.collect(func(*book.Book) bool { return true })
	// newest insert wins ties on equal timestamps
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) Ping(context.Context) error { return nil }

// collect returns copies of matching records in insertion order. Callers hold
// the lock.
func (m *MemoryRepo) collect(match func(*book.Book) bool) []*book.Book {
	out := make([]*book.Book, 0, len(m.order))
	for _, id := range m.order {
		b := m.store[id]
		if match(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out
}

func utcNow() time.Time { return time.Now().UTC() }
