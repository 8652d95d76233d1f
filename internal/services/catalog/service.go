package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/areut/bookmarket/backend/internal/domain/model"
	"github.com/areut/bookmarket/backend/internal/pkg/ttlcache"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
)

var ErrBookNotFound = errors.New("book not found")

const (
	itemKeyPrefix  = "books:item:"
	listKeyPrefix  = "books:list:"
	countKeyPrefix = "books:count:"
)

type BookStore interface {
	FindBookByID(ctx context.Context, bookID int64) (model.Book, error)
	ListBooks(ctx context.Context, filter pgrepo.BookFilter) ([]model.Book, error)
	CountBooks(ctx context.Context, filter pgrepo.BookFilter) (int64, error)
	UpdateBook(ctx context.Context, bookID int64, patch pgrepo.BookPatch) (model.Book, error)
}

// Service answers catalog reads through a process-local TTL cache. Filtered
// listings (search text or price bounds) always hit the store.
type Service struct {
	books   BookStore
	cache   *ttlcache.Cache
	itemTTL time.Duration
	listTTL time.Duration
	logger  *zap.Logger
}

type Dependencies struct {
	Books   BookStore
	Cache   *ttlcache.Cache
	ItemTTL time.Duration
	ListTTL time.Duration
	Logger  *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := deps.Cache
	if cache == nil {
		cache = ttlcache.New()
	}
	itemTTL := deps.ItemTTL
	if itemTTL <= 0 {
		itemTTL = 10 * time.Minute
	}
	listTTL := deps.ListTTL
	if listTTL <= 0 {
		listTTL = time.Minute
	}
	return &Service{
		books:   deps.Books,
		cache:   cache,
		itemTTL: itemTTL,
		listTTL: listTTL,
		logger:  logger,
	}
}

func (s *Service) GetBook(ctx context.Context, bookID int64) (model.Book, error) {
	if s.books == nil {
		return model.Book{}, fmt.Errorf("book store is nil")
	}

	key := itemKeyPrefix + strconv.FormatInt(bookID, 10)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(model.Book), nil
	}

	book, err := s.books.FindBookByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrBookNotFound) {
			return model.Book{}, ErrBookNotFound
		}
		return model.Book{}, err
	}

	s.cache.Set(key, book, s.itemTTL)
	return book, nil
}

func (s *Service) ListBooks(ctx context.Context, filter pgrepo.BookFilter) ([]model.Book, error) {
	if s.books == nil {
		return nil, fmt.Errorf("book store is nil")
	}

	if filter.Filtered() {
		return s.books.ListBooks(ctx, filter)
	}

	key := listKey(filter)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]model.Book), nil
	}

	books, err := s.books.ListBooks(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, books, s.listTTL)
	return books, nil
}

func (s *Service) CountBooks(ctx context.Context, filter pgrepo.BookFilter) (int64, error) {
	if s.books == nil {
		return 0, fmt.Errorf("book store is nil")
	}

	if filter.Filtered() {
		return s.books.CountBooks(ctx, filter)
	}

	const key = countKeyPrefix + "all"
	if cached, ok := s.cache.Get(key); ok {
		return cached.(int64), nil
	}

	total, err := s.books.CountBooks(ctx, filter)
	if err != nil {
		return 0, err
	}

	s.cache.Set(key, total, s.listTTL)
	return total, nil
}

// UpdateBook writes through and drops the exact item entry plus every cached
// list and count.
func (s *Service) UpdateBook(ctx context.Context, bookID int64, patch pgrepo.BookPatch) (model.Book, error) {
	if s.books == nil {
		return model.Book{}, fmt.Errorf("book store is nil")
	}

	book, err := s.books.UpdateBook(ctx, bookID, patch)
	if err != nil {
		if errors.Is(err, pgrepo.ErrBookNotFound) {
			return model.Book{}, ErrBookNotFound
		}
		return model.Book{}, err
	}

	s.cache.Invalidate(itemKeyPrefix + strconv.FormatInt(bookID, 10))
	s.cache.InvalidatePrefix(listKeyPrefix)
	s.cache.InvalidatePrefix(countKeyPrefix)

	return book, nil
}

// Sweep drops expired cache entries; the cleanup job calls it periodically.
func (s *Service) Sweep() int {
	return s.cache.Sweep()
}

func listKey(filter pgrepo.BookFilter) string {
	return listKeyPrefix + strconv.Itoa(filter.Page) + ":" + strconv.Itoa(filter.Limit)
}
