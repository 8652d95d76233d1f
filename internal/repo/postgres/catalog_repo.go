package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/areut/bookmarket/backend/internal/domain/model"
)

var ErrBookNotFound = errors.New("book not found")

const bookColumns = `id, title, author, price::text, is_bundle, created_at, updated_at`

type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// BookFilter narrows catalog listings. A nil price bound means unbounded.
type BookFilter struct {
	Search   string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
	Page     int
	Limit    int
}

// Filtered reports whether the filter narrows the listing beyond paging.
// Filtered listings bypass the catalog cache.
func (f BookFilter) Filtered() bool {
	return strings.TrimSpace(f.Search) != "" || f.PriceMin != nil || f.PriceMax != nil
}

func (r *CatalogRepo) FindBookByID(ctx context.Context, bookID int64) (model.Book, error) {
	if r.pool == nil {
		return model.Book{}, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+bookColumns+`
FROM books
WHERE id = $1
`, bookID)

	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Book{}, ErrBookNotFound
		}
		return model.Book{}, fmt.Errorf("find book by id: %w", err)
	}
	return book, nil
}

func (r *CatalogRepo) ListBooks(ctx context.Context, filter BookFilter) ([]model.Book, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	where, args := buildBookFilter(filter)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.Limit
	if size < 1 {
		size = 20
	}
	offset, limit, err := pageBounds(page, size)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	query := `
SELECT ` + bookColumns + `
FROM books
` + where + `
ORDER BY created_at DESC, id DESC
LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]model.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book rows: %w", err)
	}
	return books, nil
}

func (r *CatalogRepo) CountBooks(ctx context.Context, filter BookFilter) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	where, args := buildBookFilter(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return total, nil
}

// BookPatch updates only the set fields.
type BookPatch struct {
	Title  *string
	Author *string
	Price  *decimal.Decimal
}

func (r *CatalogRepo) UpdateBook(ctx context.Context, bookID int64, patch BookPatch) (model.Book, error) {
	if r.pool == nil {
		return model.Book{}, fmt.Errorf("postgres pool is nil")
	}

	set := make([]string, 0, 4)
	args := make([]any, 0, 4)
	args = append(args, bookID)

	if patch.Title != nil {
		args = append(args, *patch.Title)
		set = append(set, "title = $"+strconv.Itoa(len(args)))
	}
	if patch.Author != nil {
		args = append(args, *patch.Author)
		set = append(set, "author = $"+strconv.Itoa(len(args)))
	}
	if patch.Price != nil {
		args = append(args, patch.Price.String())
		set = append(set, "price = $"+strconv.Itoa(len(args))+"::numeric")
	}
	if len(set) == 0 {
		return model.Book{}, fmt.Errorf("empty book patch")
	}
	set = append(set, "updated_at = NOW()")

	row := r.pool.QueryRow(ctx, `
UPDATE books
SET `+strings.Join(set, ", ")+`
WHERE id = $1
RETURNING `+bookColumns, args...)

	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Book{}, ErrBookNotFound
		}
		return model.Book{}, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

func buildBookFilter(filter BookFilter) (string, []any) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := strconv.Itoa(len(args))
		clauses = append(clauses, "(title ILIKE $"+n+" OR author ILIKE $"+n+")")
	}
	if filter.PriceMin != nil {
		args = append(args, filter.PriceMin.String())
		clauses = append(clauses, "price >= $"+strconv.Itoa(len(args))+"::numeric")
	}
	if filter.PriceMax != nil {
		args = append(args, filter.PriceMax.String())
		clauses = append(clauses, "price <= $"+strconv.Itoa(len(args))+"::numeric")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanBook(row pgx.Row) (model.Book, error) {
	var (
		book     model.Book
		rawPrice string
	)
	if err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&rawPrice,
		&book.IsBundle,
		&book.CreatedAt,
		&book.UpdatedAt,
	); err != nil {
		return model.Book{}, err
	}

	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return model.Book{}, fmt.Errorf("parse book price %q: %w", rawPrice, err)
	}
	book.Price = price
	return book, nil
}
