package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
)

type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

const progressColumns = `id, user_id, book_id, percent, status, created_at, updated_at`

// Upsert stores the reader's position and returns the stored row together
// with the status the row carried before this write. An empty old status
// means the row was just created.
func (r *ProgressRepo) Upsert(ctx context.Context, userID, bookID int64, percent int, status enums.ProgressStatus) (model.ReadingProgress, enums.ProgressStatus, error) {
	if r.pool == nil {
		return model.ReadingProgress{}, "", fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || bookID <= 0 {
		return model.ReadingProgress{}, "", fmt.Errorf("invalid progress identifiers")
	}
	if percent < 0 || percent > 100 {
		return model.ReadingProgress{}, "", fmt.Errorf("percent out of range: %d", percent)
	}
	if !status.Valid() {
		return model.ReadingProgress{}, "", fmt.Errorf("invalid progress status: %q", status)
	}

	var oldStatus string
	err := r.pool.QueryRow(ctx, `
SELECT status FROM reading_progress WHERE user_id = $1 AND book_id = $2
`, userID, bookID).Scan(&oldStatus)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return model.ReadingProgress{}, "", fmt.Errorf("read previous progress: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO reading_progress (user_id, book_id, percent, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, book_id) DO UPDATE
SET percent = EXCLUDED.percent,
	status = EXCLUDED.status,
	updated_at = NOW()
RETURNING `+progressColumns, userID, bookID, percent, string(status))

	progress, err := scanProgress(row)
	if err != nil {
		return model.ReadingProgress{}, "", fmt.Errorf("upsert reading progress: %w", err)
	}
	return progress, enums.ProgressStatus(oldStatus), nil
}

func (r *ProgressRepo) ListByUser(ctx context.Context, userID int64) ([]model.ReadingProgress, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+progressColumns+`
FROM reading_progress
WHERE user_id = $1
ORDER BY updated_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reading progress: %w", err)
	}
	defer rows.Close()

	entries := make([]model.ReadingProgress, 0)
	for rows.Next() {
		progress, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading progress row: %w", err)
		}
		entries = append(entries, progress)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reading progress rows: %w", err)
	}
	return entries, nil
}

func scanProgress(row pgx.Row) (model.ReadingProgress, error) {
	var (
		progress model.ReadingProgress
		status   string
	)
	if err := row.Scan(
		&progress.ID,
		&progress.UserID,
		&progress.BookID,
		&progress.Percent,
		&status,
		&progress.CreatedAt,
		&progress.UpdatedAt,
	); err != nil {
		return model.ReadingProgress{}, err
	}
	progress.Status = enums.ProgressStatus(status)
	return progress, nil
}
