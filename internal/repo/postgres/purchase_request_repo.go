package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
)

var ErrRequestNotFound = errors.New("purchase request not found")

const requestColumns = `id, user_id, item_type, item_id, amount::text, status,
	preferred_contact_method, user_message, admin_notes,
	contacted_at, responded_at, created_at, updated_at`

type PurchaseRequestRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRequestRepo(pool *pgxpool.Pool) *PurchaseRequestRepo {
	return &PurchaseRequestRepo{pool: pool}
}

type CreateRequestInput struct {
	UserID                 int64
	ItemType               enums.ItemType
	ItemID                 int64
	Amount                 decimal.Decimal
	PreferredContactMethod enums.ContactType
	UserMessage            string
}

// RequestStatusPatch carries a status transition plus the timestamps the
// transition stamps. Nil timestamps are left untouched.
type RequestStatusPatch struct {
	Status      enums.RequestStatus
	AdminNotes  *string
	ContactedAt *time.Time
	RespondedAt *time.Time
}

func (r *PurchaseRequestRepo) Create(ctx context.Context, in CreateRequestInput) (model.PurchaseRequest, error) {
	if r.pool == nil {
		return model.PurchaseRequest{}, fmt.Errorf("postgres pool is nil")
	}
	if in.UserID <= 0 || in.ItemID <= 0 || !in.ItemType.Valid() || !in.PreferredContactMethod.Valid() {
		return model.PurchaseRequest{}, fmt.Errorf("invalid purchase request create payload")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO purchase_requests (
	user_id,
	item_type,
	item_id,
	amount,
	status,
	preferred_contact_method,
	user_message,
	admin_notes,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, '', NOW(), NOW())
RETURNING `+requestColumns, in.UserID, string(in.ItemType), in.ItemID, in.Amount.String(),
		string(enums.RequestStatusPending), string(in.PreferredContactMethod), in.UserMessage)

	request, err := scanRequest(row)
	if err != nil {
		return model.PurchaseRequest{}, fmt.Errorf("create purchase request: %w", err)
	}
	return request, nil
}

func (r *PurchaseRequestRepo) FindByID(ctx context.Context, requestID int64) (model.PurchaseRequest, error) {
	if r.pool == nil {
		return model.PurchaseRequest{}, fmt.Errorf("postgres pool is nil")
	}
	if requestID <= 0 {
		return model.PurchaseRequest{}, fmt.Errorf("invalid purchase request id")
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+requestColumns+`
FROM purchase_requests
WHERE id = $1
LIMIT 1
`, requestID)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PurchaseRequest{}, ErrRequestNotFound
		}
		return model.PurchaseRequest{}, fmt.Errorf("find purchase request by id: %w", err)
	}
	return request, nil
}

// FindOpenForItem returns the most recent request for (user, item) that is
// still in flight. No row is a success with found=false.
func (r *PurchaseRequestRepo) FindOpenForItem(ctx context.Context, userID int64, itemType enums.ItemType, itemID int64) (model.PurchaseRequest, bool, error) {
	if r.pool == nil {
		return model.PurchaseRequest{}, false, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+requestColumns+`
FROM purchase_requests
WHERE user_id = $1
  AND item_type = $2
  AND item_id = $3
  AND status IN ($4, $5, $6)
ORDER BY created_at DESC
LIMIT 1
`, userID, string(itemType), itemID,
		string(enums.RequestStatusPending), string(enums.RequestStatusContacted), string(enums.RequestStatusApproved))

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PurchaseRequest{}, false, nil
		}
		return model.PurchaseRequest{}, false, fmt.Errorf("find open purchase request: %w", err)
	}
	return request, true, nil
}

func (r *PurchaseRequestRepo) ListByUser(ctx context.Context, userID int64) ([]model.PurchaseRequest, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+requestColumns+`
FROM purchase_requests
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchase requests by user: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListForAdmin returns requests joined with the catalog fields the admin
// console shows next to each row.
func (r *PurchaseRequestRepo) ListForAdmin(ctx context.Context, page, limit int) ([]model.AdminPurchaseRequest, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	offset, limit, err := pageBounds(page, limit)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT r.id, r.user_id, r.item_type, r.item_id, r.amount::text, r.status,
	r.preferred_contact_method, r.user_message, r.admin_notes,
	r.contacted_at, r.responded_at, r.created_at, r.updated_at,
	COALESCE(b.title, ''), COALESCE(b.author, ''), COALESCE(b.price, 0)::text
FROM purchase_requests r
LEFT JOIN books b ON b.id = r.item_id
ORDER BY r.created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list purchase requests for admin: %w", err)
	}
	defer rows.Close()

	requests := make([]model.AdminPurchaseRequest, 0, limit)
	for rows.Next() {
		var (
			request    model.AdminPurchaseRequest
			itemType   string
			status     string
			contact    string
			rawAmount  string
			rawPrice   string
		)
		if err := rows.Scan(
			&request.ID,
			&request.UserID,
			&itemType,
			&request.ItemID,
			&rawAmount,
			&status,
			&contact,
			&request.UserMessage,
			&request.AdminNotes,
			&request.ContactedAt,
			&request.RespondedAt,
			&request.CreatedAt,
			&request.UpdatedAt,
			&request.ItemTitle,
			&request.ItemAuthor,
			&rawPrice,
		); err != nil {
			return nil, fmt.Errorf("scan admin purchase request row: %w", err)
		}

		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return nil, fmt.Errorf("parse request amount: %w", err)
		}
		price, err := decimal.NewFromString(rawPrice)
		if err != nil {
			return nil, fmt.Errorf("parse item price: %w", err)
		}
		request.Amount = amount
		request.ItemPrice = price
		request.ItemType = enums.ItemType(itemType)
		request.Status = enums.RequestStatus(status)
		request.PreferredContactMethod = enums.ContactType(contact)
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin purchase request rows: %w", err)
	}
	return requests, nil
}

func (r *PurchaseRequestRepo) UpdateStatus(ctx context.Context, requestID int64, patch RequestStatusPatch) (model.PurchaseRequest, error) {
	if r.pool == nil {
		return model.PurchaseRequest{}, fmt.Errorf("postgres pool is nil")
	}
	if requestID <= 0 {
		return model.PurchaseRequest{}, fmt.Errorf("invalid purchase request id")
	}
	if !patch.Status.Valid() {
		return model.PurchaseRequest{}, fmt.Errorf("invalid purchase request status")
	}

	row := r.pool.QueryRow(ctx, `
UPDATE purchase_requests
SET
	status = $2,
	admin_notes = COALESCE($3, admin_notes),
	contacted_at = COALESCE($4, contacted_at),
	responded_at = COALESCE($5, responded_at),
	updated_at = NOW()
WHERE id = $1
RETURNING `+requestColumns, requestID, string(patch.Status), patch.AdminNotes, patch.ContactedAt, patch.RespondedAt)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PurchaseRequest{}, ErrRequestNotFound
		}
		return model.PurchaseRequest{}, fmt.Errorf("update purchase request status: %w", err)
	}
	return request, nil
}

// Delete is an admin correction tool; requests are otherwise retained for audit.
func (r *PurchaseRequestRepo) Delete(ctx context.Context, requestID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if requestID <= 0 {
		return fmt.Errorf("invalid purchase request id")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM purchase_requests WHERE id = $1`, requestID)
	if err != nil {
		return fmt.Errorf("delete purchase request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// Stats counts requests by status in a single scan.
func (r *PurchaseRequestRepo) Stats(ctx context.Context) (model.RequestStats, error) {
	if r.pool == nil {
		return model.RequestStats{}, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT status, COUNT(*)
FROM purchase_requests
GROUP BY status
`)
	if err != nil {
		return model.RequestStats{}, fmt.Errorf("count purchase requests by status: %w", err)
	}
	defer rows.Close()

	var stats model.RequestStats
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return model.RequestStats{}, fmt.Errorf("scan request status count: %w", err)
		}
		switch enums.RequestStatus(status) {
		case enums.RequestStatusPending:
			stats.Pending = count
		case enums.RequestStatusContacted:
			stats.Contacted = count
		case enums.RequestStatusApproved:
			stats.Approved = count
		case enums.RequestStatusRejected:
			stats.Rejected = count
		case enums.RequestStatusCompleted:
			stats.Completed = count
		}
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return model.RequestStats{}, fmt.Errorf("iterate request status counts: %w", err)
	}
	return stats, nil
}

func collectRequests(rows pgx.Rows) ([]model.PurchaseRequest, error) {
	requests := make([]model.PurchaseRequest, 0)
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase request row: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase request rows: %w", err)
	}
	return requests, nil
}

func scanRequest(row pgx.Row) (model.PurchaseRequest, error) {
	var (
		request   model.PurchaseRequest
		itemType  string
		status    string
		contact   string
		rawAmount string
	)
	if err := row.Scan(
		&request.ID,
		&request.UserID,
		&itemType,
		&request.ItemID,
		&rawAmount,
		&status,
		&contact,
		&request.UserMessage,
		&request.AdminNotes,
		&request.ContactedAt,
		&request.RespondedAt,
		&request.CreatedAt,
		&request.UpdatedAt,
	); err != nil {
		return model.PurchaseRequest{}, err
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return model.PurchaseRequest{}, fmt.Errorf("parse request amount: %w", err)
	}
	request.Amount = amount
	request.ItemType = enums.ItemType(itemType)
	request.Status = enums.RequestStatus(status)
	request.PreferredContactMethod = enums.ContactType(contact)
	return request, nil
}
