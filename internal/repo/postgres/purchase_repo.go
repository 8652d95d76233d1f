package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
)

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrStaleWrite means the row changed since the caller last read it.
	// Re-read and retry; never resubmit the same expected version.
	ErrStaleWrite = errors.New("purchase modified elsewhere")
)

const purchaseColumns = `id, user_id, item_type, item_id, amount::text, status,
	transaction_reference, payment_provider_id, initiation_token,
	telegram_chat_id, telegram_user_id, proof_object_key, created_at, updated_at`

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

type CreatePurchaseInput struct {
	UserID         int64
	ItemType       enums.ItemType
	ItemID         int64
	Amount         decimal.Decimal
	TelegramChatID *int64
	TelegramUserID *int64
}

// PurchasePatch carries the optional fields of an update. Nil fields are left
// untouched; updated_at is always server-stamped.
type PurchasePatch struct {
	Status            *enums.PurchaseStatus
	PaymentProviderID *int64
	ProofObjectKey    *string
	TelegramChatID    *int64
	TelegramUserID    *int64
}

func (r *PurchaseRepo) Create(ctx context.Context, in CreatePurchaseInput) (model.Purchase, error) {
	if r.pool == nil {
		return model.Purchase{}, fmt.Errorf("postgres pool is nil")
	}
	if in.UserID <= 0 || in.ItemID <= 0 || !in.ItemType.Valid() {
		return model.Purchase{}, fmt.Errorf("invalid purchase create payload")
	}

	token := uuid.NewString()
	txnRef := "txn_" + uuid.NewString()

	row := r.pool.QueryRow(ctx, `
INSERT INTO purchases (
	user_id,
	item_type,
	item_id,
	amount,
	status,
	transaction_reference,
	initiation_token,
	telegram_chat_id,
	telegram_user_id,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, NOW(), NOW())
RETURNING `+purchaseColumns, in.UserID, string(in.ItemType), in.ItemID, in.Amount.String(),
		string(enums.PurchaseStatusPendingInitiation), txnRef, token, in.TelegramChatID, in.TelegramUserID)

	purchase, err := scanPurchase(row)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("create purchase: %w", err)
	}
	return purchase, nil
}

// FindExisting returns the most recent purchase for (user, item) whose status
// still blocks a new purchase. No row is a success with found=false.
func (r *PurchaseRepo) FindExisting(ctx context.Context, userID int64, itemType enums.ItemType, itemID int64) (model.Purchase, bool, error) {
	if r.pool == nil {
		return model.Purchase{}, false, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || itemID <= 0 || !itemType.Valid() {
		return model.Purchase{}, false, fmt.Errorf("invalid existing purchase lookup")
	}

	blocking := enums.BlockingPurchaseStatuses()
	statuses := make([]string, 0, len(blocking))
	for _, status := range blocking {
		statuses = append(statuses, string(status))
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE user_id = $1
  AND item_type = $2
  AND item_id = $3
  AND status = ANY($4)
ORDER BY created_at DESC
LIMIT 1
`, userID, string(itemType), itemID, statuses)

	purchase, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Purchase{}, false, nil
		}
		return model.Purchase{}, false, fmt.Errorf("find existing purchase: %w", err)
	}
	return purchase, true, nil
}

func (r *PurchaseRepo) FindByID(ctx context.Context, purchaseID int64) (model.Purchase, error) {
	if r.pool == nil {
		return model.Purchase{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return model.Purchase{}, fmt.Errorf("invalid purchase id")
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID)

	purchase, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Purchase{}, ErrPurchaseNotFound
		}
		return model.Purchase{}, fmt.Errorf("find purchase by id: %w", err)
	}
	return purchase, nil
}

// FindByToken resolves an initiation token. A valid token is a capability
// bearer; the caller's identity is not checked here.
func (r *PurchaseRepo) FindByToken(ctx context.Context, token string) (model.Purchase, error) {
	if r.pool == nil {
		return model.Purchase{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(token) == "" {
		return model.Purchase{}, fmt.Errorf("invalid initiation token")
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE initiation_token = $1
LIMIT 1
`, strings.TrimSpace(token))

	purchase, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Purchase{}, ErrPurchaseNotFound
		}
		return model.Purchase{}, fmt.Errorf("find purchase by token: %w", err)
	}
	return purchase, nil
}

func (r *PurchaseRepo) Update(ctx context.Context, purchaseID int64, patch PurchasePatch) (model.Purchase, error) {
	if r.pool == nil {
		return model.Purchase{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return model.Purchase{}, fmt.Errorf("invalid purchase id")
	}

	set, args := buildPurchasePatch(patch)
	args = append(args, purchaseID)

	row := r.pool.QueryRow(ctx, `
UPDATE purchases
SET `+set+`
WHERE id = $`+fmt.Sprint(len(args))+`
RETURNING `+purchaseColumns, args...)

	purchase, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Purchase{}, ErrPurchaseNotFound
		}
		return model.Purchase{}, fmt.Errorf("update purchase: %w", err)
	}
	return purchase, nil
}

// UpdateWithVersionCheck is the optimistic-concurrency write: it succeeds only
// if the row's updated_at still equals expectedUpdatedAt. Of two concurrent
// callers holding the same stale version exactly one wins.
func (r *PurchaseRepo) UpdateWithVersionCheck(ctx context.Context, purchaseID int64, patch PurchasePatch, expectedUpdatedAt time.Time) (model.Purchase, error) {
	if r.pool == nil {
		return model.Purchase{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return model.Purchase{}, fmt.Errorf("invalid purchase id")
	}

	set, args := buildPurchasePatch(patch)
	args = append(args, purchaseID, expectedUpdatedAt)

	row := r.pool.QueryRow(ctx, `
UPDATE purchases
SET `+set+`
WHERE id = $`+fmt.Sprint(len(args)-1)+`
  AND updated_at = $`+fmt.Sprint(len(args))+`
RETURNING `+purchaseColumns, args...)

	purchase, err := scanPurchase(row)
	if err == nil {
		return purchase, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Purchase{}, fmt.Errorf("update purchase with version check: %w", err)
	}

	// No row matched: distinguish a missing purchase from a stale version.
	if _, findErr := r.FindByID(ctx, purchaseID); findErr != nil {
		return model.Purchase{}, findErr
	}
	return model.Purchase{}, ErrStaleWrite
}

func (r *PurchaseRepo) CountByStatus(ctx context.Context) (map[enums.PurchaseStatus]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT status, COUNT(*)
FROM purchases
GROUP BY status
`)
	if err != nil {
		return nil, fmt.Errorf("count purchases by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[enums.PurchaseStatus]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan purchase status count: %w", err)
		}
		counts[enums.PurchaseStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase status counts: %w", err)
	}
	return counts, nil
}

func (r *PurchaseRepo) List(ctx context.Context, page, limit int) ([]model.Purchase, error) {
	return r.list(ctx, "", page, limit)
}

func (r *PurchaseRepo) ListByStatus(ctx context.Context, status enums.PurchaseStatus, page, limit int) ([]model.Purchase, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid purchase status filter")
	}
	return r.list(ctx, string(status), page, limit)
}

func (r *PurchaseRepo) list(ctx context.Context, status string, page, limit int) ([]model.Purchase, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	offset, limit, err := pageBounds(page, limit)
	if err != nil {
		return nil, err
	}

	var (
		rows pgx.Rows
	)
	if status == "" {
		rows, err = r.pool.Query(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	} else {
		rows, err = r.pool.Query(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, status, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	purchases := make([]model.Purchase, 0, limit)
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		purchases = append(purchases, purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}
	return purchases, nil
}

// RejectStaleInitiations marks purchases stuck in pending_initiation since
// before the cutoff as rejected, expiring their initiation tokens.
func (r *PurchaseRepo) RejectStaleInitiations(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE purchases
SET status = $1, updated_at = NOW()
WHERE status = $2
  AND created_at < $3
`, string(enums.PurchaseStatusRejected), string(enums.PurchaseStatusPendingInitiation), cutoff)
	if err != nil {
		return 0, fmt.Errorf("reject stale initiations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func buildPurchasePatch(patch PurchasePatch) (string, []any) {
	set := []string{"updated_at = NOW()"}
	args := []any{}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.PaymentProviderID != nil {
		add("payment_provider_id", *patch.PaymentProviderID)
	}
	if patch.ProofObjectKey != nil {
		add("proof_object_key", *patch.ProofObjectKey)
	}
	if patch.TelegramChatID != nil {
		add("telegram_chat_id", *patch.TelegramChatID)
	}
	if patch.TelegramUserID != nil {
		add("telegram_user_id", *patch.TelegramUserID)
	}

	return strings.Join(set, ", "), args
}

func scanPurchase(row pgx.Row) (model.Purchase, error) {
	var (
		purchase  model.Purchase
		itemType  string
		status    string
		rawAmount string
	)
	if err := row.Scan(
		&purchase.ID,
		&purchase.UserID,
		&itemType,
		&purchase.ItemID,
		&rawAmount,
		&status,
		&purchase.TransactionReference,
		&purchase.PaymentProviderID,
		&purchase.InitiationToken,
		&purchase.TelegramChatID,
		&purchase.TelegramUserID,
		&purchase.ProofObjectKey,
		&purchase.CreatedAt,
		&purchase.UpdatedAt,
	); err != nil {
		return model.Purchase{}, err
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("parse purchase amount: %w", err)
	}
	purchase.Amount = amount
	purchase.ItemType = enums.ItemType(itemType)
	purchase.Status = enums.PurchaseStatus(status)
	return purchase, nil
}

// pageBounds converts 1-indexed pagination to offset/limit, bounding limit.
func pageBounds(page, limit int) (int, int, error) {
	if page < 1 {
		return 0, 0, fmt.Errorf("page must be >= 1")
	}
	if limit < 1 {
		return 0, 0, fmt.Errorf("limit must be >= 1")
	}
	if limit > 100 {
		limit = 100
	}
	return (page - 1) * limit, limit, nil
}
