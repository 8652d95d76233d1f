package purchases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/events"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrDuplicatePurchase = errors.New("active purchase already exists for item")
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrNotOwner          = errors.New("purchase belongs to another user")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrStaleWrite        = errors.New("purchase changed since it was read")
	ErrItemNotFound      = errors.New("item not found")
)

type PurchaseStore interface {
	Create(ctx context.Context, in pgrepo.CreatePurchaseInput) (model.Purchase, error)
	FindExisting(ctx context.Context, userID int64, itemType enums.ItemType, itemID int64) (model.Purchase, bool, error)
	FindByID(ctx context.Context, purchaseID int64) (model.Purchase, error)
	Update(ctx context.Context, purchaseID int64, patch pgrepo.PurchasePatch) (model.Purchase, error)
	UpdateWithVersionCheck(ctx context.Context, purchaseID int64, patch pgrepo.PurchasePatch, expectedUpdatedAt time.Time) (model.Purchase, error)
	CountByStatus(ctx context.Context) (map[enums.PurchaseStatus]int64, error)
	List(ctx context.Context, page, limit int) ([]model.Purchase, error)
	ListByStatus(ctx context.Context, status enums.PurchaseStatus, page, limit int) ([]model.Purchase, error)
}

type ItemStore interface {
	FindBookByID(ctx context.Context, bookID int64) (model.Book, error)
}

type ProofStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

type ChangePublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Service struct {
	purchases PurchaseStore
	items     ItemStore
	proofs    ProofStore
	stream    ChangePublisher
	logger    *zap.Logger
	now       func() time.Time
}

type Dependencies struct {
	Purchases PurchaseStore
	Items     ItemStore
	Proofs    ProofStore
	Stream    ChangePublisher
	Logger    *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		purchases: deps.Purchases,
		items:     deps.Items,
		proofs:    deps.Proofs,
		stream:    deps.Stream,
		logger:    logger,
		now:       time.Now,
	}
}

type InitiateInput struct {
	UserID         int64
	ItemType       enums.ItemType
	ItemID         int64
	TelegramChatID *int64
	TelegramUserID *int64
}

// Initiate starts a purchase unless an active one already blocks the item.
// The created row carries a fresh initiation token for the bot gateway.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (model.Purchase, error) {
	if s.purchases == nil || s.items == nil {
		return model.Purchase{}, fmt.Errorf("purchase dependencies are not configured")
	}
	if in.UserID <= 0 || in.ItemID <= 0 || !in.ItemType.Valid() {
		return model.Purchase{}, ErrValidation
	}

	if _, found, err := s.purchases.FindExisting(ctx, in.UserID, in.ItemType, in.ItemID); err != nil {
		return model.Purchase{}, err
	} else if found {
		return model.Purchase{}, ErrDuplicatePurchase
	}

	book, err := s.items.FindBookByID(ctx, in.ItemID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrBookNotFound) {
			return model.Purchase{}, ErrItemNotFound
		}
		return model.Purchase{}, err
	}

	purchase, err := s.purchases.Create(ctx, pgrepo.CreatePurchaseInput{
		UserID:         in.UserID,
		ItemType:       in.ItemType,
		ItemID:         in.ItemID,
		Amount:         book.Price,
		TelegramChatID: in.TelegramChatID,
		TelegramUserID: in.TelegramUserID,
	})
	if err != nil {
		return model.Purchase{}, err
	}

	s.publishChange(ctx, events.KindInsert, model.Purchase{}, purchase)
	return purchase, nil
}

// BeginPayment records the buyer's chosen receiving account and moves the
// purchase to awaiting_payment.
func (s *Service) BeginPayment(ctx context.Context, userID, purchaseID, paymentProviderID int64) (model.Purchase, error) {
	if s.purchases == nil {
		return model.Purchase{}, fmt.Errorf("purchase store is nil")
	}
	if userID <= 0 || purchaseID <= 0 || paymentProviderID <= 0 {
		return model.Purchase{}, ErrValidation
	}

	current, err := s.ownedPurchase(ctx, userID, purchaseID)
	if err != nil {
		return model.Purchase{}, err
	}
	if !current.Status.CanTransitionTo(enums.PurchaseStatusAwaitingPayment) {
		return model.Purchase{}, ErrInvalidTransition
	}

	next := enums.PurchaseStatusAwaitingPayment
	updated, err := s.purchases.Update(ctx, purchaseID, pgrepo.PurchasePatch{
		Status:            &next,
		PaymentProviderID: &paymentProviderID,
	})
	if err != nil {
		return model.Purchase{}, mapRepoErr(err)
	}

	s.publishChange(ctx, events.KindUpdate, current, updated)
	return updated, nil
}

// AttachProof stores the buyer's payment proof and moves the purchase to
// pending_verification.
func (s *Service) AttachProof(ctx context.Context, userID, purchaseID int64, body io.Reader, size int64, contentType string) (model.Purchase, error) {
	if s.purchases == nil || s.proofs == nil {
		return model.Purchase{}, fmt.Errorf("purchase dependencies are not configured")
	}
	if userID <= 0 || purchaseID <= 0 || body == nil || size <= 0 {
		return model.Purchase{}, ErrValidation
	}

	current, err := s.ownedPurchase(ctx, userID, purchaseID)
	if err != nil {
		return model.Purchase{}, err
	}
	if !current.Status.CanTransitionTo(enums.PurchaseStatusPendingVerification) {
		return model.Purchase{}, ErrInvalidTransition
	}

	key := fmt.Sprintf("proofs/%d/%s", purchaseID, uuid.NewString())
	if err := s.proofs.Put(ctx, key, body, size, contentType); err != nil {
		return model.Purchase{}, fmt.Errorf("store payment proof: %w", err)
	}

	next := enums.PurchaseStatusPendingVerification
	updated, err := s.purchases.Update(ctx, purchaseID, pgrepo.PurchasePatch{
		Status:         &next,
		ProofObjectKey: &key,
	})
	if err != nil {
		return model.Purchase{}, mapRepoErr(err)
	}

	s.publishChange(ctx, events.KindUpdate, current, updated)
	return updated, nil
}

// Approve completes a verified purchase. The caller passes the updated_at it
// read; a concurrent write loses with ErrStaleWrite.
func (s *Service) Approve(ctx context.Context, purchaseID int64, expectedUpdatedAt time.Time) (model.Purchase, error) {
	return s.verify(ctx, purchaseID, enums.PurchaseStatusCompleted, expectedUpdatedAt)
}

// Reject terminates a purchase from any non-terminal status.
func (s *Service) Reject(ctx context.Context, purchaseID int64, expectedUpdatedAt time.Time) (model.Purchase, error) {
	return s.verify(ctx, purchaseID, enums.PurchaseStatusRejected, expectedUpdatedAt)
}

func (s *Service) verify(ctx context.Context, purchaseID int64, next enums.PurchaseStatus, expectedUpdatedAt time.Time) (model.Purchase, error) {
	if s.purchases == nil {
		return model.Purchase{}, fmt.Errorf("purchase store is nil")
	}
	if purchaseID <= 0 || expectedUpdatedAt.IsZero() {
		return model.Purchase{}, ErrValidation
	}

	current, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return model.Purchase{}, mapRepoErr(err)
	}
	if !current.Status.CanTransitionTo(next) {
		return model.Purchase{}, ErrInvalidTransition
	}

	updated, err := s.purchases.UpdateWithVersionCheck(ctx, purchaseID, pgrepo.PurchasePatch{
		Status: &next,
	}, expectedUpdatedAt)
	if err != nil {
		return model.Purchase{}, mapRepoErr(err)
	}

	s.publishChange(ctx, events.KindUpdate, current, updated)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, userID, purchaseID int64) (model.Purchase, error) {
	if s.purchases == nil {
		return model.Purchase{}, fmt.Errorf("purchase store is nil")
	}
	if userID <= 0 || purchaseID <= 0 {
		return model.Purchase{}, ErrValidation
	}
	return s.ownedPurchase(ctx, userID, purchaseID)
}

func (s *Service) AdminGet(ctx context.Context, purchaseID int64) (model.Purchase, error) {
	if s.purchases == nil {
		return model.Purchase{}, fmt.Errorf("purchase store is nil")
	}
	if purchaseID <= 0 {
		return model.Purchase{}, ErrValidation
	}
	purchase, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return model.Purchase{}, mapRepoErr(err)
	}
	return purchase, nil
}

func (s *Service) CountByStatus(ctx context.Context) (map[enums.PurchaseStatus]int64, error) {
	if s.purchases == nil {
		return nil, fmt.Errorf("purchase store is nil")
	}
	return s.purchases.CountByStatus(ctx)
}

func (s *Service) List(ctx context.Context, statusFilter string, page, limit int) ([]model.Purchase, error) {
	if s.purchases == nil {
		return nil, fmt.Errorf("purchase store is nil")
	}
	if statusFilter == "" {
		return s.purchases.List(ctx, page, limit)
	}
	status, err := enums.ParsePurchaseStatus(statusFilter)
	if err != nil {
		return nil, ErrValidation
	}
	return s.purchases.ListByStatus(ctx, status, page, limit)
}

func (s *Service) ownedPurchase(ctx context.Context, userID, purchaseID int64) (model.Purchase, error) {
	purchase, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return model.Purchase{}, mapRepoErr(err)
	}
	if purchase.UserID != userID {
		return model.Purchase{}, ErrNotOwner
	}
	return purchase, nil
}

// publishChange emits a change event to the purchase stream. Delivery is
// best-effort; a publish failure never fails the write it describes.
func (s *Service) publishChange(ctx context.Context, kind events.Kind, old, updated model.Purchase) {
	if s.stream == nil {
		return
	}

	change := events.Change{
		Entity:    events.EntityPurchase,
		Kind:      kind,
		EntityID:  updated.ID,
		UserID:    updated.UserID,
		ItemType:  string(updated.ItemType),
		ItemID:    updated.ItemID,
		OldStatus: string(old.Status),
		NewStatus: string(updated.Status),
	}
	raw, err := change.Marshal()
	if err != nil {
		s.logger.Warn("marshal purchase change", zap.Error(err))
		return
	}
	if err := s.stream.Publish(ctx, events.EntityPurchase.Channel(), raw); err != nil {
		s.logger.Warn("publish purchase change",
			zap.Int64("purchase_id", updated.ID),
			zap.Error(err))
	}
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, pgrepo.ErrPurchaseNotFound):
		return ErrPurchaseNotFound
	case errors.Is(err, pgrepo.ErrStaleWrite):
		return ErrStaleWrite
	default:
		return err
	}
}
