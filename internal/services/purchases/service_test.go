package purchases

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/events"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
)

type stubPurchaseStore struct {
	nextID    int64
	rows      map[int64]model.Purchase
	updatedAt time.Time
}

func newStubPurchaseStore() *stubPurchaseStore {
	return &stubPurchaseStore{
		rows:      make(map[int64]model.Purchase),
		updatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (s *stubPurchaseStore) Create(_ context.Context, in pgrepo.CreatePurchaseInput) (model.Purchase, error) {
	s.nextID++
	purchase := model.Purchase{
		ID:              s.nextID,
		UserID:          in.UserID,
		ItemType:        in.ItemType,
		ItemID:          in.ItemID,
		Amount:          in.Amount,
		Status:          enums.PurchaseStatusPendingInitiation,
		InitiationToken: "token-1",
		CreatedAt:       s.updatedAt,
		UpdatedAt:       s.updatedAt,
	}
	s.rows[purchase.ID] = purchase
	return purchase, nil
}

func (s *stubPurchaseStore) FindExisting(_ context.Context, userID int64, itemType enums.ItemType, itemID int64) (model.Purchase, bool, error) {
	blocking := enums.BlockingPurchaseStatuses()
	for _, row := range s.rows {
		if row.UserID != userID || row.ItemType != itemType || row.ItemID != itemID {
			continue
		}
		for _, status := range blocking {
			if row.Status == status {
				return row, true, nil
			}
		}
	}
	return model.Purchase{}, false, nil
}

func (s *stubPurchaseStore) FindByID(_ context.Context, purchaseID int64) (model.Purchase, error) {
	row, ok := s.rows[purchaseID]
	if !ok {
		return model.Purchase{}, pgrepo.ErrPurchaseNotFound
	}
	return row, nil
}

func (s *stubPurchaseStore) apply(purchaseID int64, patch pgrepo.PurchasePatch) model.Purchase {
	row := s.rows[purchaseID]
	if patch.Status != nil {
		row.Status = *patch.Status
	}
	if patch.PaymentProviderID != nil {
		row.PaymentProviderID = patch.PaymentProviderID
	}
	if patch.ProofObjectKey != nil {
		row.ProofObjectKey = patch.ProofObjectKey
	}
	s.updatedAt = s.updatedAt.Add(time.Second)
	row.UpdatedAt = s.updatedAt
	s.rows[purchaseID] = row
	return row
}

func (s *stubPurchaseStore) Update(_ context.Context, purchaseID int64, patch pgrepo.PurchasePatch) (model.Purchase, error) {
	if _, ok := s.rows[purchaseID]; !ok {
		return model.Purchase{}, pgrepo.ErrPurchaseNotFound
	}
	return s.apply(purchaseID, patch), nil
}

func (s *stubPurchaseStore) UpdateWithVersionCheck(_ context.Context, purchaseID int64, patch pgrepo.PurchasePatch, expectedUpdatedAt time.Time) (model.Purchase, error) {
	row, ok := s.rows[purchaseID]
	if !ok {
		return model.Purchase{}, pgrepo.ErrPurchaseNotFound
	}
	if !row.UpdatedAt.Equal(expectedUpdatedAt) {
		return model.Purchase{}, pgrepo.ErrStaleWrite
	}
	return s.apply(purchaseID, patch), nil
}

func (s *stubPurchaseStore) CountByStatus(context.Context) (map[enums.PurchaseStatus]int64, error) {
	counts := make(map[enums.PurchaseStatus]int64)
	for _, row := range s.rows {
		counts[row.Status]++
	}
	return counts, nil
}

func (s *stubPurchaseStore) List(context.Context, int, int) ([]model.Purchase, error) {
	return nil, nil
}

func (s *stubPurchaseStore) ListByStatus(context.Context, enums.PurchaseStatus, int, int) ([]model.Purchase, error) {
	return nil, nil
}

type stubItemStore struct {
	books map[int64]model.Book
}

func (s *stubItemStore) FindBookByID(_ context.Context, bookID int64) (model.Book, error) {
	book, ok := s.books[bookID]
	if !ok {
		return model.Book{}, pgrepo.ErrBookNotFound
	}
	return book, nil
}

type stubProofStore struct {
	keys []string
}

func (s *stubProofStore) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	s.keys = append(s.keys, key)
	return nil
}

type capturedPublish struct {
	channel string
	payload []byte
}

type stubPublisher struct {
	published []capturedPublish
	fail      bool
}

func (s *stubPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	if s.fail {
		return errors.New("stream down")
	}
	s.published = append(s.published, capturedPublish{channel: channel, payload: payload})
	return nil
}

func newTestService() (*Service, *stubPurchaseStore, *stubProofStore, *stubPublisher) {
	store := newStubPurchaseStore()
	proofs := &stubProofStore{}
	stream := &stubPublisher{}
	items := &stubItemStore{books: map[int64]model.Book{
		7: {ID: 7, Title: "Test Book", Price: decimal.RequireFromString("29.99")},
	}}
	svc := NewService(Dependencies{
		Purchases: store,
		Items:     items,
		Proofs:    proofs,
		Stream:    stream,
	})
	return svc, store, proofs, stream
}

func TestInitiateBlocksDuplicateUntilRejected(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()
	in := InitiateInput{UserID: 1, ItemType: enums.ItemTypeBook, ItemID: 7}

	first, err := svc.Initiate(ctx, in)
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	if first.Status != enums.PurchaseStatusPendingInitiation {
		t.Fatalf("unexpected initial status %q", first.Status)
	}
	if !first.Amount.Equal(decimal.RequireFromString("29.99")) {
		t.Fatalf("expected amount from catalog, got %s", first.Amount)
	}

	if _, err := svc.Initiate(ctx, in); !errors.Is(err, ErrDuplicatePurchase) {
		t.Fatalf("expected ErrDuplicatePurchase, got %v", err)
	}

	// Completed still blocks; only rejection unblocks.
	row := store.rows[first.ID]
	row.Status = enums.PurchaseStatusCompleted
	store.rows[first.ID] = row
	if _, err := svc.Initiate(ctx, in); !errors.Is(err, ErrDuplicatePurchase) {
		t.Fatalf("expected completed purchase to block, got %v", err)
	}

	row.Status = enums.PurchaseStatusRejected
	store.rows[first.ID] = row
	if _, err := svc.Initiate(ctx, in); err != nil {
		t.Fatalf("expected rejected purchase to unblock, got %v", err)
	}
}

func TestInitiateUnknownItem(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Initiate(context.Background(), InitiateInput{UserID: 1, ItemType: enums.ItemTypeBook, ItemID: 999})
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestBuyerFlowToVerification(t *testing.T) {
	svc, _, proofs, stream := newTestService()
	ctx := context.Background()

	purchase, err := svc.Initiate(ctx, InitiateInput{UserID: 1, ItemType: enums.ItemTypeBook, ItemID: 7})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	purchase, err = svc.BeginPayment(ctx, 1, purchase.ID, 3)
	if err != nil {
		t.Fatalf("begin payment: %v", err)
	}
	if purchase.Status != enums.PurchaseStatusAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %q", purchase.Status)
	}
	if purchase.PaymentProviderID == nil || *purchase.PaymentProviderID != 3 {
		t.Fatal("expected payment provider to be recorded")
	}

	purchase, err = svc.AttachProof(ctx, 1, purchase.ID, bytes.NewReader([]byte("img")), 3, "image/png")
	if err != nil {
		t.Fatalf("attach proof: %v", err)
	}
	if purchase.Status != enums.PurchaseStatusPendingVerification {
		t.Fatalf("expected pending_verification, got %q", purchase.Status)
	}
	if len(proofs.keys) != 1 {
		t.Fatalf("expected one stored proof, got %d", len(proofs.keys))
	}
	if purchase.ProofObjectKey == nil || *purchase.ProofObjectKey != proofs.keys[0] {
		t.Fatal("expected proof object key on the purchase")
	}

	// insert + two updates
	if len(stream.published) != 3 {
		t.Fatalf("expected 3 published changes, got %d", len(stream.published))
	}
	last, err := events.Unmarshal(stream.published[2].payload)
	if err != nil {
		t.Fatalf("unmarshal change: %v", err)
	}
	if last.OldStatus != string(enums.PurchaseStatusAwaitingPayment) ||
		last.NewStatus != string(enums.PurchaseStatusPendingVerification) {
		t.Fatalf("unexpected change payload: %+v", last)
	}
}

func TestAttachProofRequiresAwaitingPayment(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	purchase, err := svc.Initiate(ctx, InitiateInput{UserID: 1, ItemType: enums.ItemTypeBook, ItemID: 7})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	_, err = svc.AttachProof(ctx, 1, purchase.ID, bytes.NewReader([]byte("img")), 3, "image/png")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestApproveStaleWriteSingleWinner(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	purchase, err := svc.Initiate(ctx, InitiateInput{UserID: 1, ItemType: enums.ItemTypeBook, ItemID: 7})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	row := store.rows[purchase.ID]
	row.Status = enums.PurchaseStatusPendingVerification
	store.rows[purchase.ID] = row

	seen := row.UpdatedAt

	if _, err := svc.Approve(ctx, purchase.ID, seen); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	// Second admin raced on the same snapshot.
	if _, err := svc.Reject(ctx, purchase.ID, seen); !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("expected the loser to fail, got %v", err)
	}
	if store.rows[purchase.ID].Status != enums.PurchaseStatusCompleted {
		t.Fatalf("winner's status must stand, got %q", store.rows[purchase.ID].Status)
	}
}

func TestRejectFromAnyNonTerminal(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	for _, status := range []enums.PurchaseStatus{
		enums.PurchaseStatusPendingInitiation,
		enums.PurchaseStatusAwaitingPayment,
		enums.PurchaseStatusPendingVerification,
	} {
		purchase, err := svc.Initiate(ctx, InitiateInput{UserID: 1, ItemType: enums.ItemTypeBook, ItemID: 7})
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
		row := store.rows[purchase.ID]
		row.Status = status
		store.rows[purchase.ID] = row

		if _, err := svc.Reject(ctx, purchase.ID, row.UpdatedAt); err != nil {
			t.Fatalf("reject from %q: %v", status, err)
		}
	}

	// Terminal statuses refuse rejection.
	purchase, _ := svc.Initiate(ctx, InitiateInput{UserID: 2, ItemType: enums.ItemTypeBook, ItemID: 7})
	row := store.rows[purchase.ID]
	row.Status = enums.PurchaseStatusCompleted
	store.rows[purchase.ID] = row
	if _, err := svc.Reject(ctx, purchase.ID, row.UpdatedAt); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from completed, got %v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _, _, stream := newTestService()
	stream.fail = true

	purchase, err := svc.Initiate(context.Background(), InitiateInput{UserID: 1, ItemType: enums.ItemTypeBook, ItemID: 7})
	if err != nil {
		t.Fatalf("initiate with failing stream: %v", err)
	}
	if purchase.ID == 0 {
		t.Fatal("expected created purchase")
	}
}

func TestOwnershipEnforced(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	purchase, err := svc.Initiate(ctx, InitiateInput{UserID: 1, ItemType: enums.ItemTypeBook, ItemID: 7})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if _, err := svc.BeginPayment(ctx, 2, purchase.ID, 3); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}
