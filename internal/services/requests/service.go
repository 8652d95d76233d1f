package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/events"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrRequestNotFound   = errors.New("purchase request not found")
	ErrDuplicateRequest  = errors.New("open request already exists for item")
	ErrItemNotFound      = errors.New("item not found")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

const maxUserMessageLen = 2000

type RequestStore interface {
	Create(ctx context.Context, in pgrepo.CreateRequestInput) (model.PurchaseRequest, error)
	FindByID(ctx context.Context, requestID int64) (model.PurchaseRequest, error)
	FindOpenForItem(ctx context.Context, userID int64, itemType enums.ItemType, itemID int64) (model.PurchaseRequest, bool, error)
	ListByUser(ctx context.Context, userID int64) ([]model.PurchaseRequest, error)
	ListForAdmin(ctx context.Context, page, limit int) ([]model.AdminPurchaseRequest, error)
	UpdateStatus(ctx context.Context, requestID int64, patch pgrepo.RequestStatusPatch) (model.PurchaseRequest, error)
	Delete(ctx context.Context, requestID int64) error
	Stats(ctx context.Context) (model.RequestStats, error)
}

type ItemStore interface {
	FindBookByID(ctx context.Context, bookID int64) (model.Book, error)
}

type ContactStore interface {
	ListActive(ctx context.Context) ([]model.AdminContactInfo, error)
}

type AdminNotifier interface {
	SendText(ctx context.Context, text string) error
}

type ChangePublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Service struct {
	requests RequestStore
	items    ItemStore
	contacts ContactStore
	notifier AdminNotifier
	stream   ChangePublisher
	logger   *zap.Logger
	now      func() time.Time
}

type Dependencies struct {
	Requests RequestStore
	Items    ItemStore
	Contacts ContactStore
	Notifier AdminNotifier
	Stream   ChangePublisher
	Logger   *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		requests: deps.Requests,
		items:    deps.Items,
		contacts: deps.Contacts,
		notifier: deps.Notifier,
		stream:   deps.Stream,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateInput struct {
	UserID                 int64
	ItemType               enums.ItemType
	ItemID                 int64
	PreferredContactMethod enums.ContactType
	UserMessage            string
}

// Create validates the request, checks the target item exists and no open
// request duplicates it, then inserts. The admin notification runs detached:
// its failure is logged, never surfaced to the buyer.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.PurchaseRequest, error) {
	if s.requests == nil || s.items == nil {
		return model.PurchaseRequest{}, fmt.Errorf("request dependencies are not configured")
	}
	if in.UserID <= 0 || in.ItemID <= 0 || !in.ItemType.Valid() || !in.PreferredContactMethod.Valid() {
		return model.PurchaseRequest{}, ErrValidation
	}
	message := strings.TrimSpace(in.UserMessage)
	if len(message) > maxUserMessageLen {
		return model.PurchaseRequest{}, ErrValidation
	}

	book, err := s.items.FindBookByID(ctx, in.ItemID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrBookNotFound) {
			return model.PurchaseRequest{}, ErrItemNotFound
		}
		return model.PurchaseRequest{}, err
	}

	if _, found, err := s.requests.FindOpenForItem(ctx, in.UserID, in.ItemType, in.ItemID); err != nil {
		return model.PurchaseRequest{}, err
	} else if found {
		return model.PurchaseRequest{}, ErrDuplicateRequest
	}

	request, err := s.requests.Create(ctx, pgrepo.CreateRequestInput{
		UserID:                 in.UserID,
		ItemType:               in.ItemType,
		ItemID:                 in.ItemID,
		Amount:                 book.Price,
		PreferredContactMethod: in.PreferredContactMethod,
		UserMessage:            message,
	})
	if err != nil {
		return model.PurchaseRequest{}, err
	}

	s.publishChange(ctx, events.KindInsert, model.PurchaseRequest{}, request)

	if s.notifier != nil {
		text := RenderAdminMessage(request, book)
		go func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.notifier.SendText(notifyCtx, text); err != nil {
				s.logger.Warn("admin notification failed",
					zap.Int64("request_id", request.ID),
					zap.Error(err))
			}
		}()
	}

	return request, nil
}

// RenderAdminMessage builds the admin alert for a new request. Pure; safe to
// call from tests and the detached notifier alike.
func RenderAdminMessage(request model.PurchaseRequest, book model.Book) string {
	var b strings.Builder
	b.WriteString("New purchase request #")
	fmt.Fprintf(&b, "%d", request.ID)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Item: %s (%s %d)\n", book.Title, request.ItemType, request.ItemID)
	fmt.Fprintf(&b, "Price: %s\n", book.Price.StringFixed(2))
	fmt.Fprintf(&b, "Buyer: %d via %s\n", request.UserID, request.PreferredContactMethod)
	if request.UserMessage != "" {
		fmt.Fprintf(&b, "Note: %s\n", request.UserMessage)
	}
	return b.String()
}

func (s *Service) Get(ctx context.Context, requestID int64) (model.PurchaseRequest, error) {
	if s.requests == nil {
		return model.PurchaseRequest{}, fmt.Errorf("request store is nil")
	}
	if requestID <= 0 {
		return model.PurchaseRequest{}, ErrValidation
	}
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return model.PurchaseRequest{}, mapRepoErr(err)
	}
	return request, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]model.PurchaseRequest, error) {
	if s.requests == nil {
		return nil, fmt.Errorf("request store is nil")
	}
	if userID <= 0 {
		return nil, ErrValidation
	}
	return s.requests.ListByUser(ctx, userID)
}

func (s *Service) ListForAdmin(ctx context.Context, page, limit int) ([]model.AdminPurchaseRequest, error) {
	if s.requests == nil {
		return nil, fmt.Errorf("request store is nil")
	}
	return s.requests.ListForAdmin(ctx, page, limit)
}

type UpdateStatusInput struct {
	RequestID  int64
	NewStatus  enums.RequestStatus
	AdminNotes *string
}

// UpdateStatus applies one step of the request state machine. Contacted
// stamps contacted_at; approved and rejected stamp responded_at.
func (s *Service) UpdateStatus(ctx context.Context, in UpdateStatusInput) (model.PurchaseRequest, error) {
	if s.requests == nil {
		return model.PurchaseRequest{}, fmt.Errorf("request store is nil")
	}
	if in.RequestID <= 0 || !in.NewStatus.Valid() {
		return model.PurchaseRequest{}, ErrValidation
	}

	current, err := s.requests.FindByID(ctx, in.RequestID)
	if err != nil {
		return model.PurchaseRequest{}, mapRepoErr(err)
	}
	if !current.Status.CanTransitionTo(in.NewStatus) {
		return model.PurchaseRequest{}, ErrInvalidTransition
	}

	patch := pgrepo.RequestStatusPatch{
		Status:     in.NewStatus,
		AdminNotes: in.AdminNotes,
	}
	now := s.now().UTC()
	switch in.NewStatus {
	case enums.RequestStatusContacted:
		patch.ContactedAt = &now
	case enums.RequestStatusApproved, enums.RequestStatusRejected:
		patch.RespondedAt = &now
	}

	updated, err := s.requests.UpdateStatus(ctx, in.RequestID, patch)
	if err != nil {
		return model.PurchaseRequest{}, mapRepoErr(err)
	}

	s.publishChange(ctx, events.KindUpdate, current, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, requestID int64) error {
	if s.requests == nil {
		return fmt.Errorf("request store is nil")
	}
	if requestID <= 0 {
		return ErrValidation
	}
	if err := s.requests.Delete(ctx, requestID); err != nil {
		return mapRepoErr(err)
	}
	return nil
}

func (s *Service) Stats(ctx context.Context) (model.RequestStats, error) {
	if s.requests == nil {
		return model.RequestStats{}, fmt.Errorf("request store is nil")
	}
	return s.requests.Stats(ctx)
}

// ContactDirectory lists the active admin contacts, primaries first.
func (s *Service) ContactDirectory(ctx context.Context) ([]model.AdminContactInfo, error) {
	if s.contacts == nil {
		return nil, fmt.Errorf("contact store is nil")
	}
	return s.contacts.ListActive(ctx)
}

func (s *Service) publishChange(ctx context.Context, kind events.Kind, old, updated model.PurchaseRequest) {
	if s.stream == nil {
		return
	}

	change := events.Change{
		Entity:    events.EntityPurchaseRequest,
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
		s.logger.Warn("marshal request change", zap.Error(err))
		return
	}
	if err := s.stream.Publish(ctx, events.EntityPurchaseRequest.Channel(), raw); err != nil {
		s.logger.Warn("publish request change",
			zap.Int64("request_id", updated.ID),
			zap.Error(err))
	}
}

func mapRepoErr(err error) error {
	if errors.Is(err, pgrepo.ErrRequestNotFound) {
		return ErrRequestNotFound
	}
	return err
}
