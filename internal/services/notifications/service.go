package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/events"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	redisrepo "github.com/areut/bookmarket/backend/internal/repo/redis"
)

var (
	ErrTypeDisabled = errors.New("notification type is disabled")
	ErrUnknownType  = errors.New("unknown notification type")
)

type Type string

const (
	TypePurchaseStatus Type = "purchase_status_update"
	TypeAdminApproval  Type = "admin_approval_required"
	TypeProgressSync   Type = "reading_progress_sync"
	TypeActivityFeed   Type = "activity_feed"
)

const (
	placeholderUser = "unknown user"
	placeholderItem = "unknown item"

	// globalScope keys the subscriptions that are not per-buyer.
	globalScope int64 = 0

	subscriberBuffer = 16
)

// Notification is what subscribers receive. Data carries the enriched,
// type-specific fields.
type Notification struct {
	Type     Type              `json:"type"`
	EntityID int64             `json:"entity_id"`
	UserID   int64             `json:"user_id"`
	Data     map[string]string `json:"data"`
}

type Toggles struct {
	PurchaseStatus bool
	AdminApproval  bool
	ProgressSync   bool
	ActivityFeed   bool
}

type UserStore interface {
	FindByID(ctx context.Context, userID int64) (model.User, error)
}

type ItemStore interface {
	FindBookByID(ctx context.Context, bookID int64) (model.Book, error)
}

type StreamSource interface {
	Subscribe(ctx context.Context, channels ...string) (*redisrepo.Stream, error)
}

type subscriptionKey struct {
	typ   Type
	scope int64
}

type subscription struct {
	id  string
	key subscriptionKey
	ch  chan Notification
}

// Service consumes the entity change streams and fans enriched notifications
// out to keyed in-process subscribers.
type Service struct {
	stream  StreamSource
	users   UserStore
	items   ItemStore
	toggles Toggles
	logger  *zap.Logger

	mu     sync.Mutex
	nextID int64
	byID   map[string]*subscription
	byKey  map[subscriptionKey]*subscription
}

type Dependencies struct {
	Stream  StreamSource
	Users   UserStore
	Items   ItemStore
	Toggles Toggles
	Logger  *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		stream:  deps.Stream,
		users:   deps.Users,
		items:   deps.Items,
		toggles: deps.Toggles,
		logger:  logger,
		byID:    make(map[string]*subscription),
		byKey:   make(map[subscriptionKey]*subscription),
	}
}

func (s *Service) enabled(typ Type) bool {
	switch typ {
	case TypePurchaseStatus:
		return s.toggles.PurchaseStatus
	case TypeAdminApproval:
		return s.toggles.AdminApproval
	case TypeProgressSync:
		return s.toggles.ProgressSync
	case TypeActivityFeed:
		return s.toggles.ActivityFeed
	default:
		return false
	}
}

func scopeFor(typ Type, userID int64) (int64, error) {
	switch typ {
	case TypePurchaseStatus, TypeProgressSync:
		if userID <= 0 {
			return 0, fmt.Errorf("subscription type %q requires a user id", typ)
		}
		return userID, nil
	case TypeAdminApproval, TypeActivityFeed:
		return globalScope, nil
	default:
		return 0, ErrUnknownType
	}
}

// Subscribe registers for one notification type. Per-buyer types key on the
// user id; global types ignore it. Subscribing again with the same key
// replaces the previous subscription and closes its channel.
func (s *Service) Subscribe(typ Type, userID int64) (string, <-chan Notification, error) {
	scope, err := scopeFor(typ, userID)
	if err != nil {
		return "", nil, err
	}
	if !s.enabled(typ) {
		return "", nil, ErrTypeDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := subscriptionKey{typ: typ, scope: scope}
	if existing, ok := s.byKey[key]; ok {
		delete(s.byID, existing.id)
		close(existing.ch)
	}

	s.nextID++
	sub := &subscription{
		id:  string(typ) + ":" + strconv.FormatInt(s.nextID, 10),
		key: key,
		ch:  make(chan Notification, subscriberBuffer),
	}
	s.byID[sub.id] = sub
	s.byKey[key] = sub

	return sub.id, sub.ch, nil
}

// Unsubscribe is total: an unknown id is a no-op.
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.byKey, sub.key)
	close(sub.ch)
}

func (s *Service) UnsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.byID {
		delete(s.byID, id)
		delete(s.byKey, sub.key)
		close(sub.ch)
	}
}

// Run consumes the change streams until ctx is done. Malformed payloads are
// logged and skipped.
func (s *Service) Run(ctx context.Context) error {
	if s.stream == nil {
		return fmt.Errorf("stream source is nil")
	}

	stream, err := s.stream.Subscribe(ctx,
		events.EntityPurchase.Channel(),
		events.EntityPurchaseRequest.Channel(),
		events.EntityReadingProgress.Channel(),
	)
	if err != nil {
		return fmt.Errorf("subscribe to change streams: %w", err)
	}
	defer func() { _ = stream.Close() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-stream.Messages():
			if !ok {
				return nil
			}
			change, err := events.Unmarshal([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("skip malformed change event", zap.Error(err))
				continue
			}
			s.route(ctx, change)
		}
	}
}

func (s *Service) route(ctx context.Context, change events.Change) {
	switch change.Entity {
	case events.EntityPurchase:
		s.routePurchase(ctx, change)
	case events.EntityPurchaseRequest:
		s.routeRequest(ctx, change)
	case events.EntityReadingProgress:
		s.routeProgress(ctx, change)
	default:
		s.logger.Warn("change event for unknown entity", zap.String("entity", string(change.Entity)))
	}
}

func (s *Service) routePurchase(ctx context.Context, change events.Change) {
	if change.Kind == events.KindUpdate && change.OldStatus != change.NewStatus {
		s.deliver(TypePurchaseStatus, change.UserID, Notification{
			Type:     TypePurchaseStatus,
			EntityID: change.EntityID,
			UserID:   change.UserID,
			Data: map[string]string{
				"old_status": change.OldStatus,
				"new_status": change.NewStatus,
			},
		})
	}

	if change.NewStatus == string(enums.PurchaseStatusPendingVerification) &&
		change.OldStatus != change.NewStatus {
		userName, itemTitle := s.enrich(ctx, change.UserID, change.ItemID)
		s.deliver(TypeAdminApproval, globalScope, Notification{
			Type:     TypeAdminApproval,
			EntityID: change.EntityID,
			UserID:   change.UserID,
			Data: map[string]string{
				"buyer_name": userName,
				"item_title": itemTitle,
				"new_status": change.NewStatus,
			},
		})
	}
}

func (s *Service) routeRequest(ctx context.Context, change events.Change) {
	if change.Kind == events.KindUpdate && change.OldStatus != change.NewStatus {
		s.deliver(TypePurchaseStatus, change.UserID, Notification{
			Type:     TypePurchaseStatus,
			EntityID: change.EntityID,
			UserID:   change.UserID,
			Data: map[string]string{
				"kind":       "purchase_request",
				"old_status": change.OldStatus,
				"new_status": change.NewStatus,
			},
		})
	}

	if change.Kind != events.KindInsert {
		return
	}
	userName, itemTitle := s.enrich(ctx, change.UserID, change.ItemID)
	s.deliver(TypeAdminApproval, globalScope, Notification{
		Type:     TypeAdminApproval,
		EntityID: change.EntityID,
		UserID:   change.UserID,
		Data: map[string]string{
			"buyer_name": userName,
			"item_title": itemTitle,
			"kind":       "purchase_request",
		},
	})
}

func (s *Service) routeProgress(ctx context.Context, change events.Change) {
	itemTitle := s.itemTitle(ctx, change.ItemID)

	s.deliver(TypeProgressSync, change.UserID, Notification{
		Type:     TypeProgressSync,
		EntityID: change.EntityID,
		UserID:   change.UserID,
		Data: map[string]string{
			"book_title": itemTitle,
			"status":     change.NewStatus,
		},
	})

	// The feed is edge-triggered: inserts always show, completion only on
	// the transition into completed. Updates that stay completed must not
	// refire.
	completedNow := change.NewStatus == string(enums.ProgressStatusCompleted)
	completedBefore := change.OldStatus == string(enums.ProgressStatusCompleted)
	if change.Kind == events.KindInsert || (completedNow && !completedBefore) {
		s.deliver(TypeActivityFeed, globalScope, Notification{
			Type:     TypeActivityFeed,
			EntityID: change.EntityID,
			UserID:   change.UserID,
			Data: map[string]string{
				"book_title": itemTitle,
				"status":     change.NewStatus,
				"kind":       string(change.Kind),
			},
		})
	}
}

// enrich resolves display name and item title in parallel. Failures degrade
// to placeholders so a flaky lookup never drops the notification.
func (s *Service) enrich(ctx context.Context, userID, itemID int64) (string, string) {
	userName := placeholderUser
	itemTitle := placeholderItem

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if s.users == nil {
			return
		}
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			s.logger.Warn("enrich user", zap.Int64("user_id", userID), zap.Error(err))
			return
		}
		userName = user.DisplayName
	}()
	go func() {
		defer wg.Done()
		if s.items == nil {
			return
		}
		book, err := s.items.FindBookByID(ctx, itemID)
		if err != nil {
			s.logger.Warn("enrich item", zap.Int64("item_id", itemID), zap.Error(err))
			return
		}
		itemTitle = book.Title
	}()
	wg.Wait()

	return userName, itemTitle
}

func (s *Service) itemTitle(ctx context.Context, itemID int64) string {
	if s.items == nil {
		return placeholderItem
	}
	book, err := s.items.FindBookByID(ctx, itemID)
	if err != nil {
		s.logger.Warn("enrich item", zap.Int64("item_id", itemID), zap.Error(err))
		return placeholderItem
	}
	return book.Title
}

func (s *Service) deliver(typ Type, scope int64, notification Notification) {
	if !s.enabled(typ) {
		return
	}

	// The send happens under the same lock that closes channels on
	// unsubscribe, so a concurrent unsubscribe can never close the channel
	// mid-send. The buffered select keeps the send from blocking.
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byKey[subscriptionKey{typ: typ, scope: scope}]
	if !ok {
		return
	}

	select {
	case sub.ch <- notification:
	default:
		s.logger.Warn("drop notification for slow subscriber",
			zap.String("type", string(typ)),
			zap.Int64("scope", scope))
	}
}
