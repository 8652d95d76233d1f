package botgateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/areut/bookmarket/backend/internal/domain/model"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
)

var (
	ErrInvalidToken  = errors.New("initiation token is invalid")
	ErrTokenNotFound = errors.New("initiation token does not resolve")
	ErrDatabase      = errors.New("purchase lookup failed")
)

type PurchaseStore interface {
	FindByToken(ctx context.Context, token string) (model.Purchase, error)
}

type PaymentConfigStore interface {
	ListActive(ctx context.Context) ([]model.PaymentConfig, error)
}

type UserStore interface {
	FindByID(ctx context.Context, userID int64) (model.User, error)
}

type Converter interface {
	Convert(amount decimal.Decimal) decimal.Decimal
	Currency() string
}

type Service struct {
	secret    string
	purchases PurchaseStore
	configs   PaymentConfigStore
	users     UserStore
	converter Converter
	logger    *zap.Logger
}

type Dependencies struct {
	Secret    string
	Purchases PurchaseStore
	Configs   PaymentConfigStore
	Users     UserStore
	Converter Converter
	Logger    *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		secret:    deps.Secret,
		purchases: deps.Purchases,
		configs:   deps.Configs,
		users:     deps.Users,
		converter: deps.Converter,
		logger:    logger,
	}
}

// ValidateBotAuth checks the Authorization header against the shared secret.
// Fails closed: a missing header, an unset secret, or any mismatch all return
// false. The compare is constant-time.
func (s *Service) ValidateBotAuth(header string) bool {
	if s.secret == "" {
		return false
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented := header[len(prefix):]

	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.secret)) == 1
}

// PaymentOption is the normalized receiving-account shape handed to the bot.
type PaymentOption struct {
	ID            int64  `json:"id"`
	ConfigType    string `json:"config_type"`
	ProviderName  string `json:"provider_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Instructions  string `json:"instructions"`
}

type PurchaseInfo struct {
	PurchaseID     int64           `json:"purchase_id"`
	Status         string          `json:"status"`
	ItemType       string          `json:"item_type"`
	ItemID         int64           `json:"item_id"`
	BuyerID        int64           `json:"buyer_id"`
	BuyerName      string          `json:"buyer_name"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	PaymentOptions []PaymentOption `json:"payment_options"`
	TransactionRef string          `json:"transaction_ref"`
	TelegramChatID *int64          `json:"telegram_chat_id,omitempty"`
	TelegramUserID *int64          `json:"telegram_user_id,omitempty"`
}

// GetPurchaseInfo resolves an initiation token into everything the bot needs
// to walk the buyer through payment. Payment options degrade to an empty
// list when their lookup fails; the core purchase lookup does not degrade.
func (s *Service) GetPurchaseInfo(ctx context.Context, token string) (PurchaseInfo, error) {
	if s.purchases == nil || s.converter == nil {
		return PurchaseInfo{}, fmt.Errorf("bot gateway dependencies are not configured")
	}
	if strings.TrimSpace(token) == "" {
		return PurchaseInfo{}, ErrInvalidToken
	}

	purchase, err := s.purchases.FindByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return PurchaseInfo{}, ErrTokenNotFound
		}
		s.logger.Error("purchase lookup by token", zap.Error(err))
		return PurchaseInfo{}, ErrDatabase
	}

	info := PurchaseInfo{
		PurchaseID:     purchase.ID,
		Status:         string(purchase.Status),
		ItemType:       string(purchase.ItemType),
		ItemID:         purchase.ItemID,
		BuyerID:        purchase.UserID,
		BuyerName:      s.buyerName(ctx, purchase.UserID),
		Amount:         s.converter.Convert(purchase.Amount),
		Currency:       s.converter.Currency(),
		PaymentOptions: s.paymentOptions(ctx),
		TransactionRef: purchase.TransactionReference,
		TelegramChatID: purchase.TelegramChatID,
		TelegramUserID: purchase.TelegramUserID,
	}
	return info, nil
}

func (s *Service) buyerName(ctx context.Context, userID int64) string {
	if s.users == nil {
		return ""
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("buyer name lookup", zap.Int64("user_id", userID), zap.Error(err))
		return ""
	}
	return user.DisplayName
}

func (s *Service) paymentOptions(ctx context.Context) []PaymentOption {
	options := make([]PaymentOption, 0)
	if s.configs == nil {
		return options
	}

	configs, err := s.configs.ListActive(ctx)
	if err != nil {
		s.logger.Warn("payment options lookup", zap.Error(err))
		return options
	}
	for _, cfg := range configs {
		options = append(options, PaymentOption{
			ID:            cfg.ID,
			ConfigType:    string(cfg.ConfigType),
			ProviderName:  cfg.ProviderName,
			AccountNumber: cfg.AccountNumber,
			AccountName:   cfg.AccountName,
			Instructions:  cfg.Instructions,
		})
	}
	return options
}
