package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
)

type Purchase struct {
	ID                   int64                `json:"id"`
	UserID               int64                `json:"user_id"`
	ItemType             enums.ItemType       `json:"item_type"`
	ItemID               int64                `json:"item_id"`
	Amount               decimal.Decimal      `json:"amount"`
	Status               enums.PurchaseStatus `json:"status"`
	TransactionReference string               `json:"transaction_reference"`
	PaymentProviderID    *int64               `json:"payment_provider_id,omitempty"`
	InitiationToken      string               `json:"-"`
	TelegramChatID       *int64               `json:"telegram_chat_id,omitempty"`
	TelegramUserID       *int64               `json:"telegram_user_id,omitempty"`
	ProofObjectKey       *string              `json:"-"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}
