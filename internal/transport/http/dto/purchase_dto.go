package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseInitiateRequest struct {
	ItemType       string `json:"item_type"`
	ItemID         int64  `json:"item_id"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"`
	TelegramUserID *int64 `json:"telegram_user_id,omitempty"`
}

type PurchaseResponse struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	ItemType        string          `json:"item_type"`
	ItemID          int64           `json:"item_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	TransactionRef  string          `json:"transaction_ref"`
	PaymentConfigID *int64          `json:"payment_config_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PurchaseInitiateResponse additionally carries the one-time initiation
// token handed to the bot.
type PurchaseInitiateResponse struct {
	PurchaseResponse
	InitiationToken string `json:"initiation_token"`
}

type BeginPaymentRequest struct {
	PaymentConfigID int64 `json:"payment_config_id"`
}

// PurchaseVerifyRequest carries the updated_at snapshot the admin read; the
// write is rejected if someone else changed the row since.
type PurchaseVerifyRequest struct {
	UpdatedAt time.Time `json:"updated_at"`
}

type PurchaseListResponse struct {
	Purchases []PurchaseResponse `json:"purchases"`
	Page      int                `json:"page"`
	Limit     int                `json:"limit"`
}

type PurchaseCountsResponse struct {
	Counts map[string]int64 `json:"counts"`
}
