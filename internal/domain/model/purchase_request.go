package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
)

type PurchaseRequest struct {
	ID                     int64               `json:"id"`
	UserID                 int64               `json:"user_id"`
	ItemType               enums.ItemType      `json:"item_type"`
	ItemID                 int64               `json:"item_id"`
	Amount                 decimal.Decimal     `json:"amount"`
	Status                 enums.RequestStatus `json:"status"`
	PreferredContactMethod enums.ContactType   `json:"preferred_contact_method"`
	UserMessage            string              `json:"user_message"`
	AdminNotes             string              `json:"admin_notes"`
	ContactedAt            *time.Time          `json:"contacted_at,omitempty"`
	RespondedAt            *time.Time          `json:"responded_at,omitempty"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// AdminPurchaseRequest is a request row joined with the catalog fields the
// admin console lists alongside it.
type AdminPurchaseRequest struct {
	PurchaseRequest
	ItemTitle  string          `json:"item_title"`
	ItemAuthor string          `json:"item_author"`
	ItemPrice  decimal.Decimal `json:"item_price"`
}

type RequestStats struct {
	Pending   int64 `json:"pending"`
	Contacted int64 `json:"contacted"`
	Approved  int64 `json:"approved"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
}
