package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestCreateRequest struct {
	ItemType               string `json:"item_type"`
	ItemID                 int64  `json:"item_id"`
	PreferredContactMethod string `json:"preferred_contact_method"`
	Message                string `json:"message,omitempty"`
}

type RequestResponse struct {
	ID                     int64           `json:"id"`
	UserID                 int64           `json:"user_id"`
	ItemType               string          `json:"item_type"`
	ItemID                 int64           `json:"item_id"`
	Amount                 decimal.Decimal `json:"amount"`
	Status                 string          `json:"status"`
	PreferredContactMethod string          `json:"preferred_contact_method"`
	UserMessage            string          `json:"user_message,omitempty"`
	AdminNotes             string          `json:"admin_notes,omitempty"`
	ContactedAt            *time.Time      `json:"contacted_at,omitempty"`
	RespondedAt            *time.Time      `json:"responded_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

type AdminRequestResponse struct {
	RequestResponse
	ItemTitle  string          `json:"item_title"`
	ItemAuthor string          `json:"item_author"`
	ItemPrice  decimal.Decimal `json:"item_price"`
}

type RequestListResponse struct {
	Requests []RequestResponse `json:"requests"`
}

type AdminRequestListResponse struct {
	Requests []AdminRequestResponse `json:"requests"`
	Page     int                    `json:"page"`
	Limit    int                    `json:"limit"`
}

type RequestUpdateStatusRequest struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"admin_notes,omitempty"`
}

type RequestStatsResponse struct {
	Pending   int64 `json:"pending"`
	Contacted int64 `json:"contacted"`
	Approved  int64 `json:"approved"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
}

type AdminContactResponse struct {
	ID           int64  `json:"id"`
	ContactType  string `json:"contact_type"`
	ContactValue string `json:"contact_value"`
	DisplayName  string `json:"display_name"`
	IsPrimary    bool   `json:"is_primary"`
}

type AdminContactListResponse struct {
	Contacts []AdminContactResponse `json:"contacts"`
}
