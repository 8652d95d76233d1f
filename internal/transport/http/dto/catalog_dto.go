package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookResponse struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Price     decimal.Decimal `json:"price"`
	IsBundle  bool            `json:"is_bundle"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type BookListResponse struct {
	Books []BookResponse `json:"books"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

type BookUpdateRequest struct {
	Title  *string          `json:"title,omitempty"`
	Author *string          `json:"author,omitempty"`
	Price  *decimal.Decimal `json:"price,omitempty"`
}
