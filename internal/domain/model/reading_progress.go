package model

import (
	"time"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
)

type ReadingProgress struct {
	ID        int64                `json:"id"`
	UserID    int64                `json:"user_id"`
	BookID    int64                `json:"book_id"`
	Percent   int                  `json:"percent"`
	Status    enums.ProgressStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}
