package dto

import "time"

type ProgressUpsertRequest struct {
	BookID  int64  `json:"book_id"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

type ProgressResponse struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"book_id"`
	Percent   int       `json:"percent"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProgressListResponse struct {
	Entries []ProgressResponse `json:"entries"`
}
