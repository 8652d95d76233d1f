package model

import "github.com/areut/bookmarket/backend/internal/domain/enums"

type AdminContactInfo struct {
	ID           int64             `json:"id"`
	AdminID      int64             `json:"admin_id"`
	ContactType  enums.ContactType `json:"contact_type"`
	ContactValue string            `json:"contact_value"`
	DisplayName  string            `json:"display_name"`
	IsActive     bool              `json:"is_active"`
	IsPrimary    bool              `json:"is_primary"`
}
