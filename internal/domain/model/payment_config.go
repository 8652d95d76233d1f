package model

import "github.com/areut/bookmarket/backend/internal/domain/enums"

type PaymentConfig struct {
	ID            int64                   `json:"id"`
	ConfigType    enums.PaymentConfigType `json:"config_type"`
	ProviderName  string                  `json:"provider_name"`
	AccountNumber string                  `json:"account_number"`
	AccountName   string                  `json:"account_name"`
	Instructions  string                  `json:"instructions"`
	IsActive      bool                    `json:"is_active"`
	DisplayOrder  int                     `json:"display_order"`
}
