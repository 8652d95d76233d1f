package dto

type PaymentConfigCreateRequest struct {
	ConfigType    string `json:"config_type"`
	ProviderName  string `json:"provider_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
	DisplayOrder  int    `json:"display_order,omitempty"`
}

type PaymentConfigResponse struct {
	ID            int64  `json:"id"`
	ConfigType    string `json:"config_type"`
	ProviderName  string `json:"provider_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Instructions  string `json:"instructions"`
	IsActive      bool   `json:"is_active"`
	DisplayOrder  int    `json:"display_order"`
}

type PaymentConfigListResponse struct {
	Configs []PaymentConfigResponse `json:"configs"`
}

type PaymentConfigSetActiveRequest struct {
	IsActive bool `json:"is_active"`
}
