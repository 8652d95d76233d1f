package dto

type BotPurchaseInfoRequest struct {
	Token string `json:"token"`
}
