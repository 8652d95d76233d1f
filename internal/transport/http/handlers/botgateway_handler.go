package handlers

import (
	"errors"
	"net/http"

	botgatewaysvc "github.com/areut/bookmarket/backend/internal/services/botgateway"
	"github.com/areut/bookmarket/backend/internal/transport/http/dto"
	httperrors "github.com/areut/bookmarket/backend/internal/transport/http/errors"
)

type BotGatewayHandler struct {
	gateway *botgatewaysvc.Service
}

func NewBotGatewayHandler(gateway *botgatewaysvc.Service) *BotGatewayHandler {
	return &BotGatewayHandler{gateway: gateway}
}

// PurchaseInfo resolves an initiation token for the external bot. The error
// body uses the gateway's {error, code} contract.
func (h *BotGatewayHandler) PurchaseInfo(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.BotError{
			Error: "bot gateway is unavailable", Code: "GATEWAY_UNAVAILABLE",
		})
		return
	}

	if !h.gateway.ValidateBotAuth(r.Header.Get("Authorization")) {
		httperrors.Write(w, http.StatusUnauthorized, httperrors.BotError{
			Error: "invalid bot credentials", Code: "UNAUTHORIZED",
		})
		return
	}

	var req dto.BotPurchaseInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		httperrors.Write(w, http.StatusBadRequest, httperrors.BotError{
			Error: "invalid request body", Code: "INVALID_BODY",
		})
		return
	}

	info, err := h.gateway.GetPurchaseInfo(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, botgatewaysvc.ErrInvalidToken):
			httperrors.Write(w, http.StatusBadRequest, httperrors.BotError{
				Error: "token is required", Code: "INVALID_TOKEN",
			})
		case errors.Is(err, botgatewaysvc.ErrTokenNotFound):
			httperrors.Write(w, http.StatusNotFound, httperrors.BotError{
				Error: "token does not resolve to a purchase", Code: "TOKEN_NOT_FOUND",
			})
		default:
			httperrors.Write(w, http.StatusInternalServerError, httperrors.BotError{
				Error: "purchase lookup failed", Code: "DATABASE_ERROR",
			})
		}
		return
	}

	httperrors.Write(w, http.StatusOK, info)
}
