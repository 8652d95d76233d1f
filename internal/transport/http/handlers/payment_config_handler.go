package handlers

import (
	"errors"
	"net/http"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	"github.com/areut/bookmarket/backend/internal/pkg/validate"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
	"github.com/areut/bookmarket/backend/internal/transport/http/dto"
	httperrors "github.com/areut/bookmarket/backend/internal/transport/http/errors"
)

type PaymentConfigHandler struct {
	configs *pgrepo.PaymentConfigRepo
}

func NewPaymentConfigHandler(configs *pgrepo.PaymentConfigRepo) *PaymentConfigHandler {
	return &PaymentConfigHandler{configs: configs}
}

// ListActive serves the receiving accounts buyers pay into.
func (h *PaymentConfigHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	if h.configs == nil {
		writeInternal(w, "PAYMENT_CONFIG_UNAVAILABLE", "payment config store is unavailable")
		return
	}

	configs, err := h.configs.ListActive(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list payment options")
		return
	}
	httperrors.Write(w, http.StatusOK, toPaymentConfigList(configs))
}

func (h *PaymentConfigHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	if h.configs == nil {
		writeInternal(w, "PAYMENT_CONFIG_UNAVAILABLE", "payment config store is unavailable")
		return
	}

	configs, err := h.configs.List(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list payment configs")
		return
	}
	httperrors.Write(w, http.StatusOK, toPaymentConfigList(configs))
}

func (h *PaymentConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.configs == nil {
		writeInternal(w, "PAYMENT_CONFIG_UNAVAILABLE", "payment config store is unavailable")
		return
	}

	var req dto.PaymentConfigCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	configType := enums.PaymentConfigType(req.ConfigType)
	if !configType.Valid() || !validate.Required(req.ProviderName) || !validate.Required(req.AccountNumber) {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid payment config payload")
		return
	}

	cfg, err := h.configs.Create(r.Context(), pgrepo.CreatePaymentConfigInput{
		ConfigType:    configType,
		ProviderName:  req.ProviderName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		Instructions:  req.Instructions,
		DisplayOrder:  req.DisplayOrder,
	})
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to create payment config")
		return
	}

	httperrors.Write(w, http.StatusCreated, toPaymentConfigResponse(cfg))
}

func (h *PaymentConfigHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	configID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid payment config id")
		return
	}

	var req dto.PaymentConfigSetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	cfg, err := h.configs.SetActive(r.Context(), configID, req.IsActive)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPaymentConfigNotFound) {
			writeNotFound(w, "PAYMENT_CONFIG_NOT_FOUND", "payment config not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to update payment config")
		return
	}

	httperrors.Write(w, http.StatusOK, toPaymentConfigResponse(cfg))
}

func toPaymentConfigList(configs []model.PaymentConfig) dto.PaymentConfigListResponse {
	items := make([]dto.PaymentConfigResponse, 0, len(configs))
	for _, cfg := range configs {
		items = append(items, toPaymentConfigResponse(cfg))
	}
	return dto.PaymentConfigListResponse{Configs: items}
}

func toPaymentConfigResponse(cfg model.PaymentConfig) dto.PaymentConfigResponse {
	return dto.PaymentConfigResponse{
		ID:            cfg.ID,
		ConfigType:    string(cfg.ConfigType),
		ProviderName:  cfg.ProviderName,
		AccountNumber: cfg.AccountNumber,
		AccountName:   cfg.AccountName,
		Instructions:  cfg.Instructions,
		IsActive:      cfg.IsActive,
		DisplayOrder:  cfg.DisplayOrder,
	}
}
