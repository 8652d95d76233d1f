package handlers

import (
	"errors"
	"net/http"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	authsvc "github.com/areut/bookmarket/backend/internal/services/auth"
	purchasesvc "github.com/areut/bookmarket/backend/internal/services/purchases"
	"github.com/areut/bookmarket/backend/internal/transport/http/dto"
	httperrors "github.com/areut/bookmarket/backend/internal/transport/http/errors"
)

const maxProofSize = 10 << 20

type PurchaseHandler struct {
	purchases *purchasesvc.Service
}

func NewPurchaseHandler(purchases *purchasesvc.Service) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

func (h *PurchaseHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	var req dto.PurchaseInitiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	itemType, err := enums.ParseItemType(req.ItemType)
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "unknown item type")
		return
	}

	purchase, err := h.purchases.Initiate(r.Context(), purchasesvc.InitiateInput{
		UserID:         identity.UserID,
		ItemType:       itemType,
		ItemID:         req.ItemID,
		TelegramChatID: req.TelegramChatID,
		TelegramUserID: req.TelegramUserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase payload")
		case errors.Is(err, purchasesvc.ErrItemNotFound):
			writeNotFound(w, "ITEM_NOT_FOUND", "item not found")
		case errors.Is(err, purchasesvc.ErrDuplicatePurchase):
			writeConflict(w, "DUPLICATE_PURCHASE", "an active purchase already exists for this item")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to initiate purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.PurchaseInitiateResponse{
		PurchaseResponse: toPurchaseResponse(purchase),
		InitiationToken:  purchase.InitiationToken,
	})
}

func (h *PurchaseHandler) BeginPayment(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	purchaseID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	var req dto.BeginPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	purchase, err := h.purchases.BeginPayment(r.Context(), identity.UserID, purchaseID, req.PaymentConfigID)
	if err != nil {
		h.writePurchaseError(w, err, "failed to begin payment")
		return
	}

	httperrors.Write(w, http.StatusOK, toPurchaseResponse(purchase))
}

func (h *PurchaseHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	purchaseID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	if err := r.ParseMultipartForm(maxProofSize); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("proof")
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "proof file is required")
		return
	}
	defer func() { _ = file.Close() }()

	purchase, err := h.purchases.AttachProof(r.Context(), identity.UserID, purchaseID,
		file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		h.writePurchaseError(w, err, "failed to store payment proof")
		return
	}

	httperrors.Write(w, http.StatusOK, toPurchaseResponse(purchase))
}

func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	purchaseID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	purchase, err := h.purchases.Get(r.Context(), identity.UserID, purchaseID)
	if err != nil {
		h.writePurchaseError(w, err, "failed to load purchase")
		return
	}

	httperrors.Write(w, http.StatusOK, toPurchaseResponse(purchase))
}

func (h *PurchaseHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, true)
}

func (h *PurchaseHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, false)
}

func (h *PurchaseHandler) verify(w http.ResponseWriter, r *http.Request, approve bool) {
	purchaseID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	var req dto.PurchaseVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	var (
		purchase model.Purchase
		err      error
	)
	if approve {
		purchase, err = h.purchases.Approve(r.Context(), purchaseID, req.UpdatedAt)
	} else {
		purchase, err = h.purchases.Reject(r.Context(), purchaseID, req.UpdatedAt)
	}
	if err != nil {
		h.writePurchaseError(w, err, "failed to verify purchase")
		return
	}

	httperrors.Write(w, http.StatusOK, toPurchaseResponse(purchase))
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	purchases, err := h.purchases.List(r.Context(), r.URL.Query().Get("status"), page, limit)
	if err != nil {
		if errors.Is(err, purchasesvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "unknown status filter")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to list purchases")
		return
	}

	items := make([]dto.PurchaseResponse, 0, len(purchases))
	for _, purchase := range purchases {
		items = append(items, toPurchaseResponse(purchase))
	}
	httperrors.Write(w, http.StatusOK, dto.PurchaseListResponse{
		Purchases: items,
		Page:      page,
		Limit:     limit,
	})
}

func (h *PurchaseHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.purchases.CountByStatus(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to count purchases")
		return
	}

	out := make(map[string]int64, len(counts))
	for status, count := range counts {
		out[string(status)] = count
	}
	httperrors.Write(w, http.StatusOK, dto.PurchaseCountsResponse{Counts: out})
}

func (h *PurchaseHandler) writePurchaseError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, purchasesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase payload")
	case errors.Is(err, purchasesvc.ErrPurchaseNotFound):
		writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
	case errors.Is(err, purchasesvc.ErrNotOwner):
		writeForbidden(w, "FORBIDDEN", "purchase belongs to another user")
	case errors.Is(err, purchasesvc.ErrInvalidTransition):
		writeConflict(w, "INVALID_TRANSITION", "status transition not allowed")
	case errors.Is(err, purchasesvc.ErrStaleWrite):
		writeConflict(w, "STALE_WRITE", "purchase changed since it was read")
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

func toPurchaseResponse(purchase model.Purchase) dto.PurchaseResponse {
	return dto.PurchaseResponse{
		ID:              purchase.ID,
		UserID:          purchase.UserID,
		ItemType:        string(purchase.ItemType),
		ItemID:          purchase.ItemID,
		Amount:          purchase.Amount,
		Status:          string(purchase.Status),
		TransactionRef:  purchase.TransactionReference,
		PaymentConfigID: purchase.PaymentProviderID,
		CreatedAt:       purchase.CreatedAt,
		UpdatedAt:       purchase.UpdatedAt,
	}
}
