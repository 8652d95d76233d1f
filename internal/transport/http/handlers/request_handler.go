package handlers

import (
	"errors"
	"net/http"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	authsvc "github.com/areut/bookmarket/backend/internal/services/auth"
	requestsvc "github.com/areut/bookmarket/backend/internal/services/requests"
	"github.com/areut/bookmarket/backend/internal/transport/http/dto"
	httperrors "github.com/areut/bookmarket/backend/internal/transport/http/errors"
)

type RequestHandler struct {
	requests *requestsvc.Service
}

func NewRequestHandler(requests *requestsvc.Service) *RequestHandler {
	return &RequestHandler{requests: requests}
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.requests == nil {
		writeInternal(w, "REQUEST_SERVICE_UNAVAILABLE", "request service is unavailable")
		return
	}

	var req dto.RequestCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	itemType, err := enums.ParseItemType(req.ItemType)
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "unknown item type")
		return
	}

	request, err := h.requests.Create(r.Context(), requestsvc.CreateInput{
		UserID:                 identity.UserID,
		ItemType:               itemType,
		ItemID:                 req.ItemID,
		PreferredContactMethod: enums.ContactType(req.PreferredContactMethod),
		UserMessage:            req.Message,
	})
	if err != nil {
		switch {
		case errors.Is(err, requestsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid request payload")
		case errors.Is(err, requestsvc.ErrItemNotFound):
			writeNotFound(w, "ITEM_NOT_FOUND", "item not found")
		case errors.Is(err, requestsvc.ErrDuplicateRequest):
			writeConflict(w, "DUPLICATE_REQUEST", "an open request already exists for this item")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to create request")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, toRequestResponse(request))
}

func (h *RequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	requests, err := h.requests.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list requests")
		return
	}

	items := make([]dto.RequestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, toRequestResponse(request))
	}
	httperrors.Write(w, http.StatusOK, dto.RequestListResponse{Requests: items})
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	requestID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request id")
		return
	}

	request, err := h.requests.Get(r.Context(), requestID)
	if err != nil {
		h.writeRequestError(w, err, "failed to load request")
		return
	}
	if request.UserID != identity.UserID && identity.Role != authsvc.RoleAdmin {
		writeForbidden(w, "FORBIDDEN", "request belongs to another user")
		return
	}

	httperrors.Write(w, http.StatusOK, toRequestResponse(request))
}

func (h *RequestHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	requests, err := h.requests.ListForAdmin(r.Context(), page, limit)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list requests")
		return
	}

	items := make([]dto.AdminRequestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, dto.AdminRequestResponse{
			RequestResponse: toRequestResponse(request.PurchaseRequest),
			ItemTitle:       request.ItemTitle,
			ItemAuthor:      request.ItemAuthor,
			ItemPrice:       request.ItemPrice,
		})
	}
	httperrors.Write(w, http.StatusOK, dto.AdminRequestListResponse{
		Requests: items,
		Page:     page,
		Limit:    limit,
	})
}

func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request id")
		return
	}

	var req dto.RequestUpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	status, err := enums.ParseRequestStatus(req.Status)
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "unknown request status")
		return
	}

	request, err := h.requests.UpdateStatus(r.Context(), requestsvc.UpdateStatusInput{
		RequestID:  requestID,
		NewStatus:  status,
		AdminNotes: req.AdminNotes,
	})
	if err != nil {
		h.writeRequestError(w, err, "failed to update request")
		return
	}

	httperrors.Write(w, http.StatusOK, toRequestResponse(request))
}

func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request id")
		return
	}

	if err := h.requests.Delete(r.Context(), requestID); err != nil {
		h.writeRequestError(w, err, "failed to delete request")
		return
	}

	httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *RequestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.requests.Stats(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load request stats")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RequestStatsResponse{
		Pending:   stats.Pending,
		Contacted: stats.Contacted,
		Approved:  stats.Approved,
		Rejected:  stats.Rejected,
		Completed: stats.Completed,
		Total:     stats.Total,
	})
}

// Contacts serves the public admin contact directory shown to buyers.
func (h *RequestHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.requests.ContactDirectory(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load contacts")
		return
	}

	items := make([]dto.AdminContactResponse, 0, len(contacts))
	for _, contact := range contacts {
		items = append(items, dto.AdminContactResponse{
			ID:           contact.ID,
			ContactType:  string(contact.ContactType),
			ContactValue: contact.ContactValue,
			DisplayName:  contact.DisplayName,
			IsPrimary:    contact.IsPrimary,
		})
	}
	httperrors.Write(w, http.StatusOK, dto.AdminContactListResponse{Contacts: items})
}

func (h *RequestHandler) writeRequestError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, requestsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request payload")
	case errors.Is(err, requestsvc.ErrRequestNotFound):
		writeNotFound(w, "REQUEST_NOT_FOUND", "request not found")
	case errors.Is(err, requestsvc.ErrInvalidTransition):
		writeConflict(w, "INVALID_TRANSITION", "status transition not allowed")
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

func toRequestResponse(request model.PurchaseRequest) dto.RequestResponse {
	return dto.RequestResponse{
		ID:                     request.ID,
		UserID:                 request.UserID,
		ItemType:               string(request.ItemType),
		ItemID:                 request.ItemID,
		Amount:                 request.Amount,
		Status:                 string(request.Status),
		PreferredContactMethod: string(request.PreferredContactMethod),
		UserMessage:            request.UserMessage,
		AdminNotes:             request.AdminNotes,
		ContactedAt:            request.ContactedAt,
		RespondedAt:            request.RespondedAt,
		CreatedAt:              request.CreatedAt,
		UpdatedAt:              request.UpdatedAt,
	}
}
