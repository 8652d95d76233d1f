package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/areut/bookmarket/backend/internal/services/auth"
	dispatchsvc "github.com/areut/bookmarket/backend/internal/services/dispatch"
	"github.com/areut/bookmarket/backend/internal/transport/http/dto"
	httperrors "github.com/areut/bookmarket/backend/internal/transport/http/errors"
)

type DispatchHandler struct {
	dispatch *dispatchsvc.Service
}

func NewDispatchHandler(dispatch *dispatchsvc.Service) *DispatchHandler {
	return &DispatchHandler{dispatch: dispatch}
}

// Dispatch renders and delivers a templated notification. Template tiers
// gate access: anonymous templates are open, authenticated ones need an
// identity, admin ones need the admin role.
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if h.dispatch == nil {
		httperrors.Write(w, http.StatusInternalServerError, dto.DispatchError{Error: "dispatch service is unavailable"})
		return
	}

	var req dto.DispatchRequest
	if err := decodeJSON(r, &req); err != nil {
		httperrors.Write(w, http.StatusBadRequest, dto.DispatchError{Error: "invalid request body"})
		return
	}

	tier, err := dispatchsvc.RequiredTier(req.Type)
	if err != nil {
		httperrors.Write(w, http.StatusBadRequest, dto.DispatchError{Error: "unknown notification type"})
		return
	}

	identity, authed := authsvc.IdentityFromContext(r.Context())
	switch tier {
	case dispatchsvc.TierAuthenticated:
		if !authed {
			httperrors.Write(w, http.StatusUnauthorized, dto.DispatchError{Error: "authentication required"})
			return
		}
	case dispatchsvc.TierAdmin:
		if !authed {
			httperrors.Write(w, http.StatusUnauthorized, dto.DispatchError{Error: "authentication required"})
			return
		}
		if identity.Role != authsvc.RoleAdmin {
			httperrors.Write(w, http.StatusForbidden, dto.DispatchError{Error: "admin role required"})
			return
		}
	}

	id, err := h.dispatch.Dispatch(r.Context(), req.Type, req.Data)
	if err != nil {
		switch {
		case errors.Is(err, dispatchsvc.ErrMissingField):
			httperrors.Write(w, http.StatusBadRequest, dto.DispatchError{Error: err.Error()})
		default:
			httperrors.Write(w, http.StatusInternalServerError, dto.DispatchError{Error: "failed to dispatch notification"})
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DispatchResponse{Success: true, ID: id})
}
