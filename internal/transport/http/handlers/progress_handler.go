package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/events"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
	authsvc "github.com/areut/bookmarket/backend/internal/services/auth"
	"github.com/areut/bookmarket/backend/internal/transport/http/dto"
	httperrors "github.com/areut/bookmarket/backend/internal/transport/http/errors"
)

// StreamPublisher publishes change payloads to a pub/sub channel.
type StreamPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type ProgressHandler struct {
	progress *pgrepo.ProgressRepo
	stream   StreamPublisher
	logger   *zap.Logger
}

func NewProgressHandler(progress *pgrepo.ProgressRepo, stream StreamPublisher, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{progress: progress, stream: stream, logger: logger}
}

func (h *ProgressHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.progress == nil {
		writeInternal(w, "PROGRESS_UNAVAILABLE", "progress store is unavailable")
		return
	}

	var req dto.ProgressUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	status := enums.ProgressStatus(req.Status)
	if !status.Valid() || req.BookID <= 0 || req.Percent < 0 || req.Percent > 100 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid progress payload")
		return
	}

	progress, oldStatus, err := h.progress.Upsert(r.Context(), identity.UserID, req.BookID, req.Percent, status)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to store progress")
		return
	}

	kind := events.KindUpdate
	if oldStatus == "" {
		kind = events.KindInsert
	}
	h.publish(r, events.Change{
		Entity:    events.EntityReadingProgress,
		Kind:      kind,
		EntityID:  progress.ID,
		UserID:    progress.UserID,
		ItemID:    progress.BookID,
		OldStatus: string(oldStatus),
		NewStatus: string(progress.Status),
	})

	httperrors.Write(w, http.StatusOK, toProgressResponse(progress))
}

func (h *ProgressHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	entries, err := h.progress.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list progress")
		return
	}

	items := make([]dto.ProgressResponse, 0, len(entries))
	for _, progress := range entries {
		items = append(items, toProgressResponse(progress))
	}
	httperrors.Write(w, http.StatusOK, dto.ProgressListResponse{Entries: items})
}

func (h *ProgressHandler) publish(r *http.Request, change events.Change) {
	if h.stream == nil {
		return
	}
	raw, err := change.Marshal()
	if err != nil {
		h.logger.Warn("marshal progress change", zap.Error(err))
		return
	}
	if err := h.stream.Publish(r.Context(), events.EntityReadingProgress.Channel(), raw); err != nil {
		h.logger.Warn("publish progress change", zap.Error(err))
	}
}

func toProgressResponse(progress model.ReadingProgress) dto.ProgressResponse {
	return dto.ProgressResponse{
		ID:        progress.ID,
		BookID:    progress.BookID,
		Percent:   progress.Percent,
		Status:    string(progress.Status),
		UpdatedAt: progress.UpdatedAt,
	}
}
