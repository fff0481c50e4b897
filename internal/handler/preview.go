package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/auth"
	"github.com/sakif/jsonhost/internal/service"
)

type PreviewHandler struct {
	previews *service.PreviewService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPreviewHandler(previews *service.PreviewService, logger *slog.Logger) *PreviewHandler {
	return &PreviewHandler{
		previews: previews,
		validate: newValidator(),
		logger:   logger,
	}
}

type previewRequest struct {
	PreviewURL string `json:"previewUrl" validate:"max=2048"`
}

type PreviewResponse struct {
	PreviewURL *string `json:"previewUrl"`
}

// HandleGet returns the caller's preview URL or null.
//
// HTTP: GET /preview-url
func (h *PreviewHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	u, err := h.previews.Get(r.Context(), id.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{PreviewURL: u})
}

// HandleSet stores or, given an empty string, clears the preview URL.
//
// HTTP: POST /preview-url
// Body: {"previewUrl": "https://..."}
func (h *PreviewHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req previewRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.previews.Set(r.Context(), id.ID, req.PreviewURL)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{PreviewURL: u})
}
