package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/auth"
	"github.com/sakif/jsonhost/internal/service"
)

type APIKeyHandler struct {
	keys   *service.APIKeyService
	logger *slog.Logger
}

func NewAPIKeyHandler(keys *service.APIKeyService, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, logger: logger}
}

// APIKeyResponse carries the caller's key; APIKey is null when none is live.
type APIKeyResponse struct {
	APIKey  *string `json:"apiKey"`
	Message string  `json:"message,omitempty"`
}

// HandleGet returns the caller's current key.
//
// HTTP: GET /api-key
func (h *APIKeyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	key, err := h.keys.Get(r.Context(), id.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, APIKeyResponse{APIKey: key})
}

// HandleGenerate issues a new key, replacing any existing one.
//
// HTTP: POST /api-key/generate
func (h *APIKeyHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	key, err := h.keys.Generate(r.Context(), id.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, APIKeyResponse{APIKey: &key, Message: "API key generated"})
}

// HandleDelete revokes the caller's key.
//
// HTTP: DELETE /api-key
func (h *APIKeyHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := h.keys.Delete(r.Context(), id.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "API key deleted"})
}
