package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/jsonhost/internal/apperror"
	"github.com/sakif/jsonhost/internal/auth"
	"github.com/sakif/jsonhost/internal/model"
	"github.com/sakif/jsonhost/internal/service"
)

// FileHandler serves the session-authenticated document CRUD.
type FileHandler struct {
	files    *service.FileService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewFileHandler(files *service.FileService, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		files:    files,
		validate: newValidator(),
		logger:   logger,
	}
}

// saveFileRequest accepts content either as a string holding JSON text or
// as an inline JSON value.
type saveFileRequest struct {
	FileName string          `json:"fileName" validate:"required,max=255"`
	Content  json.RawMessage `json:"content"`
}

type FileListResponse struct {
	Files []model.FileSummary `json:"files"`
}

type FileResponse struct {
	File model.FileDetail `json:"file"`
}

type SaveFileResponse struct {
	Message string          `json:"message"`
	Created bool            `json:"created"`
	File    model.SavedFile `json:"file"`
}

// HandleList returns the caller's files newest first, without content.
//
// HTTP: GET /files
func (h *FileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	files, err := h.files.List(r.Context(), id.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, FileListResponse{Files: files})
}

// HandleSave creates or updates a file.
//
// HTTP: POST /files
// Body: {"fileName": "config", "content": "{\"x\":1}"} or {"fileName": "config", "content": {"x":1}}
func (h *FileHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req saveFileRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	content, err := documentContent(req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	f, created, err := h.files.Upsert(r.Context(), id.ID, req.FileName, content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveFileResponse{
		Message: "File saved",
		Created: created,
		File:    f.Saved(),
	})
}

// HandleGet returns one of the caller's files with its parsed content.
//
// HTTP: GET /files/{fileName}
func (h *FileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	f, err := h.files.Get(r.Context(), id.ID, pathParam(r, "fileName"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, FileResponse{File: f.Detail()})
}

// HandleDelete permanently removes one of the caller's files.
//
// HTTP: DELETE /files/{fileName}
func (h *FileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := h.files.Delete(r.Context(), id.ID, pathParam(r, "fileName")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "File deleted"})
}

// documentContent turns the request's content field into document text.
// A JSON string is unwrapped (its text is validated later); any other JSON
// value is stored as sent.
func documentContent(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", apperror.ValidationFailed("content", "content is required")
	}
	if trimmed[0] != '"' {
		return string(trimmed), nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", apperror.InvalidFormat("content", "content must be valid JSON")
	}
	return s, nil
}
