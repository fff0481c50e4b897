package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/jsonhost/internal/middleware"
	"github.com/sakif/jsonhost/internal/service"
)

// PublicHandler serves the key-in-path, read-only endpoints. No session is
// required; possession of the key is the only credential.
type PublicHandler struct {
	public  *service.PublicService
	baseURL string
	logger  *slog.Logger
}

// NewPublicHandler creates a PublicHandler. baseURL roots the URLs in a
// listing; when empty it is derived from each request.
func NewPublicHandler(public *service.PublicService, baseURL string, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		public:  public,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// HandleList returns every file of the key's owner with its public URL.
//
// HTTP: GET /data/key/{apiKey}
func (h *PublicHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	listing, err := h.public.ListByKey(r.Context(), pathParam(r, "apiKey"), h.base(r))
	middleware.RecordPublicRead("listing", err == nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, listing)
}

// HandleGet returns the raw document, not wrapped in an envelope, and
// counts one view.
//
// HTTP: GET /data/key/{apiKey}/{fileName}
func (h *PublicHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	content, err := h.public.GetByKey(r.Context(), pathParam(r, "apiKey"), pathParam(r, "fileName"))
	middleware.RecordPublicRead("file", err == nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(content)); err != nil {
		h.logger.Warn("writing public file", slog.String("error", err.Error()))
	}
}

// base derives scheme://host from the request when no public base URL is
// configured. X-Forwarded-Proto is honoured for deployments behind a proxy.
func (h *PublicHandler) base(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
