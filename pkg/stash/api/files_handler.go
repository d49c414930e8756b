package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/stash/pkg/stash"
	"github.com/tendant/stash/pkg/stash/delivery"
)

// FilesHandler serves stored file payloads under /files/{key}
type FilesHandler struct {
	repo   ItemRepository
	logger *slog.Logger
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(repo ItemRepository, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{repo: repo, logger: logger}
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.FetchFile)
	r.Head("/*", h.FetchFile)
	return r
}

// FetchFile streams the blob behind one of the caller's file items.
// ?action=download forces an attachment; anything else previews inline.
// Any item or blob that cannot be resolved is answered with 404.
func (h *FilesHandler) FetchFile(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || key == "" {
		notFound(w, r)
		return
	}

	item, data, err := h.repo.ResolveFile(r.Context(), owner, key)
	if err != nil {
		// Callers only learn that the file is unavailable.
		if errors.Is(err, stash.ErrNotFound) {
			h.logger.InfoContext(r.Context(), "file not resolved", "storage_key", key, "error", err)
		} else {
			h.logger.ErrorContext(r.Context(), "file fetch failed", "storage_key", key, "error", err)
		}
		notFound(w, r)
		return
	}

	action := delivery.ParseAction(r.URL.Query().Get("action"))
	if err := delivery.Write(w, r, item, data, action); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write file response", "storage_key", key, "error", err)
	}
}
