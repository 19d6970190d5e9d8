package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/server/middleware"
	"github.com/foliohq/folio/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// ContentHandler serves the portfolio document collections.
type ContentHandler struct {
	content *service.ContentService
	logger  *slog.Logger
}

// NewContentHandler creates a ContentHandler.
func NewContentHandler(content *service.ContentService, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentHandler{content: content, logger: logger}
}

type listData struct {
	Items []model.Document `json:"items"`
	Meta  model.ListMeta   `json:"meta"`
}

type documentData struct {
	Document *model.Document `json:"document"`
}

// List returns a page of documents. Anonymous callers only see published
// documents.
// GET /api/{collection}?limit=&offset=
func (h *ContentHandler) List(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := model.ListOptions{
			IncludeUnpublished: middleware.AdminFromContext(r.Context()) != nil,
			Limit:              clampInt(queryInt(r, "limit", defaultPageSize), 1, maxPageSize),
			Offset:             clampInt(queryInt(r, "offset", 0), 0, 1<<31-1),
		}

		docs, total, err := h.content.List(r.Context(), collection, opts)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		if docs == nil {
			docs = []model.Document{}
		}
		writeSuccess(w, http.StatusOK, "", listData{
			Items: docs,
			Meta: model.ListMeta{
				Count:  len(docs),
				Total:  total,
				Limit:  opts.Limit,
				Offset: opts.Offset,
			},
		})
	}
}

// Get returns one document.
// GET /api/{collection}/{id}
func (h *ContentHandler) Get(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin := middleware.AdminFromContext(r.Context())
		doc, err := h.content.Get(r.Context(), collection, chi.URLParam(r, "id"), admin != nil)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeSuccess(w, http.StatusOK, "", documentData{Document: doc})
	}
}

// Create stores a new document from the request body.
// POST /api/{collection}
func (h *ContentHandler) Create(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		if err := readJSON(r, &body, false); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		doc, err := h.content.Create(r.Context(), collection, body)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "Created successfully", documentData{Document: doc})
	}
}

// Update replaces a document's body.
// PUT /api/{collection}/{id}
func (h *ContentHandler) Update(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		if err := readJSON(r, &body, false); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		doc, err := h.content.Update(r.Context(), collection, chi.URLParam(r, "id"), body)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Updated successfully", documentData{Document: doc})
	}
}

// Delete removes a document.
// DELETE /api/{collection}/{id}
func (h *ContentHandler) Delete(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.content.Delete(r.Context(), collection, chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Deleted successfully", nil)
	}
}

// SubmitMessage accepts a public contact form submission.
// POST /api/messages
func (h *ContentHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var in service.MessageInput
	if err := readJSON(r, &in, true); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	doc, err := h.content.SubmitMessage(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Message sent successfully", documentData{Document: doc})
}

// GetSettings returns the site settings.
// GET /api/settings
func (h *ContentHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	doc, err := h.content.Settings(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", documentData{Document: doc})
}

// PutSettings replaces the site settings.
// PUT /api/settings
func (h *ContentHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := readJSON(r, &body, false); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	doc, err := h.content.PutSettings(r.Context(), body)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Settings updated successfully", documentData{Document: doc})
}

// Stats returns the admin dashboard counts.
// GET /api/admin/stats
func (h *ContentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.content.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", stats)
}
