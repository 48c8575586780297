package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/restore"
	"github.com/starford/folio/internal/session"
)

// Handler holds API route handlers.
type Handler struct {
	docs     *docservice.Service
	restorer *restore.Engine
	sessions *session.Manager
}

// NewHandler creates a new Handler.
func NewHandler(docs *docservice.Service, restorer *restore.Engine, sessions *session.Manager) *Handler {
	return &Handler{docs: docs, restorer: restorer, sessions: sessions}
}

func documentID(r *http.Request) string {
	return chi.URLParam(r, "type") + "/" + chi.URLParam(r, "slug")
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List active documents with optional filtering and pagination
//	@Tags			documents
//	@Produce		json
//	@Param			type	query		string	false	"Document type"	Enums(post, page)
//	@Param			state	query		string	false	"Lifecycle state"	Enums(draft, published, active)
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	f := models.DocumentFilter{
		Type:   models.DocType(q.Get("type")),
		State:  models.State(q.Get("state")),
		Tag:    q.Get("tag"),
		Limit:  limit,
		Offset: offset,
	}
	if f.Type != "" && !f.Type.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown document type"))
		return
	}

	items, total, err := h.docs.ListDocuments(r.Context(), f)
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	if items == nil {
		items = []models.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/{type}/{slug}.
//
//	@Summary		Get a single document
//	@Tags			documents
//	@Produce		json
//	@Param			type	path		string	true	"Document type"
//	@Param			slug	path		string	true	"Document slug"
//	@Success		200		{object}	DocumentResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{type}/{slug} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.GetDocument(r.Context(), documentID(r))
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse(doc))
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a new document; posts start as drafts
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	DocumentResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	doc, err := h.docs.CreateDocument(r.Context(), models.NewDocument{
		Type:  req.Type,
		Title: req.Title,
		Slug:  req.Slug,
		Body:  req.Body,
		Meta:  req.Meta,
	})
	if err != nil {
		writeError(w, "create document", err)
		return
	}
	writeJSON(w, http.StatusCreated, documentResponse(doc))
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across active documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.docs.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
