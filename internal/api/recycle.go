package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/models"
)

// ListRecycle handles GET /api/recycle.
//
//	@Summary		List recycle bin entries
//	@Tags			recycle
//	@Produce		json
//	@Param			type		query		string	false	"Document type"	Enums(post, page)
//	@Param			q			query		string	false	"Title or slug filter"
//	@Param			page		query		int		false	"1-based page"
//	@Param			page_size	query		int		false	"Page size"
//	@Success		200			{object}	models.RecycleListing
//	@Security		BearerAuth
//	@Router			/recycle [get]
func (h *Handler) ListRecycle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	f := models.RecycleFilter{
		Type:     models.DocType(q.Get("type")),
		Query:    q.Get("q"),
		Page:     page,
		PageSize: size,
	}
	if f.Type != "" && !f.Type.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown document type"))
		return
	}

	listing, err := h.docs.ListRecycleEntries(r.Context(), f)
	if err != nil {
		writeError(w, "list recycle", err)
		return
	}
	if listing.Entries == nil {
		listing.Entries = []models.RecycleEntry{}
	}
	writeJSON(w, http.StatusOK, listing)
}

// RestoreRecycle handles POST /api/recycle/restore.
//
// Each entry is restored independently; the response carries one result
// per requested entry and earlier successes are never rolled back.
//
//	@Summary		Restore recycle entries with a conflict strategy
//	@Tags			recycle
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BatchRestoreRequest	true	"Entries and strategy"
//	@Success		200		{object}	BatchRestoreResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recycle/restore [post]
func (h *Handler) RestoreRecycle(w http.ResponseWriter, r *http.Request) {
	var req BatchRestoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	results := h.restorer.RestoreBatch(r.Context(), req.EntryIDs, req.request())
	resp := BatchRestoreResponse{Results: make([]RestoreItem, 0, len(results))}
	for _, res := range results {
		item := RestoreItem{EntryID: res.EntryID, Document: res.Document, Status: http.StatusOK}
		if res.Err != nil {
			item.Status = statusOf(res.Err)
			item.Error = res.Err.Error()
			resp.Failed++
		} else {
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteRecycleEntry handles DELETE /api/recycle/{entryID}.
//
//	@Summary		Permanently delete a recycled document
//	@Tags			recycle
//	@Param			entryID	path	string	true	"Recycle entry ID"
//	@Success		204		"Deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recycle/{entryID} [delete]
func (h *Handler) DeleteRecycleEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.DeleteRecycleEntry(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		writeError(w, "delete recycle entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EmptyRecycle handles DELETE /api/recycle.
//
//	@Summary		Permanently delete every recycled document, optionally of one type
//	@Tags			recycle
//	@Produce		json
//	@Param			type	query		string	false	"Document type"	Enums(post, page)
//	@Success		200		{object}	EmptyRecycleResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recycle [delete]
func (h *Handler) EmptyRecycle(w http.ResponseWriter, r *http.Request) {
	n, err := h.docs.EmptyRecycle(r.Context(), models.DocType(r.URL.Query().Get("type")))
	if err != nil {
		writeError(w, "empty recycle", err)
		return
	}
	writeJSON(w, http.StatusOK, EmptyRecycleResponse{Removed: n})
}
