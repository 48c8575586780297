package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/session"
)

// session resolves the {id} URL parameter, writing 404 when it is unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	c, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get session", err)
		return nil, false
	}
	return c, true
}

// OpenSession handles POST /api/sessions.
//
//	@Summary		Open an edit session for a document
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Document to edit"
//	@Success		201		{object}	SessionView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	c, err := h.sessions.Open(r.Context(), req.DocumentID)
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView(c))
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get the current view of an edit session
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SessionView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionView(c))
}

// EditSession handles PATCH /api/sessions/{id}.
//
// Edits are queued and written after the debounce window; the response
// reflects them immediately in "document" but not yet in "confirmed".
//
//	@Summary		Queue edits for a session
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Session ID"
//	@Param			body	body		EditRequest	true	"Fields to change"
//	@Success		202		{object}	SessionView
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [patch]
func (h *Handler) EditSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	var req EditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := applyEdit(c, req); err != nil {
		writeError(w, "edit session", err)
		return
	}
	writeJSON(w, http.StatusAccepted, sessionView(c))
}

func applyEdit(c *session.Controller, req EditRequest) error {
	if req.Title != nil {
		if err := c.EditTitle(*req.Title); err != nil {
			return err
		}
	}
	if req.Body != nil {
		if err := c.EditBody(*req.Body); err != nil {
			return err
		}
	}
	if req.Meta != nil {
		if err := c.EditMetadata(*req.Meta); err != nil {
			return err
		}
	}
	for _, name := range req.ToggleTags {
		if err := c.ToggleTag(name); err != nil {
			return err
		}
	}
	for _, name := range req.ToggleCategories {
		if err := c.ToggleCategory(name); err != nil {
			return err
		}
	}
	return nil
}

// FlushSession handles POST /api/sessions/{id}/flush.
//
//	@Summary		Write queued edits now
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SessionView
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/flush [post]
func (h *Handler) FlushSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := c.Flush(r.Context()); err != nil {
		writeError(w, "flush session", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(c))
}

// Transition returns a handler for publish, unpublish or discard.
//
//	@Summary		Flush edits, then publish, unpublish or discard the document
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SessionView
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/publish [post]
//	@Router			/sessions/{id}/unpublish [post]
//	@Router			/sessions/{id}/discard [post]
func (h *Handler) Transition(action models.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := h.session(w, r)
		if !ok {
			return
		}
		var run func(context.Context) (*models.Document, error)
		switch action {
		case models.ActionPublish:
			run = c.Publish
		case models.ActionUnpublish:
			run = c.Unpublish
		case models.ActionDiscard:
			run = c.Discard
		default:
			writeJSON(w, http.StatusBadRequest, errorBody("unknown action"))
			return
		}
		if _, err := run(r.Context()); err != nil {
			writeError(w, string(action), err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView(c))
	}
}

// RestoreSession handles POST /api/sessions/{id}/restore.
//
//	@Summary		Restore the session's discarded document
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		RestoreRequest	true	"Conflict strategy"
//	@Success		200		{object}	SessionView
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/restore [post]
func (h *Handler) RestoreSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	var req RestoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if _, err := c.Restore(r.Context(), req); err != nil {
		writeError(w, "restore", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(c))
}

// DismissSessionError handles DELETE /api/sessions/{id}/error.
//
//	@Summary		Dismiss the session's last error; unsaved edits are kept
//	@Tags			sessions
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Dismissed"
//	@Security		BearerAuth
//	@Router			/sessions/{id}/error [delete]
func (h *Handler) DismissSessionError(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	c.DismissError()
	w.WriteHeader(http.StatusNoContent)
}

// CloseSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Flush queued edits and close the session
//	@Tags			sessions
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Closed"
//	@Failure		404	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
