package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/models"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/{type}/{slug}", h.GetDocument)

	r.Get("/search", h.Search)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.OpenSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Patch("/", h.EditSession)
			r.Delete("/", h.CloseSession)
			r.Post("/flush", h.FlushSession)
			r.Post("/publish", h.Transition(models.ActionPublish))
			r.Post("/unpublish", h.Transition(models.ActionUnpublish))
			r.Post("/discard", h.Transition(models.ActionDiscard))
			r.Post("/restore", h.RestoreSession)
			r.Delete("/error", h.DismissSessionError)
		})
	})

	r.Get("/recycle", h.ListRecycle)
	r.Delete("/recycle", h.EmptyRecycle)
	r.Post("/recycle/restore", h.RestoreRecycle)
	r.Delete("/recycle/{entryID}", h.DeleteRecycleEntry)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
