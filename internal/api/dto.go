package api

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/frontmatter"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/lifecycle"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/restore"
	"github.com/starford/folio/internal/session"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Type  models.DocType      `json:"type" example:"post" validate:"required"`
	Title string              `json:"title" example:"Hello World"`
	Slug  string              `json:"slug,omitempty" example:"hello-world"`
	Body  string              `json:"body" example:"# Hello"`
	Meta  *frontmatter.Record `json:"meta,omitempty"`
}

// Validate checks the request shape.
func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required, validation.In(models.TypePost, models.TypePage)),
		validation.Field(&r.Title, validation.When(r.Slug == "", validation.Required)),
	)
}

// DocumentResponse is a document plus the lifecycle actions it allows.
type DocumentResponse struct {
	*models.Document
	Actions []models.Action `json:"available_actions"`
}

func documentResponse(d *models.Document) DocumentResponse {
	return DocumentResponse{Document: d, Actions: lifecycle.AvailableActions(d)}
}

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.DocumentSummary `json:"documents" validate:"required"`
	Total     int                      `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// OpenSessionRequest is the request body for opening an edit session.
type OpenSessionRequest struct {
	DocumentID string `json:"document_id" example:"post/hello-world" validate:"required"`
}

// Validate checks the request shape.
func (r OpenSessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DocumentID, validation.Required),
	)
}

// EditRequest is the request body for editing through a session. Every
// field is optional; nil fields are left alone.
type EditRequest struct {
	Title            *string            `json:"title,omitempty"`
	Body             *string            `json:"body,omitempty"`
	Meta             *frontmatter.Patch `json:"meta,omitempty"`
	ToggleTags       []string           `json:"toggle_tags,omitempty"`
	ToggleCategories []string           `json:"toggle_categories,omitempty"`
}

// Validate rejects an empty edit and any part that would fail once
// queued, so an edit is either taken whole or not at all.
func (r EditRequest) Validate() error {
	if r.Title == nil && r.Body == nil && r.Meta == nil && len(r.ToggleTags) == 0 && len(r.ToggleCategories) == 0 {
		return fmt.Errorf("edit changes nothing")
	}
	if r.Meta != nil {
		if err := r.Meta.Validate(); err != nil {
			return fmt.Errorf("meta: %w", err)
		}
	}
	for _, name := range r.ToggleTags {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("toggle_tags: %w", frontmatter.ErrInvalidName)
		}
	}
	for _, name := range r.ToggleCategories {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("toggle_categories: %w", frontmatter.ErrInvalidName)
		}
	}
	return nil
}

// SessionView is what an editor renders for one session.
type SessionView struct {
	SessionID string `json:"session_id"`
	// Document is the confirmed document overlaid with unconfirmed edits.
	Document  *models.Document `json:"document"`
	Confirmed *models.Document `json:"confirmed"`
	// Unsaved lists fields whose last write failed and that wait for a retry.
	Unsaved []string `json:"unsaved,omitempty"`
	Error     string           `json:"error,omitempty"`
	Saving    string           `json:"saving" example:"idle"`
	Actions   []models.Action  `json:"available_actions"`
}

func sessionView(c *session.Controller) SessionView {
	confirmed := c.Document()
	v := SessionView{
		SessionID: c.ID(),
		Document:  c.View(),
		Confirmed: confirmed,
		Unsaved:   c.Unsaved().Fields(),
		Saving:    c.Saving().String(),
		Actions:   lifecycle.AvailableActions(confirmed),
	}
	if err := c.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

// RestoreRequest is the request body for restoring a session's document.
type RestoreRequest = restore.Request

// BatchRestoreRequest restores several recycle entries with one strategy.
type BatchRestoreRequest struct {
	EntryIDs []string         `json:"entry_ids" validate:"required"`
	Strategy restore.Strategy `json:"strategy" example:"keepBoth" validate:"required"`
	NewName  string           `json:"new_name,omitempty"`
	State    models.State     `json:"state,omitempty"`
}

// Validate checks the request shape.
func (r BatchRestoreRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.EntryIDs, validation.Required, validation.Each(validation.Required)),
	); err != nil {
		return err
	}
	return r.request().Validate()
}

func (r BatchRestoreRequest) request() restore.Request {
	return restore.Request{Strategy: r.Strategy, NewName: r.NewName, State: r.State}
}

// RestoreItem is the outcome for one entry of a batch restore.
type RestoreItem struct {
	EntryID  string           `json:"entry_id"`
	Document *models.Document `json:"document,omitempty"`
	Error    string           `json:"error,omitempty"`
	Status   int              `json:"status"`
}

// BatchRestoreResponse lists per-entry outcomes in request order.
type BatchRestoreResponse struct {
	Results   []RestoreItem `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// EmptyRecycleResponse reports how many entries were purged.
type EmptyRecycleResponse struct {
	Removed int `json:"removed" example:"3"`
}
