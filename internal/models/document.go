// Package models defines the domain types for Folio.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/folio/internal/frontmatter"
)

// DocType distinguishes posts from pages.
type DocType string

const (
	TypePost DocType = "post"
	TypePage DocType = "page"
)

// Valid reports whether t is a known document type.
func (t DocType) Valid() bool {
	return t == TypePost || t == TypePage
}

// ParseDocType maps a type name to its DocType.
func ParseDocType(s string) (DocType, error) {
	t := DocType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown document type %q", s)
	}
	return t, nil
}

// State is a lifecycle state. Posts move between draft, published and
// recycled; pages between active and recycled.
type State string

const (
	StateDraft     State = "draft"
	StatePublished State = "published"
	StateActive    State = "active"
	StateRecycled  State = "recycled"
)

// Action is a lifecycle transition request.
type Action string

const (
	ActionPublish   Action = "publish"
	ActionUnpublish Action = "unpublish"
	ActionDiscard   Action = "discard"
	ActionRestore   Action = "restore"
)

// Document is a Markdown content unit with its metadata.
type Document struct {
	// ID is "<type>/<slug>"; it does not change on publish or unpublish.
	ID             string              `json:"id"`
	Type           DocType             `json:"type"`
	Slug           string              `json:"slug"`
	Path           string              `json:"path"`
	Title          string              `json:"title"`
	Body           string              `json:"body"`
	Meta           *frontmatter.Record `json:"meta"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	IsDraft        bool                `json:"is_draft"`
	IsDiscarded    bool                `json:"is_discarded"`
	RecycleEntryID string              `json:"recycle_entry_id,omitempty"`
	Checksum       string              `json:"checksum"`
}

// State derives the lifecycle state from the document flags.
func (d *Document) State() State {
	switch {
	case d.IsDiscarded:
		return StateRecycled
	case d.Type == TypePage:
		return StateActive
	case d.IsDraft:
		return StateDraft
	}
	return StatePublished
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Meta = d.Meta.Clone()
	return &out
}

// DocumentID builds the identifier of a document.
func DocumentID(t DocType, slug string) string {
	return string(t) + "/" + slug
}

// ParseDocumentID splits an identifier into type and slug.
func ParseDocumentID(id string) (DocType, string, error) {
	typ, slug, ok := strings.Cut(id, "/")
	if !ok || slug == "" || strings.Contains(slug, "/") {
		return "", "", fmt.Errorf("malformed document id %q", id)
	}
	t, err := ParseDocType(typ)
	if err != nil {
		return "", "", err
	}
	return t, slug, nil
}

// DocumentSummary is the lightweight listing form of a document.
type DocumentSummary struct {
	ID         string    `json:"id"`
	Type       DocType   `json:"type"`
	Slug       string    `json:"slug"`
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	State      State     `json:"state"`
	Tags       []string  `json:"tags"`
	Categories []string  `json:"categories"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentFilter narrows a document listing. Zero fields match everything.
type DocumentFilter struct {
	Type   DocType
	State  State
	Tag    string
	Limit  int
	Offset int
}

// NewDocument describes a document to create.
type NewDocument struct {
	Type  DocType
	Title string
	// Slug is derived from Title when empty.
	Slug string
	Body string
	Meta *frontmatter.Record
}

// RecycleEntry records a soft-deleted document.
type RecycleEntry struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Type         DocType   `json:"type"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	OriginalPath string    `json:"original_path"`
	StoredPath   string    `json:"stored_path"`
	WasDraft     bool      `json:"was_draft"`
	DiscardedAt  time.Time `json:"discarded_at"`
}

// PriorState is the state the document had when it was discarded.
func (e *RecycleEntry) PriorState() State {
	switch {
	case e.Type == TypePage:
		return StateActive
	case e.WasDraft:
		return StateDraft
	}
	return StatePublished
}

// RecycleFilter narrows a recycle listing. Page is 1-based.
type RecycleFilter struct {
	Type     DocType
	Query    string
	Page     int
	PageSize int
}

// RecycleListing is one page of recycle entries plus the unpaged total.
type RecycleListing struct {
	Entries []RecycleEntry `json:"entries"`
	Total   int            `json:"total"`
}

// RestoreTarget is a fully resolved restore destination.
type RestoreTarget struct {
	Slug  string
	State State
	// Replace allows an existing document at the target to be overwritten.
	Replace bool
}
