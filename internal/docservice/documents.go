package docservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/frontmatter"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/layout"
	"github.com/starford/folio/internal/models"
)

// GetDocument reads the document with the given id.
func (s *Service) GetDocument(_ context.Context, id string) (*models.Document, error) {
	return s.load(id)
}

// CreateDocument writes a new document. Posts are always created as drafts.
// A taken slug is disambiguated with a numeric suffix.
func (s *Service) CreateDocument(_ context.Context, nd models.NewDocument) (*models.Document, error) {
	if !nd.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown document type %q", apperr.ErrInvalidInput, nd.Type)
	}
	title := strings.TrimSpace(nd.Title)

	var (
		slug string
		err  error
	)
	if nd.Slug != "" {
		slug, err = layout.ParseName(nd.Slug)
	} else {
		slug, err = layout.DeriveSlug(title)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	meta := nd.Meta.Clone()
	if _, ok := meta.Get(frontmatter.KeyDate); !ok {
		_ = meta.SetField(frontmatter.KeyDate, frontmatter.Timestamp(s.now()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slug, err = s.freeSlug(nd.Type, slug, "")
	if err != nil {
		return nil, err
	}

	state := models.StateDraft
	if nd.Type == models.TypePage {
		state = models.StateActive
	}
	now := s.now()
	doc := &models.Document{
		ID:        models.DocumentID(nd.Type, slug),
		Type:      nd.Type,
		Slug:      slug,
		Path:      s.lay.Path(nd.Type, state, slug),
		Title:     title,
		Body:      nd.Body,
		Meta:      meta,
		CreatedAt: now,
		IsDraft:   nd.Type == models.TypePost,
	}
	if t, ok := meta.Time(frontmatter.KeyDate); ok {
		doc.CreatedAt = t
	}
	if err := s.write(doc); err != nil {
		return nil, err
	}

	s.logger.Info("document created", slog.String("id", doc.ID), slog.String("path", doc.Path))
	s.emit(Change{Kind: ChangeCreated, DocumentID: doc.ID, Type: doc.Type})
	return doc, nil
}

// PatchDocument applies a partial update. A slug change renames the file in
// the same write; a taken slug is disambiguated with a numeric suffix, so the
// confirmed identifier may differ from the requested one.
func (s *Service) PatchDocument(_ context.Context, id string, patch models.DocumentPatch) (*models.Document, error) {
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return cur, nil
	}

	next := cur.Clone()
	rename := patch.Slug != nil && *patch.Slug != cur.Slug
	applied := patch
	applied.Slug = nil
	if err := applied.ApplyTo(next); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	if rename {
		slug, err := layout.ParseName(*patch.Slug)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
		}
		if slug, err = s.freeSlug(cur.Type, slug, cur.Slug); err != nil {
			return nil, err
		}
		next.Slug = slug
		next.ID = models.DocumentID(next.Type, slug)
		next.Path = s.lay.Path(next.Type, cur.State(), slug)
	}

	if err := s.write(next); err != nil {
		return nil, err
	}
	if next.Path != cur.Path {
		if err := s.store.Delete(cur.Path); err != nil {
			// The new file is already in place; leave the old one for the
			// watcher to reconcile rather than failing a committed write.
			s.logger.Warn("remove renamed file failed", slog.String("path", cur.Path), slog.String("error", err.Error()))
		}
		s.unindex(cur.Path)
	}

	s.logger.Debug("document patched",
		slog.String("id", next.ID),
		slog.String("fields", strings.Join(patch.Fields(), ",")))
	change := Change{Kind: ChangeUpdated, DocumentID: next.ID, Type: next.Type}
	if next.ID != cur.ID {
		change.PreviousID = cur.ID
	}
	s.emit(change)
	return next, nil
}

// SlugTaken reports whether an active document of type t uses slug.
func (s *Service) SlugTaken(_ context.Context, t models.DocType, slug string) (bool, error) {
	paths, err := s.occupied(t, slug)
	if err != nil {
		return false, err
	}
	return len(paths) > 0, nil
}

// ListDocuments returns a page of indexed documents and the total count.
func (s *Service) ListDocuments(_ context.Context, f models.DocumentFilter) ([]models.DocumentSummary, int, error) {
	rows, total, err := s.db.ListDocuments(f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.DocumentSummary, len(rows))
	for i, r := range rows {
		out[i] = r.Summary()
	}
	return out, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}
