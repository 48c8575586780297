// Package docservice is the storage collaborator of the editing core: it
// reads and writes documents through the file provider, keeps the listing
// index current and owns the recycle ledger.
package docservice

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/frontmatter"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/layout"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// Index is the part of the SQLite index the service depends on.
type Index interface {
	index.DocumentIndex
	index.RecycleLedger
}

// Change describes a committed mutation, for notification fan-out.
type Change struct {
	Kind       string         `json:"kind"`
	DocumentID string         `json:"document_id,omitempty"`
	PreviousID string         `json:"previous_id,omitempty"`
	EntryID    string         `json:"entry_id,omitempty"`
	Type       models.DocType `json:"type,omitempty"`
}

// Change kinds.
const (
	ChangeCreated      = "document.created"
	ChangeUpdated      = "document.updated"
	ChangePublished    = "document.published"
	ChangeUnpublished  = "document.unpublished"
	ChangeDiscarded    = "document.discarded"
	ChangeRestored     = "document.restored"
	ChangeEntryDeleted = "recycle.deleted"
	ChangeEmptied      = "recycle.emptied"
)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how recycle entry IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithOnChange registers a callback invoked after every committed mutation.
// It runs with the service lock held and must not call back into the service.
func WithOnChange(fn func(Change)) Option {
	return func(s *Service) { s.onChange = fn }
}

// WithMaxSuffix bounds the "-N" disambiguation of slugs.
func WithMaxSuffix(n int) Option {
	return func(s *Service) { s.maxSuffix = n }
}

// Service coordinates storage, index and recycle ledger operations.
// Mutations are serialized by mu; reads are not.
type Service struct {
	mu        sync.Mutex
	store     storage.Provider
	db        Index
	lay       layout.Layout
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	onChange  func(Change)
	maxSuffix int
}

// New creates a document service.
func New(store storage.Provider, db Index, lay layout.Layout, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		db:        db,
		lay:       lay,
		logger:    logger.With(slog.String("component", "docservice")),
		now:       time.Now,
		newID:     uuid.NewString,
		maxSuffix: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(c Change) {
	if s.onChange != nil {
		s.onChange(c)
	}
}

// load reads the document with the given id from whichever directory holds it.
func (s *Service) load(id string) (*models.Document, error) {
	typ, slug, err := models.ParseDocumentID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	}
	for _, p := range s.lay.Candidates(typ, slug) {
		data, err := s.store.Read(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, apperr.Persistence("read document", err)
		}
		loc, _ := s.lay.Resolve(p)
		return s.build(loc, p, data)
	}
	return nil, fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
}

// build assembles a document from the file at rel.
func (s *Service) build(loc layout.Location, rel string, data []byte) (*models.Document, error) {
	parsed, err := frontmatter.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rel, err)
	}
	updated := s.now()
	if info, err := s.store.Stat(rel); err == nil {
		updated = info.ModTime
	}
	created, ok := parsed.Meta.Time(frontmatter.KeyDate)
	if !ok {
		created = updated
	}
	return &models.Document{
		ID:        loc.ID(),
		Type:      loc.Type,
		Slug:      loc.Slug,
		Path:      rel,
		Title:     parsed.Title,
		Body:      parsed.Body,
		Meta:      parsed.Meta,
		CreatedAt: created,
		UpdatedAt: updated,
		IsDraft:   loc.IsDraft,
		Checksum:  storage.Checksum(data),
	}, nil
}

// write renders d to its path, fills in checksum and timestamps, and
// indexes it.
func (s *Service) write(d *models.Document) error {
	data, err := frontmatter.Render(d.Title, d.Meta, d.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if err := s.store.Write(d.Path, data); err != nil {
		return apperr.Persistence("write document", err)
	}
	d.Checksum = storage.Checksum(data)
	d.UpdatedAt = s.now()
	s.reindex(d)
	return nil
}

// reindex updates the listing row of d. Index failures are logged, not
// returned: the file is the source of truth and the next sync repairs it.
func (s *Service) reindex(d *models.Document) {
	if err := s.db.UpsertDocument(index.RowFromDocument(d)); err != nil {
		s.logger.Warn("index upsert failed", slog.String("path", d.Path), slog.String("error", err.Error()))
	}
}

func (s *Service) unindex(path string) {
	if err := s.db.DeleteDocument(path); err != nil {
		s.logger.Warn("index delete failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// occupied returns the paths a document with this type and slug occupies.
func (s *Service) occupied(typ models.DocType, slug string) ([]string, error) {
	var out []string
	for _, p := range s.lay.Candidates(typ, slug) {
		ok, err := s.store.Exists(p)
		if err != nil {
			return nil, apperr.Persistence("stat document", err)
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// freeSlug returns slug, or the first free "slug-N" form. own is the slug
// of the document being renamed and counts as free.
func (s *Service) freeSlug(typ models.DocType, slug, own string) (string, error) {
	for n := 1; n <= s.maxSuffix; n++ {
		candidate := layout.WithSuffix(slug, n)
		if candidate == own {
			return candidate, nil
		}
		taken, err := s.occupied(typ, candidate)
		if err != nil {
			return "", err
		}
		if len(taken) == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free name for %q after %d attempts", apperr.ErrAlreadyExists, slug, s.maxSuffix)
}
