// Package restore brings recycled documents back into active storage,
// resolving name collisions with a caller-selected strategy.
package restore

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/layout"
	"github.com/starford/folio/internal/models"
)

// Strategy selects how a restore handles an occupied target.
type Strategy string

const (
	// KeepBoth restores under a suffixed name and leaves the occupant alone.
	KeepBoth Strategy = "keepBoth"
	// Overwrite replaces the occupant with the restored content.
	Overwrite Strategy = "overwrite"
	// Rename restores under a caller-supplied name.
	Rename Strategy = "rename"
)

// DefaultMaxSuffix bounds the keepBoth search.
const DefaultMaxSuffix = 100

// Request describes one restore.
type Request struct {
	Strategy Strategy `json:"strategy"`
	// NewName is the target name for Rename, with or without ".md".
	NewName string `json:"new_name,omitempty"`
	// State overrides the restored state of a post. Empty means the state
	// the post had when it was discarded.
	State models.State `json:"state,omitempty"`
}

// Validate checks the request shape. Name validity against the layout is
// checked at restore time.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Strategy, validation.Required, validation.In(KeepBoth, Overwrite, Rename)),
		validation.Field(&r.NewName, validation.When(r.Strategy == Rename, validation.Required)),
		validation.Field(&r.State, validation.In(models.StateDraft, models.StatePublished, models.StateActive)),
	)
}

// Store is the subset of the storage collaborator the engine needs.
type Store interface {
	GetRecycleEntry(ctx context.Context, entryID string) (*models.RecycleEntry, error)
	SlugTaken(ctx context.Context, t models.DocType, slug string) (bool, error)
	RestoreFromRecycle(ctx context.Context, entryID string, target models.RestoreTarget) (*models.Document, error)
}

// Engine resolves restore targets and hands them to the store.
type Engine struct {
	store     Store
	maxSuffix int
	logger    *slog.Logger
}

// New creates an Engine. maxSuffix <= 1 selects DefaultMaxSuffix.
func New(store Store, maxSuffix int, logger *slog.Logger) *Engine {
	if maxSuffix <= 1 {
		maxSuffix = DefaultMaxSuffix
	}
	return &Engine{store: store, maxSuffix: maxSuffix, logger: logger}
}

// Result is the outcome of restoring one entry in a batch.
type Result struct {
	EntryID  string           `json:"entry_id"`
	Document *models.Document `json:"document,omitempty"`
	Err      error            `json:"-"`
}

// Restore restores one recycle entry. A consumed or unknown entry fails
// with apperr.ErrNotFound.
func (e *Engine) Restore(ctx context.Context, entryID string, req Request) (*models.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	entry, err := e.store.GetRecycleEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	target, err := e.resolve(ctx, entry, req)
	if err != nil {
		return nil, err
	}
	doc, err := e.store.RestoreFromRecycle(ctx, entryID, target)
	if err != nil {
		return nil, err
	}

	e.logger.Info("restore: done",
		slog.String("entry_id", entryID),
		slog.String("strategy", string(req.Strategy)),
		slog.String("id", doc.ID))
	return doc, nil
}

// RestoreBatch restores each entry independently with the same request.
// A failure does not roll back earlier successes.
func (e *Engine) RestoreBatch(ctx context.Context, entryIDs []string, req Request) []Result {
	results := make([]Result, 0, len(entryIDs))
	for _, id := range entryIDs {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{EntryID: id, Err: err})
			continue
		}
		doc, err := e.Restore(ctx, id, req)
		if err != nil {
			e.logger.Warn("restore: batch item failed",
				slog.String("entry_id", id),
				slog.String("error", err.Error()))
		}
		results = append(results, Result{EntryID: id, Document: doc, Err: err})
	}
	return results
}

func (e *Engine) resolve(ctx context.Context, entry *models.RecycleEntry, req Request) (models.RestoreTarget, error) {
	target := models.RestoreTarget{Slug: entry.Slug, State: entry.PriorState()}
	if req.State != "" && entry.Type == models.TypePost {
		if req.State == models.StateActive {
			return target, &apperr.ConflictError{EntryID: entry.ID, Reason: "a post cannot be restored as active"}
		}
		target.State = req.State
	}

	switch req.Strategy {
	case Overwrite:
		target.Replace = true
	case KeepBoth:
		slug, err := e.freeSlug(ctx, entry)
		if err != nil {
			return target, err
		}
		target.Slug = slug
	case Rename:
		slug, err := layout.ParseName(req.NewName)
		if err != nil {
			return target, &apperr.ConflictError{EntryID: entry.ID, Target: req.NewName, Reason: "invalid name"}
		}
		taken, err := e.store.SlugTaken(ctx, entry.Type, slug)
		if err != nil {
			return target, err
		}
		if taken {
			return target, &apperr.ConflictError{EntryID: entry.ID, Target: slug, Reason: "a document with that name already exists"}
		}
		target.Slug = slug
	}
	return target, nil
}

// freeSlug returns the entry slug, or the first of slug-2, slug-3, ... that
// no active document uses.
func (e *Engine) freeSlug(ctx context.Context, entry *models.RecycleEntry) (string, error) {
	for n := 1; n <= e.maxSuffix; n++ {
		candidate := layout.WithSuffix(entry.Slug, n)
		taken, err := e.store.SlugTaken(ctx, entry.Type, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", &apperr.ConflictError{
		EntryID: entry.ID,
		Target:  entry.Slug,
		Reason:  fmt.Sprintf("no free name after %d attempts", e.maxSuffix),
	}
}
