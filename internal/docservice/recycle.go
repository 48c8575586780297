package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/layout"
	"github.com/starford/folio/internal/models"
)

// GetRecycleEntry returns one recycle entry.
func (s *Service) GetRecycleEntry(_ context.Context, entryID string) (*models.RecycleEntry, error) {
	return s.db.GetRecycleEntry(entryID)
}

// ListRecycleEntries returns one page of recycle entries.
func (s *Service) ListRecycleEntries(_ context.Context, f models.RecycleFilter) (models.RecycleListing, error) {
	entries, total, err := s.db.ListRecycleEntries(f)
	if err != nil {
		return models.RecycleListing{}, err
	}
	return models.RecycleListing{Entries: entries, Total: total}, nil
}

// RestoreFromRecycle moves a recycled file back to the resolved target and
// consumes the entry. A document occupying the target is replaced only when
// target.Replace is set; otherwise the restore fails with a ConflictError.
func (s *Service) RestoreFromRecycle(_ context.Context, entryID string, target models.RestoreTarget) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.db.GetRecycleEntry(entryID)
	if err != nil {
		return nil, err
	}

	slug, err := layout.ParseName(target.Slug)
	if err != nil {
		return nil, &apperr.ConflictError{EntryID: entryID, Target: target.Slug, Reason: "invalid name"}
	}
	state := target.State
	if state == "" || entry.Type == models.TypePage {
		state = entry.PriorState()
	}
	if entry.Type == models.TypePost && state != models.StateDraft && state != models.StatePublished {
		return nil, fmt.Errorf("%w: cannot restore a post as %s", apperr.ErrInvalidInput, state)
	}
	dest := s.lay.Path(entry.Type, state, slug)

	occupants, err := s.occupied(entry.Type, slug)
	if err != nil {
		return nil, err
	}
	if len(occupants) > 0 && !target.Replace {
		return nil, &apperr.ConflictError{EntryID: entryID, Target: dest, Reason: "a document already exists there"}
	}

	// An occupant at dest is replaced by the rename itself.
	for _, p := range occupants {
		if p == dest {
			continue
		}
		if err := s.store.Delete(p); err != nil {
			return nil, apperr.Persistence("restore", err)
		}
		s.unindex(p)
	}
	if err := s.store.Move(entry.StoredPath, dest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// The ledger points at a file that is gone; drop the entry.
			_, _ = s.db.DeleteRecycleEntry(entryID)
			return nil, fmt.Errorf("recycled file for %s: %w", entryID, apperr.ErrNotFound)
		}
		return nil, apperr.Persistence("restore", err)
	}
	if _, err := s.db.DeleteRecycleEntry(entryID); err != nil {
		if undoErr := s.store.Move(dest, entry.StoredPath); undoErr != nil {
			s.logger.Error("undo restore failed",
				slog.String("entry_id", entryID),
				slog.String("path", dest),
				slog.String("error", undoErr.Error()))
		}
		return nil, apperr.Persistence("restore", err)
	}

	data, err := s.store.Read(dest)
	if err != nil {
		return nil, apperr.Persistence("restore", err)
	}
	loc, _ := s.lay.Resolve(dest)
	doc, err := s.build(loc, dest, data)
	if err != nil {
		return nil, err
	}
	s.reindex(doc)

	s.logger.Info("document restored",
		slog.String("entry_id", entryID),
		slog.String("id", doc.ID),
		slog.Bool("replaced", len(occupants) > 0))
	change := Change{Kind: ChangeRestored, DocumentID: doc.ID, EntryID: entryID, Type: doc.Type}
	if doc.ID != entry.DocumentID {
		change.PreviousID = entry.DocumentID
	}
	s.emit(change)
	return doc, nil
}

// DeleteRecycleEntry permanently deletes a recycled document.
func (s *Service) DeleteRecycleEntry(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.db.GetRecycleEntry(entryID)
	if err != nil {
		return err
	}
	if err := s.purge(entry); err != nil {
		return err
	}
	s.emit(Change{Kind: ChangeEntryDeleted, EntryID: entryID, Type: entry.Type})
	return nil
}

// EmptyRecycle permanently deletes every recycled document of type t, or
// all of them when t is empty. It returns the number of entries removed.
func (s *Service) EmptyRecycle(_ context.Context, t models.DocType) (int, error) {
	if t != "" && !t.Valid() {
		return 0, fmt.Errorf("%w: unknown document type %q", apperr.ErrInvalidInput, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.db.RecycleEntriesByType(t)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := range entries {
		if err := s.purge(&entries[i]); err != nil {
			return removed, err
		}
		removed++
	}
	s.logger.Info("recycle emptied", slog.String("type", string(t)), slog.Int("removed", removed))
	s.emit(Change{Kind: ChangeEmptied, Type: t})
	return removed, nil
}

// purge deletes the stored file (tolerating its absence) and the entry.
func (s *Service) purge(entry *models.RecycleEntry) error {
	if err := s.store.Delete(entry.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Persistence("delete recycle entry", err)
	}
	if _, err := s.db.DeleteRecycleEntry(entry.ID); err != nil {
		return apperr.Persistence("delete recycle entry", err)
	}
	return nil
}
