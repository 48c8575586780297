package docservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// SetLifecycleState applies publish, unpublish or discard to a document and
// returns the confirmed result. Restores go through RestoreFromRecycle.
func (s *Service) SetLifecycleState(_ context.Context, id string, action models.Action) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load(id)
	if err != nil {
		return nil, err
	}

	switch action {
	case models.ActionPublish, models.ActionUnpublish:
		return s.move(cur, action)
	case models.ActionDiscard:
		return s.discard(cur)
	case models.ActionRestore:
		return nil, &apperr.TransitionError{Action: string(action), State: string(cur.State()), Type: string(cur.Type)}
	}
	return nil, fmt.Errorf("%w: unknown action %q", apperr.ErrInvalidInput, action)
}

// move switches a post between the drafts and posts directories.
func (s *Service) move(cur *models.Document, action models.Action) (*models.Document, error) {
	from, to := models.StateDraft, models.StatePublished
	kind := ChangePublished
	if action == models.ActionUnpublish {
		from, to = to, from
		kind = ChangeUnpublished
	}
	if cur.Type != models.TypePost || cur.State() != from {
		return nil, &apperr.TransitionError{Action: string(action), State: string(cur.State()), Type: string(cur.Type)}
	}

	dest := s.lay.Path(cur.Type, to, cur.Slug)
	exists, err := s.store.Exists(dest)
	if err != nil {
		return nil, apperr.Persistence(string(action), err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, dest)
	}
	if err := s.store.Move(cur.Path, dest); err != nil {
		return nil, apperr.Persistence(string(action), err)
	}

	next := cur.Clone()
	next.Path = dest
	next.IsDraft = to == models.StateDraft
	next.UpdatedAt = s.now()
	s.unindex(cur.Path)
	s.reindex(next)

	s.logger.Info("document "+string(action)+"ed", slog.String("id", next.ID))
	s.emit(Change{Kind: kind, DocumentID: next.ID, Type: next.Type})
	return next, nil
}

// discard moves the file into the recycle directory and records an entry.
func (s *Service) discard(cur *models.Document) (*models.Document, error) {
	entry := models.RecycleEntry{
		ID:           s.newID(),
		DocumentID:   cur.ID,
		Type:         cur.Type,
		Slug:         cur.Slug,
		Title:        cur.Title,
		OriginalPath: cur.Path,
		WasDraft:     cur.IsDraft,
		DiscardedAt:  s.now(),
	}
	entry.StoredPath = s.lay.RecyclePath(entry.ID)

	if err := s.store.Move(cur.Path, entry.StoredPath); err != nil {
		return nil, apperr.Persistence("discard", err)
	}
	if err := s.db.InsertRecycleEntry(entry); err != nil {
		if undoErr := s.store.Move(entry.StoredPath, cur.Path); undoErr != nil {
			s.logger.Error("undo discard failed",
				slog.String("path", cur.Path),
				slog.String("stored_path", entry.StoredPath),
				slog.String("error", undoErr.Error()))
		}
		return nil, apperr.Persistence("discard", err)
	}
	s.unindex(cur.Path)

	next := cur.Clone()
	next.IsDiscarded = true
	next.RecycleEntryID = entry.ID
	next.Path = entry.StoredPath
	next.UpdatedAt = entry.DiscardedAt

	s.logger.Info("document discarded", slog.String("id", cur.ID), slog.String("entry_id", entry.ID))
	s.emit(Change{Kind: ChangeDiscarded, DocumentID: cur.ID, EntryID: entry.ID, Type: cur.Type})
	return next, nil
}
