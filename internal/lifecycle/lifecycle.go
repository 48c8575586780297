// Package lifecycle implements the draft/published/recycled state machine.
//
// Posts move draft ⇄ published and either of those to recycled; pages move
// between active and recycled. Every transition is a single request to the
// store and the caller only sees the state the store confirmed.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/restore"
)

// Store applies publish, unpublish and discard.
type Store interface {
	SetLifecycleState(ctx context.Context, id string, action models.Action) (*models.Document, error)
}

// Restorer restores recycle entries.
type Restorer interface {
	Restore(ctx context.Context, entryID string, req restore.Request) (*models.Document, error)
}

// transitions maps type → state → action → the state the action leads to.
// A restore lands in whichever state the restore engine resolves, so its
// entry only records that the action is legal.
var transitions = map[models.DocType]map[models.State]map[models.Action]models.State{
	models.TypePost: {
		models.StateDraft: {
			models.ActionPublish: models.StatePublished,
			models.ActionDiscard: models.StateRecycled,
		},
		models.StatePublished: {
			models.ActionUnpublish: models.StateDraft,
			models.ActionDiscard:   models.StateRecycled,
		},
		models.StateRecycled: {
			models.ActionRestore: "",
		},
	},
	models.TypePage: {
		models.StateActive: {
			models.ActionDiscard: models.StateRecycled,
		},
		models.StateRecycled: {
			models.ActionRestore: models.StateActive,
		},
	},
}

var actionOrder = []models.Action{
	models.ActionPublish,
	models.ActionUnpublish,
	models.ActionDiscard,
	models.ActionRestore,
}

// Check reports whether action is legal for a document of type t in state
// from. Illegal actions yield a *apperr.TransitionError.
func Check(t models.DocType, from models.State, action models.Action) error {
	if _, ok := transitions[t][from][action]; ok {
		return nil
	}
	return &apperr.TransitionError{Action: string(action), State: string(from), Type: string(t)}
}

// AvailableActions lists the actions legal for doc, in a stable order.
func AvailableActions(doc *models.Document) []models.Action {
	allowed := transitions[doc.Type][doc.State()]
	out := make([]models.Action, 0, len(allowed))
	for _, a := range actionOrder {
		if _, ok := allowed[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Machine runs transitions against a store.
type Machine struct {
	store    Store
	restorer Restorer
	logger   *slog.Logger
}

// New creates a Machine.
func New(store Store, restorer Restorer, logger *slog.Logger) *Machine {
	return &Machine{store: store, restorer: restorer, logger: logger}
}

// Apply performs publish, unpublish or discard on doc and returns the
// confirmed document. doc itself is never modified; on error the caller's
// copy still describes the prior state.
func (m *Machine) Apply(ctx context.Context, doc *models.Document, action models.Action) (*models.Document, error) {
	if action == models.ActionRestore {
		return nil, fmt.Errorf("%w: restore needs a conflict strategy", apperr.ErrInvalidInput)
	}
	if err := Check(doc.Type, doc.State(), action); err != nil {
		return nil, err
	}

	next, err := m.store.SetLifecycleState(ctx, doc.ID, action)
	if err != nil {
		m.logger.Warn("lifecycle: transition failed",
			slog.String("id", doc.ID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
		return nil, err
	}

	m.logger.Info("lifecycle: transition applied",
		slog.String("id", doc.ID),
		slog.String("action", string(action)),
		slog.String("from", string(doc.State())),
		slog.String("to", string(next.State())))
	return next, nil
}

// Restore brings a recycled document back through the restore engine.
func (m *Machine) Restore(ctx context.Context, doc *models.Document, req restore.Request) (*models.Document, error) {
	if err := Check(doc.Type, doc.State(), models.ActionRestore); err != nil {
		return nil, err
	}
	if doc.RecycleEntryID == "" {
		return nil, fmt.Errorf("%w: recycled document %s has no recycle entry", apperr.ErrNotFound, doc.ID)
	}

	next, err := m.restorer.Restore(ctx, doc.RecycleEntryID, req)
	if err != nil {
		m.logger.Warn("lifecycle: restore failed",
			slog.String("id", doc.ID),
			slog.String("entry_id", doc.RecycleEntryID),
			slog.String("error", err.Error()))
		return nil, err
	}

	m.logger.Info("lifecycle: restored",
		slog.String("entry_id", doc.RecycleEntryID),
		slog.String("id", next.ID),
		slog.String("to", string(next.State())))
	return next, nil
}
