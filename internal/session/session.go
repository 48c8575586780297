// Package session binds one open document to its edit pipeline.
//
// A Controller loads the document once, feeds edits through a coalescer,
// runs lifecycle actions through the state machine and exposes the view the
// editor should render: the confirmed document overlaid with everything
// accepted but not yet confirmed. Local state is replaced only by documents
// the store returned.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/coalescer"
	"github.com/starford/folio/internal/frontmatter"
	"github.com/starford/folio/internal/layout"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/restore"
)

// Store loads and patches documents.
type Store interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	PatchDocument(ctx context.Context, id string, patch models.DocumentPatch) (*models.Document, error)
}

// Transitions runs lifecycle actions.
type Transitions interface {
	Apply(ctx context.Context, doc *models.Document, action models.Action) (*models.Document, error)
	Restore(ctx context.Context, doc *models.Document, req restore.Request) (*models.Document, error)
}

// Event kinds reported through Options.OnEvent.
const (
	EventSaved      = "saved"
	EventSaveFailed = "save_failed"
	EventTransition = "transition"
)

// Event describes something that happened to a session outside the
// caller's own request.
type Event struct {
	Kind       string `json:"kind"`
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
	Error      string `json:"error,omitempty"`
	// Retryable is set on save failures the next edit may succeed with.
	Retryable bool `json:"retryable,omitempty"`
}

// Options configures a Controller.
type Options struct {
	// Debounce is the quiet period before edits are written.
	Debounce time.Duration
	// DeriveSlug renames posts along with their title.
	DeriveSlug bool
	OnEvent    func(Event)
	Logger     *slog.Logger
}

// Controller is one edit session.
type Controller struct {
	id         string
	store      Store
	machine    Transitions
	deriveSlug bool
	onEvent    func(Event)
	logger     *slog.Logger
	coal       *coalescer.Coalescer

	// writeMu keeps coalesced patches and lifecycle requests from
	// interleaving at the store.
	writeMu sync.Mutex

	mu      sync.Mutex
	doc     *models.Document
	unsaved models.DocumentPatch
	lastErr error
	closed  bool
}

// Open loads docID and starts a session for it. If the document cannot be
// loaded no session is created.
func Open(ctx context.Context, id string, store Store, machine Transitions, docID string, opts Options) (*Controller, error) {
	doc, err := store.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", docID, err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		id:         id,
		store:      store,
		machine:    machine,
		deriveSlug: opts.DeriveSlug,
		onEvent:    opts.OnEvent,
		logger:     opts.Logger.With(slog.String("session_id", id)),
		doc:        doc,
	}
	c.coal = coalescer.New(c.send, coalescer.Config{
		Delay:     opts.Debounce,
		OnFailure: c.failed,
		Logger:    c.logger,
	})
	c.logger.Info("session opened", slog.String("id", doc.ID))
	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// send is the coalescer's sender.
func (c *Controller) send(ctx context.Context, p models.DocumentPatch) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	id := c.doc.ID
	c.mu.Unlock()

	next, err := c.store.PatchDocument(ctx, id, p)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.doc = next
	c.unsaved = c.unsaved.Without(p)
	c.mu.Unlock()

	c.logger.Debug("edits saved", slog.String("id", next.ID), slog.Any("fields", p.Fields()))
	c.emit(Event{Kind: EventSaved, DocumentID: next.ID})
	return nil
}

// failed keeps the fields of a failed patch for the next edit to carry.
func (c *Controller) failed(p models.DocumentPatch, err error) {
	c.mu.Lock()
	c.unsaved = c.unsaved.Merge(p)
	c.lastErr = err
	id := c.doc.ID
	c.mu.Unlock()

	c.emit(Event{Kind: EventSaveFailed, DocumentID: id, Error: err.Error(), Retryable: apperr.Retryable(err)})
}

func (c *Controller) emit(e Event) {
	if c.onEvent == nil {
		return
	}
	e.SessionID = c.id
	c.onEvent(e)
}

// EditTitle sets the title. On posts with slug derivation enabled the
// derived slug travels in the same patch.
func (c *Controller) EditTitle(title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	view, err := c.editableLocked()
	if err != nil {
		return err
	}
	if view.Title == title {
		return nil
	}
	p := models.DocumentPatch{Title: &title}
	if c.deriveSlug && view.Type == models.TypePost {
		if slug, err := layout.DeriveSlug(title); err == nil && slug != view.Slug {
			p.Slug = &slug
		}
	}
	return c.accumulateLocked(p)
}

// EditBody sets the body.
func (c *Controller) EditBody(body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	view, err := c.editableLocked()
	if err != nil {
		return err
	}
	if view.Body == body {
		return nil
	}
	return c.accumulateLocked(models.DocumentPatch{Body: &body})
}

// EditMetadata applies a metadata patch. Only the fields that actually
// change the current view are queued.
func (c *Controller) EditMetadata(p frontmatter.Patch) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editMetadataLocked(p)
}

func (c *Controller) editMetadataLocked(p frontmatter.Patch) error {
	view, err := c.editableLocked()
	if err != nil {
		return err
	}
	next := view.Meta.Clone()
	if err := p.Apply(next); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if next.Equal(view.Meta) {
		return nil
	}
	diff := frontmatter.Diff(view.Meta, next)
	return c.accumulateLocked(models.DocumentPatch{Meta: &diff})
}

// SetField sets one front-matter field.
func (c *Controller) SetField(key string, v frontmatter.Value) error {
	return c.EditMetadata(frontmatter.Patch{Set: map[string]frontmatter.Value{key: v}})
}

// RemoveField removes one front-matter field.
func (c *Controller) RemoveField(key string) error {
	return c.EditMetadata(frontmatter.Patch{Remove: []string{key}})
}

// ToggleTag adds or removes a tag.
func (c *Controller) ToggleTag(name string) error {
	return c.toggle(name, (*frontmatter.Record).ToggleTag, func(r *frontmatter.Record, p *frontmatter.Patch) {
		tags := r.Tags()
		p.Tags = &tags
	})
}

// ToggleCategory adds or removes a category.
func (c *Controller) ToggleCategory(name string) error {
	return c.toggle(name, (*frontmatter.Record).ToggleCategory, func(r *frontmatter.Record, p *frontmatter.Patch) {
		cats := r.Categories()
		p.Categories = &cats
	})
}

func (c *Controller) toggle(name string, flip func(*frontmatter.Record, string) (bool, error), fill func(*frontmatter.Record, *frontmatter.Patch)) error {
	// The flip and the queued patch share one critical section so that
	// concurrent toggles each see the other's result.
	c.mu.Lock()
	defer c.mu.Unlock()

	view, err := c.editableLocked()
	if err != nil {
		return err
	}
	next := view.Meta.Clone()
	if _, err := flip(next, name); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	var p frontmatter.Patch
	fill(next, &p)
	return c.editMetadataLocked(p)
}

// editableLocked returns the current view, or an error when the session
// no longer accepts edits. Callers hold mu.
func (c *Controller) editableLocked() (*models.Document, error) {
	if c.closed {
		return nil, apperr.ErrSessionClosed
	}
	view := c.viewLocked()
	if view.IsDiscarded {
		return nil, &apperr.TransitionError{Action: "edit", State: string(view.State()), Type: string(view.Type)}
	}
	return view, nil
}

// accumulateLocked queues p. Fields left over from a failed save ride
// underneath it unless something newer already covers them. Callers hold mu.
func (c *Controller) accumulateLocked(p models.DocumentPatch) error {
	retry := c.unsaved.Without(c.coal.Outstanding())
	if err := c.coal.Accumulate(retry.Merge(p)); err != nil {
		if errors.Is(err, coalescer.ErrClosed) {
			return apperr.ErrSessionClosed
		}
		return err
	}
	c.unsaved = models.DocumentPatch{}
	return nil
}

// requeueUnsaved hands leftover fields back to the coalescer so the next
// flush retries them.
func (c *Controller) requeueUnsaved() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unsaved.IsEmpty() {
		return
	}
	retry := c.unsaved.Without(c.coal.Outstanding())
	if retry.IsEmpty() || c.coal.Accumulate(retry) == nil {
		c.unsaved = models.DocumentPatch{}
	}
}

// Flush writes pending edits now and waits for the result.
func (c *Controller) Flush(ctx context.Context) error {
	if c.isClosed() {
		return apperr.ErrSessionClosed
	}
	c.requeueUnsaved()
	if err := c.coal.FlushNow(ctx); err != nil {
		if errors.Is(err, coalescer.ErrClosed) {
			return apperr.ErrSessionClosed
		}
		return err
	}
	return nil
}

// Publish flushes pending edits and publishes the document.
func (c *Controller) Publish(ctx context.Context) (*models.Document, error) {
	return c.transition(ctx, models.ActionPublish)
}

// Unpublish flushes pending edits and moves the document back to drafts.
func (c *Controller) Unpublish(ctx context.Context) (*models.Document, error) {
	return c.transition(ctx, models.ActionUnpublish)
}

// Discard flushes pending edits and moves the document to the recycle bin.
func (c *Controller) Discard(ctx context.Context) (*models.Document, error) {
	return c.transition(ctx, models.ActionDiscard)
}

// Restore brings a discarded document back.
func (c *Controller) Restore(ctx context.Context, req restore.Request) (*models.Document, error) {
	if c.isClosed() {
		return nil, apperr.ErrSessionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next, err := c.machine.Restore(ctx, c.Document(), req)
	return c.confirm(next, err, models.ActionRestore)
}

func (c *Controller) transition(ctx context.Context, action models.Action) (*models.Document, error) {
	if err := c.Flush(ctx); err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next, err := c.machine.Apply(ctx, c.Document(), action)
	return c.confirm(next, err, action)
}

// confirm installs the document the store returned.
func (c *Controller) confirm(next *models.Document, err error, action models.Action) (*models.Document, error) {
	if err != nil {
		c.mu.Lock()
		if !errors.Is(err, apperr.ErrInvalidTransition) {
			c.lastErr = err
		}
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.doc = next
	c.mu.Unlock()

	c.emit(Event{Kind: EventTransition, DocumentID: next.ID})
	c.logger.Info("session transition", slog.String("action", string(action)), slog.String("id", next.ID))
	return next.Clone(), nil
}

// Close flushes pending edits and ends the session. The flush error, if
// any, is returned; the session is closed either way.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.requeueUnsaved()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	err := c.coal.Close(ctx)
	c.logger.Info("session closed")
	return err
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Document returns a copy of the last confirmed document.
func (c *Controller) Document() *models.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Clone()
}

// View returns the document as the editor should show it.
func (c *Controller) View() *models.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// viewLocked overlays unsaved and outstanding edits on the confirmed
// document. Callers hold mu.
func (c *Controller) viewLocked() *models.Document {
	view := c.doc.Clone()
	overlay := c.unsaved.Merge(c.coal.Outstanding())
	if err := overlay.ApplyTo(view); err != nil {
		c.logger.Warn("session view overlay failed", slog.String("error", err.Error()))
	}
	return view
}

// Metadata returns the front matter of the current view.
func (c *Controller) Metadata() *frontmatter.Record {
	return c.View().Meta
}

// Describe renders one front-matter field of the current view.
func (c *Controller) Describe(key string) string {
	return c.Metadata().Describe(key)
}

// Unsaved returns the fields whose last save failed and that no newer edit
// has covered yet.
func (c *Controller) Unsaved() models.DocumentPatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsaved.Without(c.coal.Outstanding())
}

// Err returns the last save or transition error until it is dismissed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// DismissError clears the error returned by Err. Unsaved fields are kept.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
}

// Saving reports the state of the edit timer.
func (c *Controller) Saving() coalescer.State {
	return c.coal.State()
}
