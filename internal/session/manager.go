package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/apperr"
)

// Manager keeps the open sessions, keyed by a generated session ID.
type Manager struct {
	store   Store
	machine Transitions
	opts    Options
	newID   func() string

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewManager creates an empty registry. Every session it opens uses opts.
func NewManager(store Store, machine Transitions, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With(slog.String("component", "session"))
	return &Manager{
		store:    store,
		machine:  machine,
		opts:     opts,
		newID:    uuid.NewString,
		sessions: make(map[string]*Controller),
	}
}

// Open starts a session for docID.
func (m *Manager) Open(ctx context.Context, docID string) (*Controller, error) {
	c, err := Open(ctx, m.newID(), m.store, m.machine, docID, m.opts)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[c.ID()] = c
	m.mu.Unlock()
	return c, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return c, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close flushes and removes one session.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return c.Close(ctx)
}

// CloseAll flushes and removes every session. Flush errors are joined.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	open := make([]*Controller, 0, len(m.sessions))
	for id, c := range m.sessions {
		open = append(open, c)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	// The group keeps only the first error, so failures are joined here.
	var g errgroup.Group
	errs := make([]error, len(open))
	for i, c := range open {
		g.Go(func() error {
			if err := c.Close(ctx); err != nil {
				errs[i] = fmt.Errorf("session %s: %w", c.ID(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(open) > 0 {
		m.opts.Logger.Info("sessions closed", slog.Int("count", len(open)))
	}
	return errors.Join(errs...)
}
