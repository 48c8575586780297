package internal

import (
	"context"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/frontmatter"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/restore"
	"github.com/starford/folio/internal/session"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/testutil"
)

// slowDocs is a one-document store whose writes take a while.
type slowDocs struct {
	mu    sync.Mutex
	doc   *models.Document
	delay time.Duration
}

func (s *slowDocs) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.doc.ID {
		return nil, apperr.ErrNotFound
	}
	return s.doc.Clone(), nil
}

func (s *slowDocs) PatchDocument(_ context.Context, _ string, p models.DocumentPatch) (*models.Document, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.doc.Clone()
	if err := p.ApplyTo(next); err != nil {
		return nil, err
	}
	s.doc = next
	return next.Clone(), nil
}

func (s *slowDocs) body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Body
}

type noLifecycle struct{}

func (noLifecycle) Apply(context.Context, *models.Document, models.Action) (*models.Document, error) {
	return nil, apperr.ErrInvalidInput
}

func (noLifecycle) Restore(context.Context, *models.Document, restore.Request) (*models.Document, error) {
	return nil, apperr.ErrInvalidInput
}

func TestShutdown_StreamingClientDoesNotStarveSessionFlush(t *testing.T) {
	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	srv := &http.Server{Handler: broker}
	srv.RegisterOnShutdown(broker.Close)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(ln) }()

	// An open event stream keeps its connection active until the broker closes.
	resp, err := http.Get("http://" + ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	store := &slowDocs{
		doc: &models.Document{
			ID:      models.DocumentID(models.TypePost, "x"),
			Type:    models.TypePost,
			Slug:    "x",
			Meta:    frontmatter.NewRecord(),
			IsDraft: true,
		},
		delay: 200 * time.Millisecond,
	}
	sessions := session.NewManager(store, noLifecycle{}, session.Options{
		Debounce: time.Hour,
		OnEvent:  broker.PublishSessionEvent,
		Logger:   testutil.Logger(),
	})
	c, err := sessions.Open(context.Background(), "post/x")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.EditBody("queued at shutdown"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	shutdown(srv, sessions, testutil.Logger(), 3*time.Second)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("shutdown took %v; the event stream held the server open", elapsed)
	}
	if got := store.body(); got != "queued at shutdown" {
		t.Errorf("body at return: %q", got)
	}
	if sessions.Len() != 0 {
		t.Errorf("sessions left: %d", sessions.Len())
	}
}
