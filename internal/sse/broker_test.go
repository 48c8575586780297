package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/session"
)

// drain collects whatever is buffered on ch after a short settle time.
func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "document.created", Data: map[string]string{"id": "post/a"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"post/a"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChange_ListingThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange(docservice.Change{Kind: docservice.ChangePublished, DocumentID: "post/a", Type: models.TypePost})
	b.PublishChange(docservice.Change{Kind: docservice.ChangeDiscarded, DocumentID: "post/b", EntryID: "e1", Type: models.TypePost})

	listing, changes := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "event: "+ListingUpdated) {
			listing++
		} else {
			changes++
		}
	}
	if changes != 2 {
		t.Errorf("change events = %d, want 2", changes)
	}
	if listing != 1 {
		t.Errorf("listing events = %d, want 1 (throttled)", listing)
	}
}

func TestPublishChange_Payload(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange(docservice.Change{Kind: docservice.ChangeRestored, DocumentID: "post/new", PreviousID: "post/old", EntryID: "e1"})

	msgs := drain(ch)
	if len(msgs) == 0 {
		t.Fatal("no events")
	}
	first := msgs[0]
	for _, want := range []string{"event: document.restored", `"document_id":"post/new"`, `"previous_id":"post/old"`, `"entry_id":"e1"`} {
		if !strings.Contains(first, want) {
			t.Errorf("missing %s in %q", want, first)
		}
	}
}

func TestPublishFileAndSessionEvents(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishSessionEvent(session.Event{Kind: session.EventSaveFailed, SessionID: "s1", DocumentID: "post/a", Error: "disk full"})
	b.PublishFileEvent("deleted", "_posts/a.md")

	msgs := drain(ch)
	joined := strings.Join(msgs, "")
	if !strings.Contains(joined, "event: session.save_failed") || !strings.Contains(joined, `"error":"disk full"`) {
		t.Errorf("session event missing: %q", joined)
	}
	if !strings.Contains(joined, "event: file.deleted") || !strings.Contains(joined, `"path":"_posts/a.md"`) {
		t.Errorf("file event missing: %q", joined)
	}
	// Session events do not touch listings; the file event does.
	if n := strings.Count(joined, "event: "+ListingUpdated); n != 1 {
		t.Errorf("listing events = %d, want 1", n)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "document.updated", Data: map[string]string{"id": "post/x"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: document.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// The client buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// No-ops after close.
	b.Publish(Event{Type: "document.updated", Data: map[string]string{"id": "post/x"}})
	b.PublishChange(docservice.Change{Kind: docservice.ChangeUpdated})
	b.PublishFileEvent("updated", "_posts/x.md")
}
