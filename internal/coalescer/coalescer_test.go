package coalescer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/starford/folio/internal/models"
)

type recorder struct {
	mu    sync.Mutex
	sent  []models.DocumentPatch
	fail  error
	block chan struct{}
}

func (r *recorder) send(_ context.Context, p models.DocumentPatch) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return r.fail
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recorder) at(i int) models.DocumentPatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[i]
}

func title(s string) models.DocumentPatch { return models.DocumentPatch{Title: &s} }
func body(s string) models.DocumentPatch  { return models.DocumentPatch{Body: &s} }

func quiet() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func closeAll(t *testing.T, c *Coalescer) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
}

func TestCoalescer_TypingBurstSendsOnce(t *testing.T) {
	rec := &recorder{}
	c := New(rec.send, Config{Delay: time.Second, Logger: quiet()})
	closeAll(t, c)

	for _, s := range []string{"A", "AB", "ABC"} {
		if err := c.Accumulate(title(s)); err != nil {
			t.Fatal(err)
		}
		time.Sleep(200 * time.Millisecond)
	}
	if c.State() != StateWaiting {
		t.Fatalf("state: got %s, want waiting", c.State())
	}
	if rec.count() != 0 {
		t.Fatalf("sent before the window closed: %d", rec.count())
	}

	eventually(t, 3*time.Second, func() bool { return rec.count() == 1 }, "patch never sent")
	time.Sleep(100 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("sends: got %d, want 1", rec.count())
	}
	if got := *rec.at(0).Title; got != "ABC" {
		t.Errorf("title: got %q, want %q", got, "ABC")
	}
	if c.State() != StateIdle {
		t.Errorf("state: got %s, want idle", c.State())
	}
}

func TestCoalescer_MergesFields(t *testing.T) {
	rec := &recorder{}
	c := New(rec.send, Config{Delay: 50 * time.Millisecond, Logger: quiet()})
	closeAll(t, c)

	_ = c.Accumulate(title("T"))
	_ = c.Accumulate(body("B1"))
	_ = c.Accumulate(body("B2"))

	if err := c.FlushNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Fatalf("sends: got %d, want 1", rec.count())
	}
	p := rec.at(0)
	if *p.Title != "T" || *p.Body != "B2" {
		t.Errorf("got title %q body %q", *p.Title, *p.Body)
	}
}

func TestCoalescer_EmptyPatchIgnored(t *testing.T) {
	rec := &recorder{}
	c := New(rec.send, Config{Delay: 20 * time.Millisecond, Logger: quiet()})
	closeAll(t, c)

	if err := c.Accumulate(models.DocumentPatch{}); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateIdle {
		t.Errorf("state: got %s, want idle", c.State())
	}
	time.Sleep(60 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("sends: got %d, want 0", rec.count())
	}
}

func TestCoalescer_EditsDuringSendFormNextWindow(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	c := New(rec.send, Config{Delay: 20 * time.Millisecond, Logger: quiet()})
	closeAll(t, c)

	_ = c.Accumulate(title("first"))
	// Wait until the first patch has left the window and is in flight.
	eventually(t, time.Second, func() bool {
		return c.State() == StateIdle && c.Outstanding().Title != nil
	}, "first patch never went in flight")

	_ = c.Accumulate(title("second"))
	if got := *c.Outstanding().Title; got != "second" {
		t.Errorf("outstanding: got %q, want %q", got, "second")
	}
	close(rec.block)

	if err := c.FlushNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 2 {
		t.Fatalf("sends: got %d, want 2", rec.count())
	}
	if *rec.at(0).Title != "first" || *rec.at(1).Title != "second" {
		t.Errorf("order: got %q then %q", *rec.at(0).Title, *rec.at(1).Title)
	}
}

func TestCoalescer_FailureReported(t *testing.T) {
	boom := errors.New("disk full")
	rec := &recorder{fail: boom}

	var mu sync.Mutex
	var failed []models.DocumentPatch
	c := New(rec.send, Config{
		Delay:  20 * time.Millisecond,
		Logger: quiet(),
		OnFailure: func(p models.DocumentPatch, err error) {
			mu.Lock()
			defer mu.Unlock()
			if !errors.Is(err, boom) {
				t.Errorf("unexpected error: %v", err)
			}
			failed = append(failed, p)
		},
	})
	closeAll(t, c)

	_ = c.Accumulate(title("lost"))
	err := c.FlushNow(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected send error, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 || *failed[0].Title != "lost" {
		t.Errorf("failure callback: got %+v", failed)
	}
	if rec.count() != 1 {
		t.Errorf("failed patch must not be retried, sends: %d", rec.count())
	}
}

func TestCoalescer_FlushNowWithNothingPending(t *testing.T) {
	rec := &recorder{}
	c := New(rec.send, Config{Delay: time.Hour, Logger: quiet()})
	closeAll(t, c)

	if err := c.FlushNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 0 {
		t.Errorf("sends: got %d, want 0", rec.count())
	}
}

func TestCoalescer_FlushNowWaitsForQueue(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	c := New(rec.send, Config{Delay: 10 * time.Millisecond, Logger: quiet()})
	closeAll(t, c)

	_ = c.Accumulate(body("queued"))
	eventually(t, time.Second, func() bool { return c.State() == StateIdle }, "window never closed")

	done := make(chan error, 1)
	go func() { done <- c.FlushNow(context.Background()) }()

	select {
	case <-done:
		t.Fatal("FlushNow returned before the in-flight send finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(rec.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Errorf("sends: got %d, want 1", rec.count())
	}
}

func TestCoalescer_FlushNowHonoursContext(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	c := New(rec.send, Config{Delay: time.Hour, Logger: quiet()})
	t.Cleanup(func() { close(rec.block) })

	_ = c.Accumulate(body("slow"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.FlushNow(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}

func TestCoalescer_Cancel(t *testing.T) {
	rec := &recorder{}
	c := New(rec.send, Config{Delay: 30 * time.Millisecond, Logger: quiet()})
	closeAll(t, c)

	_ = c.Accumulate(title("draft"))
	p, ok := c.Cancel()
	if !ok || p.Title == nil || *p.Title != "draft" {
		t.Fatalf("cancel: got %+v, %v", p, ok)
	}
	if c.State() != StateIdle {
		t.Errorf("state: got %s, want idle", c.State())
	}
	time.Sleep(80 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("cancelled patch was sent")
	}

	if _, ok := c.Cancel(); ok {
		t.Error("second cancel should report nothing pending")
	}
}

func TestCoalescer_CloseFlushesAndRejects(t *testing.T) {
	rec := &recorder{}
	c := New(rec.send, Config{Delay: time.Hour, Logger: quiet()})

	_ = c.Accumulate(title("final"))
	if err := c.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 || *rec.at(0).Title != "final" {
		t.Fatalf("close did not flush: %d sends", rec.count())
	}
	if c.State() != StateClosed {
		t.Errorf("state: got %s, want closed", c.State())
	}
	if err := c.Accumulate(title("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("accumulate after close: got %v, want ErrClosed", err)
	}
	if err := c.FlushNow(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("flush after close: got %v, want ErrClosed", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestCoalescer_StaleTimerIgnored(t *testing.T) {
	rec := &recorder{}
	c := New(rec.send, Config{Delay: 40 * time.Millisecond, Logger: quiet()})
	closeAll(t, c)

	_ = c.Accumulate(title("x"))
	if err := c.FlushNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("sends: got %d, want 1", rec.count())
	}
}
