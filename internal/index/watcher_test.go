package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/folio/internal/layout"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// watcherTestEnv sets up a content dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"_posts", "_drafts", "_pages", "_discarded"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store, testDB(t)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestSync_IndexesContentAndSkipsRecycle(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(root, "_posts", "a.md"), []byte("---\ntitle: A\ndate: 2024-01-02 03:04:05\n---\nbody"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "_drafts", "b.md"), []byte("draft"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "_discarded", "x.md"), []byte("gone"), 0o644)
	_ = db.UpsertDocument(postRow("stale", models.StatePublished, "s"))

	if err := Sync(db, store, layout.Default(), quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	sums, _ := db.AllChecksums()
	if len(sums) != 2 {
		t.Errorf("indexed = %v, want 2 entries", sums)
	}
	if _, ok := sums["_discarded/x.md"]; ok {
		t.Error("recycled file must not be indexed")
	}
	if _, ok := sums["_posts/stale.md"]; ok {
		t.Error("stale row should be removed")
	}

	rows, _, _ := db.ListDocuments(models.DocumentFilter{State: models.StatePublished})
	if len(rows) != 1 || rows[0].Title != "A" || rows[0].CreatedAt.Year() != 2024 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, layout.Default(), root, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "_posts", "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("_posts/new.md")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:_posts/new.md" {
				return true
			}
		}
		return false
	}, "expected created:_posts/new.md callback")
}

func TestWatcher_IgnoresRecycleDir(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, layout.Default(), root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "_discarded", "x.md"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "_pages", "marker.md"), []byte("m"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("_pages/marker.md")
		return cs != ""
	}, "marker not indexed")

	if cs, _ := db.GetChecksum("_discarded/x.md"); cs != "" {
		t.Error("recycled file must not be indexed")
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	lay := layout.Default()

	_ = os.WriteFile(filepath.Join(root, "_drafts", "del.md"), []byte("# Delete Me"), 0o644)
	_ = Sync(db, store, lay, quietLogger())

	cs, _ := db.GetChecksum("_drafts/del.md")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, lay, root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(root, "_drafts", "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("_drafts/del.md")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	lay := layout.Default()

	_ = os.WriteFile(filepath.Join(root, "_drafts", "old.md"), []byte("# Rename"), 0o644)
	_ = Sync(db, store, lay, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, lay, root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(root, "_drafts", "old.md"), filepath.Join(root, "_posts", "old.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("_drafts/old.md")
		newCS, _ := db.GetChecksum("_posts/old.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
