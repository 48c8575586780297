package index

import (
	"os"
	"testing"
	"time"

	"github.com/starford/folio/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "folio-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func postRow(slug string, state models.State, checksum string) DocumentRow {
	dir := "_posts/"
	if state == models.StateDraft {
		dir = "_drafts/"
	}
	return DocumentRow{
		Path:      dir + slug + ".md",
		ID:        models.DocumentID(models.TypePost, slug),
		Type:      models.TypePost,
		State:     state,
		Slug:      slug,
		Title:     slug,
		Checksum:  checksum,
		Tags:      []string{},
		UpdatedAt: time.Now(),
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM recycle_entries`).Scan(&count); err != nil {
		t.Fatalf("recycle_entries table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := postRow("hello", models.StatePublished, "abc123")
	row.Body = "This is a hello world post."
	if err := db.UpsertDocument(row); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	cs, err := db.GetChecksum("_posts/hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(postRow("up", models.StatePublished, "1"))
	row := postRow("up", models.StatePublished, "2")
	row.Title = "New"
	_ = db.UpsertDocument(row)

	cs, _ := db.GetChecksum("_posts/up.md")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	rows, total, err := db.ListDocuments(models.DocumentFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || rows[0].Title != "New" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(postRow("del", models.StateDraft, "x"))

	if err := db.DeleteDocument("_drafts/del.md"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	cs, _ := db.GetChecksum("_drafts/del.md")
	if cs != "" {
		t.Errorf("deleted document still has checksum %q", cs)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestListDocuments_Filters(t *testing.T) {
	db := testDB(t)
	a := postRow("a", models.StateDraft, "1")
	a.Tags = []string{"go"}
	_ = db.UpsertDocument(a)
	_ = db.UpsertDocument(postRow("b", models.StatePublished, "2"))
	_ = db.UpsertDocument(DocumentRow{
		Path: "_pages/about.md", ID: "page/about", Type: models.TypePage,
		State: models.StateActive, Slug: "about", Checksum: "3",
	})

	rows, total, err := db.ListDocuments(models.DocumentFilter{Type: models.TypePost})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(rows) != 2 {
		t.Errorf("posts total = %d len = %d, want 2", total, len(rows))
	}

	rows, total, _ = db.ListDocuments(models.DocumentFilter{State: models.StateDraft})
	if total != 1 || rows[0].ID != "post/a" {
		t.Errorf("drafts = %+v", rows)
	}

	rows, total, _ = db.ListDocuments(models.DocumentFilter{Tag: "go"})
	if total != 1 || rows[0].ID != "post/a" {
		t.Errorf("tagged = %+v", rows)
	}
	if got := rows[0].Summary().Tags; len(got) != 1 || got[0] != "go" {
		t.Errorf("summary tags = %v", got)
	}

	rows, total, _ = db.ListDocuments(models.DocumentFilter{Limit: 1, Offset: 1})
	if total != 3 || len(rows) != 1 {
		t.Errorf("paged total = %d len = %d", total, len(rows))
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	row := postRow("s", models.StatePublished, "1")
	row.Title = "Search Me"
	row.Body = "uniqueword appears here"
	_ = db.UpsertDocument(row)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "post/s" {
		t.Errorf("search results = %+v, want 1 hit for post/s", results)
	}
}
