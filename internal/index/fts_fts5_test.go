//go:build sqlite_fts5

package index

import (
	"testing"

	"github.com/starford/folio/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents_fts`).Scan(&count); err != nil {
		t.Fatalf("documents_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := postRow("fts", models.StatePublished, "f1")
	row.Title = "FTS Post"
	row.Body = "Folio provides powerful full-text search capabilities."
	if err := db.UpsertDocument(row); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "post/fts" {
		t.Errorf("id = %q", results[0].ID)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	row := postRow("gone", models.StateDraft, "g")
	row.Body = "vanishing content"
	_ = db.UpsertDocument(row)
	_ = db.DeleteDocument(row.Path)

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == row.Path {
			t.Error("deleted document still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	row := postRow("evo", models.StatePublished, "1")
	row.Title, row.Body = "Old", "original text"
	_ = db.UpsertDocument(row)
	row.Title, row.Body, row.Checksum = "New", "replacement text", "2"
	_ = db.UpsertDocument(row)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
