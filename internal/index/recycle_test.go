package index

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

func entry(id string, typ models.DocType, title string, at time.Time) models.RecycleEntry {
	return models.RecycleEntry{
		ID:           id,
		DocumentID:   models.DocumentID(typ, id),
		Type:         typ,
		Slug:         id,
		Title:        title,
		OriginalPath: "_posts/" + id + ".md",
		StoredPath:   "_discarded/" + id + ".md",
		WasDraft:     true,
		DiscardedAt:  at,
	}
}

func TestRecycle_InsertGetDelete(t *testing.T) {
	db := testDB(t)
	e := entry("e1", models.TypePost, "Hello", time.Now())
	if err := db.InsertRecycleEntry(e); err != nil {
		t.Fatalf("InsertRecycleEntry: %v", err)
	}

	got, err := db.GetRecycleEntry("e1")
	if err != nil {
		t.Fatalf("GetRecycleEntry: %v", err)
	}
	if got.Title != "Hello" || !got.WasDraft || got.Type != models.TypePost {
		t.Errorf("entry = %+v", got)
	}

	ok, err := db.DeleteRecycleEntry("e1")
	if err != nil || !ok {
		t.Fatalf("DeleteRecycleEntry = %v, %v", ok, err)
	}
	ok, _ = db.DeleteRecycleEntry("e1")
	if ok {
		t.Error("second delete should report absence")
	}
	if _, err := db.GetRecycleEntry("e1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecycle_QueryMatchesWildcardsLiterally(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.InsertRecycleEntry(entry("sale", models.TypePost, "100% off", now))
	_ = db.InsertRecycleEntry(entry("plain", models.TypePost, "100 things", now))
	_ = db.InsertRecycleEntry(entry("snake_case", models.TypePost, "Naming", now))
	_ = db.InsertRecycleEntry(entry("snake-case", models.TypePost, "Naming again", now))

	entries, total, err := db.ListRecycleEntries(models.RecycleFilter{Query: "100%"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || entries[0].ID != "sale" {
		t.Errorf("percent query = %+v", entries)
	}

	entries, total, _ = db.ListRecycleEntries(models.RecycleFilter{Query: "e_c"})
	if total != 1 || entries[0].ID != "snake_case" {
		t.Errorf("underscore query = %+v", entries)
	}
}

func TestRecycle_ListFilterAndPaging(t *testing.T) {
	db := testDB(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_ = db.InsertRecycleEntry(entry(fmt.Sprintf("p%d", i), models.TypePost, fmt.Sprintf("Post %d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	_ = db.InsertRecycleEntry(entry("about", models.TypePage, "About", base))

	entries, total, err := db.ListRecycleEntries(models.RecycleFilter{Type: models.TypePost, Page: 1, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(entries) != 2 {
		t.Fatalf("total = %d len = %d", total, len(entries))
	}
	if entries[0].ID != "p4" {
		t.Errorf("first = %q, want most recent p4", entries[0].ID)
	}

	entries, _, _ = db.ListRecycleEntries(models.RecycleFilter{Type: models.TypePost, Page: 3, PageSize: 2})
	if len(entries) != 1 || entries[0].ID != "p0" {
		t.Errorf("last page = %+v", entries)
	}

	entries, total, _ = db.ListRecycleEntries(models.RecycleFilter{Query: "abo"})
	if total != 1 || entries[0].ID != "about" {
		t.Errorf("query result = %+v", entries)
	}

	pages, err := db.RecycleEntriesByType(models.TypePage)
	if err != nil || len(pages) != 1 {
		t.Errorf("pages = %v, %v", pages, err)
	}
	all, _ := db.RecycleEntriesByType("")
	if len(all) != 6 {
		t.Errorf("all = %d, want 6", len(all))
	}
}
