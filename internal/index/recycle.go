package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

const recycleColumns = `id, document_id, type, slug, title, original_path, stored_path, was_draft, discarded_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.RecycleEntry, error) {
	var (
		e   models.RecycleEntry
		typ string
	)
	if err := s.Scan(&e.ID, &e.DocumentID, &typ, &e.Slug, &e.Title,
		&e.OriginalPath, &e.StoredPath, &e.WasDraft, &e.DiscardedAt); err != nil {
		return models.RecycleEntry{}, err
	}
	e.Type = models.DocType(typ)
	return e, nil
}

// InsertRecycleEntry records a discarded document.
func (db *DB) InsertRecycleEntry(e models.RecycleEntry) error {
	_, err := db.conn.Exec(`
		INSERT INTO recycle_entries (`+recycleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.DocumentID, string(e.Type), e.Slug, e.Title, e.OriginalPath, e.StoredPath, e.WasDraft, e.DiscardedAt)
	if err != nil {
		return fmt.Errorf("index: insert recycle entry: %w", err)
	}
	return nil
}

// GetRecycleEntry returns the entry with the given id or apperr.ErrNotFound.
func (db *DB) GetRecycleEntry(id string) (*models.RecycleEntry, error) {
	row := db.conn.QueryRow(`SELECT `+recycleColumns+` FROM recycle_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: recycle entry %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get recycle entry: %w", err)
	}
	return &e, nil
}

// DeleteRecycleEntry removes an entry and reports whether it existed.
func (db *DB) DeleteRecycleEntry(id string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM recycle_entries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("index: delete recycle entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListRecycleEntries returns one page of entries matching f, most recently
// discarded first, and the total number of matches. Query matches title or
// slug case-insensitively.
func (db *DB) ListRecycleEntries(f models.RecycleFilter) ([]models.RecycleEntry, int, error) {
	clause, args := recycleWhere(f.Type, f.Query)

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM recycle_entries`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count recycle entries: %w", err)
	}

	size := f.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)
	page := max(f.Page, 1)

	rows, err := db.conn.Query(
		`SELECT `+recycleColumns+` FROM recycle_entries`+clause+` ORDER BY discarded_at DESC, id LIMIT ? OFFSET ?`,
		append(args, size, (page-1)*size)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list recycle entries: %w", err)
	}
	defer rows.Close()

	out := []models.RecycleEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// RecycleEntriesByType returns every entry of type t, or all entries when t
// is empty.
func (db *DB) RecycleEntriesByType(t models.DocType) ([]models.RecycleEntry, error) {
	clause, args := recycleWhere(t, "")
	rows, err := db.conn.Query(`SELECT `+recycleColumns+` FROM recycle_entries`+clause+` ORDER BY discarded_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: recycle entries by type: %w", err)
	}
	defer rows.Close()

	var out []models.RecycleEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func recycleWhere(t models.DocType, query string) (string, []any) {
	var (
		where []string
		args  []any
	)
	if t != "" {
		where = append(where, "type = ?")
		args = append(args, string(t))
	}
	if q := strings.TrimSpace(query); q != "" {
		like := containsPattern(strings.ToLower(q))
		where = append(where, `(lower(title) LIKE ? ESCAPE '\' OR lower(slug) LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern builds a LIKE pattern matching s literally anywhere in
// the column. Use it with ESCAPE '\'.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
