package index

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/folio/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path       string
	ID         string
	Type       models.DocType
	State      models.State
	Slug       string
	Title      string
	Checksum   string
	Tags       []string
	Categories []string
	Body       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Summary converts the row to its listing form.
func (r DocumentRow) Summary() models.DocumentSummary {
	return models.DocumentSummary{
		ID:         r.ID,
		Type:       r.Type,
		Slug:       r.Slug,
		Path:       r.Path,
		Title:      r.Title,
		State:      r.State,
		Tags:       nonNil(r.Tags),
		Categories: nonNil(r.Categories),
		Checksum:   r.Checksum,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertDocument inserts or replaces a document and its FTS entry within a transaction.
func (db *DB) UpsertDocument(r DocumentRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(r.Tags))
	catsJSON, _ := json.Marshal(nonNil(r.Categories))
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = r.UpdatedAt
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, id, type, state, slug, title, checksum, tags, categories, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id         = excluded.id,
			type       = excluded.type,
			state      = excluded.state,
			slug       = excluded.slug,
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			categories = excluded.categories,
			body       = excluded.body,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, r.Path, r.ID, string(r.Type), string(r.State), r.Slug, r.Title, r.Checksum,
		string(tagsJSON), string(catsJSON), r.Body, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteDocument removes a document and its FTS entry.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a path, or empty string if not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

const documentColumns = `path, id, type, state, slug, title, checksum, tags, categories, created_at, updated_at`

// ListDocuments returns one page of documents matching f, newest first, and
// the total number of matches.
func (db *DB) ListDocuments(f models.DocumentFilter) ([]DocumentRow, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(f.State))
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(documents.tags) WHERE json_each.value = ?)")
		args = append(args, f.Tag)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		`SELECT `+documentColumns+` FROM documents`+clause+` ORDER BY updated_at DESC, path LIMIT ? OFFSET ?`,
		append(args, limit, max(f.Offset, 0))...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		var (
			r          DocumentRow
			typ, state string
			tags, cats string
		)
		if err := rows.Scan(&r.Path, &r.ID, &typ, &state, &r.Slug, &r.Title, &r.Checksum,
			&tags, &cats, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		r.Type = models.DocType(typ)
		r.State = models.State(state)
		_ = json.Unmarshal([]byte(tags), &r.Tags)
		_ = json.Unmarshal([]byte(cats), &r.Categories)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
