package index

import (
	"log/slog"
	"time"

	"github.com/starford/folio/internal/frontmatter"
	"github.com/starford/folio/internal/layout"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// Sync walks the content directories and brings the index up to date:
//   - new/changed documents are parsed and upserted
//   - documents removed from disk are deleted from the index
//
// The recycle directory is never indexed; the recycle ledger owns it.
func Sync(db *DB, store storage.Provider, lay layout.Layout, logger *slog.Logger) error {
	files, err := listContent(store, lay)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Path] = struct{}{}

		if checksums[f.Path] == f.Checksum {
			continue
		}
		if err := indexFile(db, store, lay, f.Path); err != nil {
			logger.Warn("sync: index failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", f.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// listContent returns the document files of every content directory.
func listContent(store storage.Provider, lay layout.Layout) ([]storage.FileInfo, error) {
	var out []storage.FileInfo
	for _, dir := range lay.ContentDirs() {
		files, err := store.List(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if _, ok := lay.Resolve(f.Path); ok {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// indexFile reads and parses the file at rel and upserts it.
func indexFile(db *DB, store storage.Provider, lay layout.Layout, rel string) error {
	loc, ok := lay.Resolve(rel)
	if !ok {
		return nil
	}
	data, err := store.Read(rel)
	if err != nil {
		return err
	}
	info, err := store.Stat(rel)
	if err != nil {
		return err
	}
	row, err := RowFromFile(loc, rel, data, info.ModTime)
	if err != nil {
		return err
	}
	return db.UpsertDocument(row)
}

// RowFromFile builds the index row of the file at rel.
func RowFromFile(loc layout.Location, rel string, data []byte, modTime time.Time) (DocumentRow, error) {
	parsed, err := frontmatter.Parse(data)
	if err != nil {
		return DocumentRow{}, err
	}
	created, ok := parsed.Meta.Time(frontmatter.KeyDate)
	if !ok {
		created = modTime
	}
	return DocumentRow{
		Path:       rel,
		ID:         loc.ID(),
		Type:       loc.Type,
		State:      loc.State(),
		Slug:       loc.Slug,
		Title:      parsed.Title,
		Checksum:   storage.Checksum(data),
		Tags:       parsed.Meta.Tags(),
		Categories: parsed.Meta.Categories(),
		Body:       parsed.Body,
		CreatedAt:  created,
		UpdatedAt:  modTime,
	}, nil
}

// RowFromDocument builds the index row of a document just written to disk.
func RowFromDocument(d *models.Document) DocumentRow {
	return DocumentRow{
		Path:       d.Path,
		ID:         d.ID,
		Type:       d.Type,
		State:      d.State(),
		Slug:       d.Slug,
		Title:      d.Title,
		Checksum:   d.Checksum,
		Tags:       d.Meta.Tags(),
		Categories: d.Meta.Categories(),
		Body:       d.Body,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
