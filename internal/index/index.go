package index

import "github.com/starford/folio/internal/models"

// DocumentIndex defines the listing-index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type DocumentIndex interface {
	UpsertDocument(r DocumentRow) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	ListDocuments(f models.DocumentFilter) ([]DocumentRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
}

// RecycleLedger defines the recycle-entry operations.
type RecycleLedger interface {
	InsertRecycleEntry(e models.RecycleEntry) error
	GetRecycleEntry(id string) (*models.RecycleEntry, error)
	DeleteRecycleEntry(id string) (bool, error)
	ListRecycleEntries(f models.RecycleFilter) ([]models.RecycleEntry, int, error)
	RecycleEntriesByType(t models.DocType) ([]models.RecycleEntry, error)
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ DocumentIndex = (*DB)(nil)
	_ RecycleLedger = (*DB)(nil)
)
