// Package snapshot stores full cohort snapshots as JSON documents so a
// generated run can be reloaded, exported, or imported without the warehouse.
package snapshot

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/onco-rwe-platform/internal/domain"
)

// Store persists cohort snapshots keyed by run ID.
type Store interface {
	// Save stores or replaces the snapshot for the cohort's run ID.
	Save(ctx context.Context, cohort *domain.Cohort) error

	// Get retrieves a cohort by run ID. Returns domain.ErrNotFound when absent.
	Get(ctx context.Context, runID string) (*domain.Cohort, error)

	// List returns snapshot metadata, newest first.
	List(ctx context.Context, limit, offset int) ([]*Info, error)

	// Count returns the total number of stored snapshots.
	Count(ctx context.Context) (int64, error)

	// Delete removes a snapshot by run ID.
	Delete(ctx context.Context, runID string) error

	// ExportJSON writes every stored snapshot to the writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON loads snapshots from the reader, skipping run IDs that exist.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close releases store resources.
	Close() error
}

// Info is snapshot metadata without the patient payload.
type Info struct {
	RunID        string    `json:"run_id"`
	Seed         int64     `json:"seed"`
	PatientCount int       `json:"patient_count"`
	GeneratedAt  time.Time `json:"generated_at"`
	StoredAt     time.Time `json:"stored_at"`
}

// Export is the interchange document produced by ExportJSON.
type Export struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Cohorts    []domain.Cohort `json:"cohorts"`
}

// exportVersion tags the interchange format.
const exportVersion = "1.0"

// maxExportLimit bounds how many snapshots one export will carry.
const maxExportLimit = 1000000

// Open selects a backend from the DSN: postgres:// and postgresql:// URLs get
// the PostgreSQL store, anything else is treated as a SQLite file path.
func Open(dsn string) (Store, error) {
	if isPostgresDSN(dsn) {
		return NewPostgresStoreFromURL(dsn)
	}
	return NewSQLiteStore(dsn)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
