package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/onco-rwe-platform/internal/domain"
)

// SQLiteStore implements Store on a local SQLite file. It is the default
// snapshot backend for the datagen CLI and single-node deployments.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (and creates if needed) a SQLite snapshot store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}

	// WAL mode for concurrent readers while the generator writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cohort_snapshots (
		run_id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		patient_count INTEGER NOT NULL,
		generated_at DATETIME NOT NULL,
		stored_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_stored_at ON cohort_snapshots(stored_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces a cohort snapshot.
func (s *SQLiteStore) Save(ctx context.Context, cohort *domain.Cohort) error {
	payload, err := json.Marshal(cohort)
	if err != nil {
		return fmt.Errorf("encoding cohort %s: %w", cohort.RunID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cohort_snapshots (run_id, seed, patient_count, generated_at, stored_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			seed = excluded.seed,
			patient_count = excluded.patient_count,
			generated_at = excluded.generated_at,
			stored_at = excluded.stored_at,
			payload = excluded.payload
	`,
		cohort.RunID,
		cohort.Seed,
		len(cohort.Patients),
		cohort.GeneratedAt,
		time.Now(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", cohort.RunID, err)
	}
	return nil
}

// Get retrieves a cohort snapshot by run ID.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*domain.Cohort, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM cohort_snapshots WHERE run_id = ?", runID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot %s: %w", runID, err)
	}

	var cohort domain.Cohort
	if err := json.Unmarshal([]byte(payload), &cohort); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", runID, err)
	}
	return &cohort, nil
}

// List returns snapshot metadata, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seed, patient_count, generated_at, stored_at
		FROM cohort_snapshots
		ORDER BY stored_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var result []*Info
	for rows.Next() {
		info := &Info{}
		err := rows.Scan(&info.RunID, &info.Seed, &info.PatientCount, &info.GeneratedAt, &info.StoredAt)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

// Count returns the total number of stored snapshots.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cohort_snapshots").Scan(&count)
	return count, err
}

// Delete removes a snapshot by run ID.
func (s *SQLiteStore) Delete(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cohort_snapshots WHERE run_id = ?", runID)
	return err
}

// ExportJSON writes every stored cohort to the writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	infos, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}

	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now(),
		Count:      len(infos),
	}
	for _, info := range infos {
		cohort, err := s.Get(ctx, info.RunID)
		if err != nil {
			return err
		}
		export.Cohorts = append(export.Cohorts, *cohort)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON loads cohorts from the reader, skipping run IDs that already exist.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("decoding snapshot export: %w", err)
	}

	for i := range export.Cohorts {
		cohort := &export.Cohorts[i]

		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM cohort_snapshots WHERE run_id = ?", cohort.RunID,
		).Scan(&exists)
		if err == nil {
			skipped++
			continue
		}
		if err != sql.ErrNoRows {
			return imported, skipped, fmt.Errorf("checking snapshot %s: %w", cohort.RunID, err)
		}

		if err := s.Save(ctx, cohort); err != nil {
			return imported, skipped, err
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
