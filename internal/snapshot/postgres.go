package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/onco-rwe-platform/internal/domain"
)

// PostgresStore implements Store on PostgreSQL for shared deployments.
// It expects the cohort_snapshots table to already exist.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging snapshot database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a connection from a URL and wraps it.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save stores or replaces a cohort snapshot.
func (s *PostgresStore) Save(ctx context.Context, cohort *domain.Cohort) error {
	payload, err := json.Marshal(cohort)
	if err != nil {
		return fmt.Errorf("encoding cohort %s: %w", cohort.RunID, err)
	}

	query := `
		INSERT INTO cohort_snapshots (run_id, seed, patient_count, generated_at, stored_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			seed = EXCLUDED.seed,
			patient_count = EXCLUDED.patient_count,
			generated_at = EXCLUDED.generated_at,
			stored_at = EXCLUDED.stored_at,
			payload = EXCLUDED.payload
	`

	_, err = s.db.ExecContext(ctx, query,
		cohort.RunID,
		cohort.Seed,
		len(cohort.Patients),
		cohort.GeneratedAt,
		time.Now(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", cohort.RunID, err)
	}
	return nil
}

// Get retrieves a cohort snapshot by run ID.
func (s *PostgresStore) Get(ctx context.Context, runID string) (*domain.Cohort, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM cohort_snapshots WHERE run_id = $1", runID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot %s: %w", runID, err)
	}

	var cohort domain.Cohort
	if err := json.Unmarshal(payload, &cohort); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", runID, err)
	}
	return &cohort, nil
}

// List returns snapshot metadata, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Info, error) {
	query := `
		SELECT run_id, seed, patient_count, generated_at, stored_at
		FROM cohort_snapshots
		ORDER BY stored_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
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
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cohort_snapshots").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return count, nil
}

// Delete removes a snapshot by run ID.
func (s *PostgresStore) Delete(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cohort_snapshots WHERE run_id = $1", runID)
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", runID, err)
	}
	return nil
}

// ExportJSON writes every stored cohort to the writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("decoding snapshot export: %w", err)
	}

	for i := range export.Cohorts {
		cohort := &export.Cohorts[i]

		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM cohort_snapshots WHERE run_id = $1", cohort.RunID,
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
