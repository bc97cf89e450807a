package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-rwe-platform/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)

	cohort := testCohort(t, 5, 2)
	mock.ExpectExec("INSERT INTO cohort_snapshots").
		WithArgs(cohort.RunID, cohort.Seed, 2, cohort.GeneratedAt, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), &cohort))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	cohort := testCohort(t, 6, 3)
	payload, err := json.Marshal(cohort)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM cohort_snapshots").
		WithArgs(cohort.RunID).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := store.Get(context.Background(), cohort.RunID)
	require.NoError(t, err)
	assert.Equal(t, cohort.RunID, got.RunID)
	assert.Len(t, got.Patients, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT payload FROM cohort_snapshots").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("SELECT run_id, seed, patient_count, generated_at, stored_at").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(
			[]string{"run_id", "seed", "patient_count", "generated_at", "stored_at"},
		).AddRow("run-a", int64(1), 100, now, now).
			AddRow("run-b", int64(2), 50, now, now))

	infos, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "run-a", infos[0].RunID)
	assert.Equal(t, 50, infos[1].PatientCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM cohort_snapshots").
		WithArgs("run-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Delete(context.Background(), "run-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
