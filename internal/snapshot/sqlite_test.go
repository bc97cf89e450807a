package snapshot

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-rwe-platform/internal/domain"
	"github.com/onco-rwe-platform/internal/simulate"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testCohort(t *testing.T, seed int64, patients int) domain.Cohort {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return simulate.New(seed, logger).GenerateCohort(patients)
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cohort := testCohort(t, 7, 5)
	require.NoError(t, store.Save(ctx, &cohort))

	got, err := store.Get(ctx, cohort.RunID)
	require.NoError(t, err)
	assert.Equal(t, cohort.RunID, got.RunID)
	assert.Equal(t, cohort.Seed, got.Seed)
	require.Len(t, got.Patients, 5)
	assert.Equal(t, cohort.Patients[0].Cycles, got.Patients[0].Cycles)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_SaveReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cohort := testCohort(t, 8, 3)
	require.NoError(t, store.Save(ctx, &cohort))

	// Same run ID with a different payload must overwrite, not duplicate.
	bigger := testCohort(t, 9, 6)
	bigger.RunID = cohort.RunID
	require.NoError(t, store.Save(ctx, &bigger))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	got, err := store.Get(ctx, cohort.RunID)
	require.NoError(t, err)
	assert.Len(t, got.Patients, 6)
}

func TestSQLiteStore_ListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testCohort(t, 1, 2)
	second := testCohort(t, 2, 4)
	require.NoError(t, store.Save(ctx, &first))
	require.NoError(t, store.Save(ctx, &second))

	infos, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	for _, info := range infos {
		assert.NotEmpty(t, info.RunID)
		assert.NotZero(t, info.PatientCount)
	}

	require.NoError(t, store.Delete(ctx, first.RunID))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSQLiteStore_ExportImportRoundTrip(t *testing.T) {
	source := newTestStore(t)
	ctx := context.Background()

	a := testCohort(t, 10, 3)
	b := testCohort(t, 11, 2)
	require.NoError(t, source.Save(ctx, &a))
	require.NoError(t, source.Save(ctx, &b))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))

	dest := newTestStore(t)
	imported, skipped, err := dest.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, skipped)

	// Importing again skips everything.
	imported, skipped, err = dest.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 2, skipped)

	got, err := dest.Get(ctx, a.RunID)
	require.NoError(t, err)
	assert.Equal(t, a.Seed, got.Seed)
}
