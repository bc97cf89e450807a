package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-rwe-platform/internal/cache"
	"github.com/onco-rwe-platform/internal/dataset"
	"github.com/onco-rwe-platform/internal/domain"
)

func testConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			RequestTimeout: 5 * time.Second,
			RateLimit:      1000,
			RateBurst:      1000,
		},
		Generator: domain.GeneratorConfig{
			DefaultPatients: 20,
			MinCycles:       3,
			MaxCycles:       6,
			CycleGapDays:    21,
			StartYear:       2021,
			EndYear:         2024,
			MaxCohortSize:   100,
		},
		Epi:     domain.EpiConfig{StartYear: 2019, EndYear: 2021},
		Market:  domain.MarketConfig{StartMonth: "2023-01", EndMonth: "2023-06"},
		Logging: domain.LoggingConfig{Level: "error"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	srv, err := NewServer(Options{
		Config:  testConfig(),
		Logger:  logger,
		Cohorts: cache.NewCohortCache(8, time.Minute, nil, logger),
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rwe_cohorts_generated_total")
}

func TestGenerateCohort(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodPost, "/api/v1/cohorts",
		GenerateCohortRequest{Patients: 10, Seed: 42})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.NotEmpty(t, body["run_id"])
	assert.EqualValues(t, 42, body["seed"])
	assert.EqualValues(t, 10, body["patients"])

	registry, ok := body["registry"].([]interface{})
	require.True(t, ok)
	assert.Len(t, registry, 10)
}

func TestGenerateCohort_DefaultsPatients(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodPost, "/api/v1/cohorts",
		GenerateCohortRequest{Seed: 7})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 20, body["patients"])
}

// fakeWarehouse records persisted cohorts and claims.
type fakeWarehouse struct {
	saved   []*domain.Cohort
	claims  map[string][]dataset.ClaimRow
	saveErr error
}

func (f *fakeWarehouse) Save(_ context.Context, cohort *domain.Cohort) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cohort)
	return nil
}

func (f *fakeWarehouse) SaveClaims(_ context.Context, runID string, claims []dataset.ClaimRow) error {
	if f.claims == nil {
		f.claims = map[string][]dataset.ClaimRow{}
	}
	f.claims[runID] = claims
	return nil
}

func newTestServerWithWarehouse(t *testing.T, warehouse CohortStore) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	srv, err := NewServer(Options{
		Config:    testConfig(),
		Logger:    logger,
		Cohorts:   cache.NewCohortCache(8, time.Minute, nil, logger),
		Warehouse: warehouse,
	})
	require.NoError(t, err)
	return srv
}

func TestGenerateCohort_PersistsToWarehouse(t *testing.T) {
	warehouse := &fakeWarehouse{}
	srv := newTestServerWithWarehouse(t, warehouse)

	w, body := doJSON(t, srv, http.MethodPost, "/api/v1/cohorts",
		GenerateCohortRequest{Patients: 4, Seed: 42})
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, warehouse.saved, 1)
	cohort := warehouse.saved[0]
	assert.Equal(t, body["run_id"], cohort.RunID)
	assert.Len(t, cohort.Patients, 4)

	// Claims land alongside the cohort, reseeded from its seed.
	expected := dataset.BuildClaims(rand.New(rand.NewSource(cohort.Seed)), *cohort)
	assert.Equal(t, expected, warehouse.claims[cohort.RunID])
}

func TestGenerateCohort_WarehouseFailureStillCreates(t *testing.T) {
	warehouse := &fakeWarehouse{saveErr: errors.New("warehouse down")}
	srv := newTestServerWithWarehouse(t, warehouse)

	w, body := doJSON(t, srv, http.MethodPost, "/api/v1/cohorts",
		GenerateCohortRequest{Patients: 3, Seed: 7})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, body["run_id"])
	assert.Empty(t, warehouse.claims, "claims are skipped when the cohort write fails")
}

func TestGenerateCohort_TooBig(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodPost, "/api/v1/cohorts",
		GenerateCohortRequest{Patients: 101})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeInvalidInput, body["code"])
}

func TestCohortTables(t *testing.T) {
	srv := newTestServer(t)

	_, created := doJSON(t, srv, http.MethodPost, "/api/v1/cohorts",
		GenerateCohortRequest{Patients: 5, Seed: 42})
	runID := created["run_id"].(string)

	for _, table := range []string{"rwe", "tcga", "ehr", "registry", "claims"} {
		w, body := doJSON(t, srv, http.MethodGet, "/api/v1/cohorts/"+runID+"/tables/"+table, nil)
		require.Equal(t, http.StatusOK, w.Code, "table %s", table)
		assert.Equal(t, table, body["table"])
		assert.NotNil(t, body["rows"], "table %s should have rows", table)
	}
}

func TestCohortTable_ClaimsStableAcrossRequests(t *testing.T) {
	srv := newTestServer(t)

	_, created := doJSON(t, srv, http.MethodPost, "/api/v1/cohorts",
		GenerateCohortRequest{Patients: 5, Seed: 42})
	runID := created["run_id"].(string)

	_, first := doJSON(t, srv, http.MethodGet, "/api/v1/cohorts/"+runID+"/tables/claims", nil)
	_, second := doJSON(t, srv, http.MethodGet, "/api/v1/cohorts/"+runID+"/tables/claims", nil)
	assert.Equal(t, first["rows"], second["rows"])
}

func TestCohortTable_UnknownCohort(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/api/v1/cohorts/nope/tables/rwe", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrCodeNotFound, body["code"])
}

func TestCohortTable_UnknownTable(t *testing.T) {
	srv := newTestServer(t)

	_, created := doJSON(t, srv, http.MethodPost, "/api/v1/cohorts",
		GenerateCohortRequest{Patients: 2, Seed: 1})
	runID := created["run_id"].(string)

	w, _ := doJSON(t, srv, http.MethodGet, "/api/v1/cohorts/"+runID+"/tables/unknown", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEpiPrevalence(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/api/v1/epi/prevalence", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prevalence", body["metric"])

	series, ok := body["series"].([]interface{})
	require.True(t, ok)
	assert.Len(t, series, len(domain.Diseases))
}

func TestEpiPrevalence_Filtered(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodGet,
		"/api/v1/epi/prevalence?start_year=2020&end_year=2020&cancer_types=Breast%20Cancer&stages=3,4", nil)
	require.Equal(t, http.StatusOK, w.Code)

	series, ok := body["series"].([]interface{})
	require.True(t, ok)
	require.Len(t, series, 1)

	line := series[0].(map[string]interface{})
	assert.Equal(t, "Breast Cancer", line["cancer_type"])
	points := line["points"].([]interface{})
	assert.Len(t, points, 1)
}

func TestEpiIncidence_BadFilter(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/api/v1/epi/incidence?start_year=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeInvalidInput, body["code"])
}

func TestMarketSales(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodGet, "/api/v1/market/sales", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotZero(t, body["count"])
}

func TestMarketSales_MonthWindow(t *testing.T) {
	srv := newTestServer(t)

	w, body := doJSON(t, srv, http.MethodGet,
		"/api/v1/market/sales?start_month=2023-02&end_month=2023-03", nil)
	require.Equal(t, http.StatusOK, w.Code)

	rows, ok := body["rows"].([]interface{})
	require.True(t, ok)
	for _, raw := range rows {
		month := raw.(map[string]interface{})["month"].(string)
		assert.GreaterOrEqual(t, month, "2023-02")
		assert.LessOrEqual(t, month, "2023-03")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/market/sales", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
