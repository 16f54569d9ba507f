package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/trial-screener/internal/config"
	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/internal/store"
	"github.com/oncomatch/trial-screener/internal/trials"
)

// newTestAPI wires the API over the embedded sample dataset and a
// throwaway SQLite store, mirroring what the serve command assembles.
func newTestAPI(t *testing.T) *apiServer {
	t.Helper()
	cfg = &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
	}

	ctx := context.Background()
	st, err := store.Open(ctx, config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	table := trials.SampleTable()
	return &apiServer{store: st, screener: newScreener(table, st)}
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServe_Health(t *testing.T) {
	api := newTestAPI(t)
	rec := httptest.NewRecorder()
	api.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, trials.SampleTable().Len(), body["trials"])
}

func TestServe_Match(t *testing.T) {
	api := newTestAPI(t)
	h := api.router()

	rec := postJSON(t, h, "/api/match", matchRequest{
		Description: "Female, 45 years old, breast cancer, HER2 positive, non-smoker",
		TopK:        5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var run model.MatchRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.NotEmpty(t, run.Results)
	assert.Greater(t, run.Results[0].Confidence, 0.0)
	assert.NotEmpty(t, run.ID)

	// The run is persisted and listable.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.MatchRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestServe_MatchRequiresDescription(t *testing.T) {
	api := newTestAPI(t)

	rec := postJSON(t, api.router(), "/api/match", matchRequest{Description: "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "description is required")
}

func TestServe_Samples(t *testing.T) {
	api := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/samples", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var cases []trials.SampleCase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cases))
	assert.NotEmpty(t, cases)
}

func TestServe_GetTrial(t *testing.T) {
	api := newTestAPI(t)
	h := api.router()
	known := trials.SampleTable().Rows()[0].NCTID

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trials/"+known, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var tr model.Trial
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Equal(t, known, tr.NCTID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trials/NCT99999999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_MatchExportCSV(t *testing.T) {
	api := newTestAPI(t)

	rec := postJSON(t, api.router(), "/api/match/export", matchRequest{
		Description: "Female, 45 years old, breast cancer",
		TopK:        3,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "matches.csv")
	assert.Contains(t, rec.Body.String(), "NCT ID")
}

func TestServe_MatchExportUnknownFormat(t *testing.T) {
	api := newTestAPI(t)

	rec := postJSON(t, api.router(), "/api/match/export", matchRequest{
		Description: "breast cancer",
		Format:      "pdf",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown format")
}

func TestServe_GetRunNotFound(t *testing.T) {
	api := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
