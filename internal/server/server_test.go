package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostedhh/condorcheck/internal/config"
	apperrors "github.com/boostedhh/condorcheck/internal/errors"
	"github.com/boostedhh/condorcheck/pkg/runlog"
)

func newTestServer(t *testing.T) (*Server, *runlog.Store) {
	t.Helper()
	store := runlog.NewStore(t.TempDir())
	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, store, nil)
	return srv, store
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apperrors.CodeNotFound, body.Error.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apperrors.CodeMethodNotAllowed, body.Error.Code)
}

func TestServer_HealthAndVersion(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetVersion("1.2.3")

	endpoints := []string{"/health", "/health/live", "/health/ready", "/version"}
	for _, ep := range endpoints {
		t.Run(ep, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, ep, nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var v versionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, "1.2.3", v.Version)
}

func TestServer_Runs(t *testing.T) {
	srv, store := newTestServer(t)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(&runlog.RunRecord{
		RunID:     "run-1",
		Year:      "2018",
		State:     runlog.RunStateSuccess,
		CreatedAt: now,
	}))
	require.NoError(t, store.Write(&runlog.RunRecord{
		RunID:     "run-2",
		Year:      "2018",
		State:     runlog.RunStateSuccess,
		CreatedAt: now.Add(time.Hour),
	}))

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/runs", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var runs []runlog.RunRecord
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].RunID)
	})

	t.Run("latest", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/runs/latest", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var run runlog.RunRecord
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
		assert.Equal(t, "run-2", run.RunID)
	})

	t.Run("by id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/runs/run-1", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var run runlog.RunRecord
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
		assert.Equal(t, "run-1", run.RunID)
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/runs/nope", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_LatestRun_Empty(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/latest", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RunReport(t *testing.T) {
	srv, store := newTestServer(t)

	require.NoError(t, store.Write(&runlog.RunRecord{
		RunID:     "run-1",
		Year:      "2018",
		State:     runlog.RunStateSuccess,
		CreatedAt: time.Now().UTC(),
	}))
	line := `{"type":"condorcheck.summary.v1"}` + "\n"
	require.NoError(t, os.WriteFile(store.ReportPath("run-1"), []byte(line), 0644))

	req := httptest.NewRequest(http.MethodGet, "/runs/run-1/report", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, line, rec.Body.String())
}

func TestServer_RunReport_Missing(t *testing.T) {
	srv, store := newTestServer(t)

	require.NoError(t, store.Write(&runlog.RunRecord{
		RunID:     "run-1",
		Year:      "2018",
		State:     runlog.RunStateSuccess,
		CreatedAt: time.Now().UTC(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/runs/run-1/report", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Addr(t *testing.T) {
	store := runlog.NewStore(t.TempDir())
	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 9000}, store, nil)
	assert.Equal(t, "127.0.0.1:9000", srv.Addr())
	assert.Equal(t, 9000, srv.Port())
}
