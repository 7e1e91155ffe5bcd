package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/postfire-sar-etl/internal/adapter/cmr"
	httpadapter "github.com/couchcryptid/postfire-sar-etl/internal/adapter/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockFinder struct {
	urls  []string
	count int
	err   error

	lastQuery cmr.Query
	lastLimit int
}

func (m *mockFinder) DownloadURLs(_ context.Context, q cmr.Query, maxResults int) ([]string, error) {
	m.lastQuery = q
	m.lastLimit = maxResults
	return m.urls, m.err
}

func (m *mockFinder) GranuleCount(_ context.Context, q cmr.Query) (int, error) {
	m.lastQuery = q
	return m.count, m.err
}

func newTestServer(readyErr error, granules cmr.GranuleFinder) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, granules, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("no scene has been processed yet"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no scene has been processed yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestGranulesNotRoutedWithoutFinder(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/granules?bbox=-120,38,-119,39&start=2025-07-01&end=2025-07-31", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGranulesReturnsCountAndURLs(t *testing.T) {
	finder := &mockFinder{
		urls:  []string{"https://e4ftl01.cr.usgs.gov/g1.h5", "https://e4ftl01.cr.usgs.gov/g2.h5"},
		count: 17,
	}
	srv := newTestServer(nil, finder)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/granules?bbox=-120.5,38,-119,39.25&start=2025-07-01&end=2025-07-31T23:59:59Z&limit=2", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int      `json:"count"`
		URLs  []string `json:"urls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 17, body.Count)
	assert.Equal(t, finder.urls, body.URLs)

	assert.Equal(t, cmr.BBox{MinLon: -120.5, MinLat: 38, MaxLon: -119, MaxLat: 39.25}, finder.lastQuery.Box)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), finder.lastQuery.Start)
	assert.Equal(t, time.Date(2025, 7, 31, 23, 59, 59, 0, time.UTC), finder.lastQuery.End)
	assert.Equal(t, 2, finder.lastLimit)
}

func TestGranulesRejectsBadParams(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"missing bbox", "/v1/granules?start=2025-07-01&end=2025-07-31"},
		{"short bbox", "/v1/granules?bbox=-120,38,-119&start=2025-07-01&end=2025-07-31"},
		{"bad bbox value", "/v1/granules?bbox=-120,38,-119,north&start=2025-07-01&end=2025-07-31"},
		{"missing start", "/v1/granules?bbox=-120,38,-119,39&end=2025-07-31"},
		{"bad end", "/v1/granules?bbox=-120,38,-119,39&start=2025-07-01&end=soon"},
		{"bad limit", "/v1/granules?bbox=-120,38,-119,39&start=2025-07-01&end=2025-07-31&limit=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(nil, &mockFinder{})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)

			srv.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGranulesUpstreamFailure(t *testing.T) {
	finder := &mockFinder{err: fmt.Errorf("CMR API error: status 503")}
	srv := newTestServer(nil, finder)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/granules?bbox=-120,38,-119,39&start=2025-07-01&end=2025-07-31", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
