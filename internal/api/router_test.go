package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/crudgate/internal/api/middleware"
	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/domain"
	"github.com/timmy/crudgate/internal/httpclient"
	"github.com/timmy/crudgate/internal/logger"
	"github.com/timmy/crudgate/internal/masking"
	"github.com/timmy/crudgate/internal/metrics"
	"github.com/timmy/crudgate/internal/service"
)

type captureSink struct {
	mu      sync.Mutex
	entries []domain.LogEntry
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Write(_ context.Context, entry domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *captureSink) ofType(t domain.LogType) []domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LogEntry
	for _, e := range s.entries {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *captureSink) all() []domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LogEntry(nil), s.entries...)
}

type fakeStore struct {
	records []domain.LogRecord
}

func (f *fakeStore) List(_ context.Context, filter domain.LogFilter) ([]domain.LogRecord, int64, error) {
	return f.records, int64(len(f.records)), nil
}

func (f *fakeStore) ListByCorrelation(_ context.Context, id string) ([]domain.LogRecord, error) {
	var out []domain.LogRecord
	for _, r := range f.records {
		if r.CorrelationID == id || r.ParentCorrelationID == id {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrLogRecordNotFound
	}
	return out, nil
}

type testServer struct {
	router  *gin.Engine
	sink    *captureSink
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, store *fakeStore, upstreamURL string) *testServer {
	t.Helper()

	quiet := logger.New(&logger.Config{Level: "error", Format: "json", Output: io.Discard})
	factory := correlation.NewFactory(
		correlation.WithHost(correlation.HostInfo{Name: "api-01", IP: "10.0.0.7"}),
	)
	m := metrics.New()
	sk := &captureSink{}
	logs := service.NewLogService(masking.NewDefault(), sk, factory, m, quiet, &service.LogServiceConfig{
		Layer:         "api",
		SlowThreshold: time.Second,
	})
	client := httpclient.New(&httpclient.Config{BaseURL: upstreamURL, Timeout: 5 * time.Second}, logs, quiet)

	r := SetupRouter(&Dependencies{
		Factory:  factory,
		Logs:     logs,
		Query:    service.NewLogQueryService(store),
		Upstream: client,
		Metrics:  m,
	}, &RouterConfig{
		Mode:         "test",
		MaxBodyBytes: 4096,
		CORS:         middleware.CORSConfig{AllowAllOrigins: true},
	})
	return &testServer{router: r, sink: sk, metrics: m}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestRouter_GeneratesCorrelationID(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, "")

	w := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, `^\d{14}-[0-9a-f]{8}-[0-9a-f]{4}$`, w.Header().Get(correlation.HeaderCorrelationID))
	assert.Empty(t, srv.sink.all(), "health checks are not recorded")
}

func TestRouter_ReusesInboundCorrelationID(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
	req.Header.Set(correlation.HeaderCorrelationID, "20240301120000-11111111-aaaa")
	req.Header.Set(correlation.HeaderParentCorrelationID, "20240301115959-00000000-aaaa")
	req.Header.Set(middleware.HeaderUserID, "alice")
	w := srv.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "20240301120000-11111111-aaaa", w.Header().Get(correlation.HeaderCorrelationID))

	entries := srv.sink.all()
	require.Len(t, entries, 3, "request, response and performance")
	for _, e := range entries {
		h := e.Header()
		assert.Equal(t, "20240301120000-11111111-aaaa", h.CorrelationID)
		assert.Equal(t, "20240301115959-00000000-aaaa", h.ParentCorrelationID)
		assert.Equal(t, "alice", h.UserID)
		assert.Equal(t, "api", h.Layer)
		assert.Equal(t, "api-01", h.ServerName)
	}

	perf := srv.sink.ofType(domain.LogTypePerformance)
	require.Len(t, perf, 1)
	assert.Equal(t, "GET /api/v1/logs", perf[0].(*domain.PerformanceEntry).Operation)
}

func TestRouter_ListLogs(t *testing.T) {
	store := &fakeStore{records: []domain.LogRecord{
		{ID: "01", CorrelationID: "c-1", Type: domain.LogTypeAudit, Payload: `{}`},
	}}
	srv := newTestServer(t, store, "")

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/logs?type=audit&limit=10", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var page service.LogPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 10, page.Limit)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "c-1", page.Records[0].CorrelationID)
}

func TestRouter_ListLogs_Validation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{name: "non numeric limit", query: "limit=ten", field: "limit"},
		{name: "limit too large", query: "limit=500", field: "limit"},
		{name: "negative offset", query: "offset=-1", field: "offset"},
		{name: "unknown type", query: "type=debug", field: "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeStore{}, "")

			w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/logs?"+tt.query, nil))

			require.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.field, body["field"])
			assert.Equal(t, w.Header().Get(correlation.HeaderCorrelationID), body["correlation_id"])
			assert.Len(t, srv.sink.ofType(domain.LogTypeBusinessException), 1)
		})
	}
}

func TestRouter_GetTrace(t *testing.T) {
	store := &fakeStore{records: []domain.LogRecord{
		{ID: "01", CorrelationID: "root", Type: domain.LogTypeRequest},
		{ID: "02", CorrelationID: "child", ParentCorrelationID: "root", Type: domain.LogTypeRequest},
	}}
	srv := newTestServer(t, store, "")

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/logs/root", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		CorrelationID string             `json:"correlation_id"`
		Records       []domain.LogRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "root", body.CorrelationID)
	assert.Len(t, body.Records, 2)

	w = srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/logs/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RecoversPanics(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, "")
	srv.router.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	w := srv.do(httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
	assert.NotEmpty(t, body["correlation_id"])
	assert.Equal(t, w.Header().Get(correlation.HeaderCorrelationID), body["correlation_id"])

	exceptions := srv.sink.ofType(domain.LogTypeException)
	require.Len(t, exceptions, 1)
	exc := exceptions[0].(*domain.ExceptionEntry)
	assert.Equal(t, "panic", exc.Category)
	assert.Equal(t, "kaboom", exc.Message)
	assert.Equal(t, body["correlation_id"], exc.CorrelationID)
}

func TestRouter_MasksRecordedBodies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7,"token":"tok-123"}`))
	}))
	defer upstream.Close()
	srv := newTestServer(t, &fakeStore{}, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upstream/customers",
		strings.NewReader(`{"name":"Ann","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer abc")
	w := srv.do(req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":7,"token":"tok-123"}`, w.Body.String(), "the caller gets the unmasked body")

	for _, e := range srv.sink.ofType(domain.LogTypeRequest) {
		req := e.(*domain.RequestEntry)
		assert.NotContains(t, req.Body, "hunter2")
		assert.Equal(t, masking.Marker, req.Headers["Authorization"])
	}
	for _, e := range srv.sink.ofType(domain.LogTypeResponse) {
		assert.NotContains(t, e.(*domain.ResponseEntry).Body, "tok-123")
	}
}

func TestRouter_ForwardsToUpstream(t *testing.T) {
	var got http.Header
	var gotBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "/customers/42", r.URL.Path)
		assert.Equal(t, "expand=orders", r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "yes")
		_, _ = w.Write([]byte(`{"id":42}`))
	}))
	defer upstream.Close()
	srv := newTestServer(t, &fakeStore{}, upstream.URL)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/upstream/customers/42?expand=orders",
		bytes.NewReader([]byte(`{"name":"Bob"}`)))
	req.Header.Set(correlation.HeaderCorrelationID, "20240301120000-11111111-aaaa")
	req.Header.Set("X-Tenant", "acme")
	w := srv.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))
	assert.Equal(t, "20240301120000-11111111-aaaa", w.Header().Get(correlation.HeaderCorrelationID))
	assert.JSONEq(t, `{"id":42}`, w.Body.String())

	assert.Equal(t, "20240301120000-11111111-aaaa", got.Get(correlation.HeaderCorrelationID))
	assert.Equal(t, "acme", got.Get("X-Tenant"))
	assert.JSONEq(t, `{"name":"Bob"}`, string(gotBody))

	var upstreamLayer int
	for _, e := range srv.sink.all() {
		if e.Header().Layer == "upstream" {
			upstreamLayer++
		}
	}
	assert.Equal(t, 3, upstreamLayer, "outbound request, response and performance")
}

func TestRouter_UpstreamNotConfigured(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, "")

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/upstream/customers", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, "")
	srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil))

	w := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `crudgate_log_entries_total{type="request"} 1`)
}
