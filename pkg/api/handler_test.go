package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/costime/pkg/api"
	"github.com/psantana5/costime/pkg/costime"
	"github.com/psantana5/costime/pkg/logging"
	"github.com/psantana5/costime/pkg/metrics"
	"github.com/psantana5/costime/pkg/ratelimit"
	"github.com/psantana5/costime/pkg/store"
)

type fixture struct {
	router  *mux.Router
	clock   *clock.Mock
	logs    *bytes.Buffer
	store   *store.MemoryStore
	history *store.Observer
}

func newFixture(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := logging.NewLogger(logging.INFO, false)
	logger.SetOutput(logs)

	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1000))

	mem := store.NewMemoryStore()
	rec, err := metrics.NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	history := store.NewObserver(mem, logger, 0)
	t.Cleanup(func() { history.Close() })

	sw := costime.New(
		costime.WithClock(mock),
		costime.WithSink(logger),
		costime.WithObserver(history, rec),
	)

	opts = append([]api.Option{api.WithMetrics(rec.Handler())}, opts...)
	handler := api.NewHandler(sw, mem, logger, opts...)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	return &fixture{router: router, clock: mock, logs: logs, store: mem, history: history}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestStartEndOverHTTP(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/sessions/load", "")
	require.Equal(t, http.StatusOK, w.Code)

	var start api.StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))
	assert.Equal(t, api.StartResponse{Label: "load", Session: 1000}, start)

	f.clock.Add(250 * time.Millisecond)
	w = f.do(http.MethodPost, "/sessions/load/end", `{"session": 1000}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Contains(t, f.logs.String(), "load start : 1000")
	assert.Contains(t, f.logs.String(), "load end : 1250, cosTime: 250")
}

func TestStepsOverHTTP(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/steps", "").Code)
	f.clock.Add(40 * time.Millisecond)
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/steps/demux", "").Code)
	f.clock.Add(60 * time.Millisecond)
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/steps/decode", "").Code)

	assert.Contains(t, f.logs.String(), "demux step : 40")
	assert.Contains(t, f.logs.String(), "decode step : 60")
}

func TestEndRejectsBadBodies(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/sessions/load/end", "not json").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/sessions/load/end", `{}`).Code)
	assert.NotContains(t, f.logs.String(), "load end")
}

func TestTimingsSummarizesHistory(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodPost, "/steps", "")
	f.clock.Add(30 * time.Millisecond)
	f.do(http.MethodPost, "/steps/mux", "")
	f.clock.Add(50 * time.Millisecond)
	f.do(http.MethodPost, "/steps/mux", "")
	require.NoError(t, f.history.Close())

	w := f.do(http.MethodGet, "/timings", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int `json:"count"`
		Timings []struct {
			Label   string `json:"label"`
			Kind    string `json:"kind"`
			Count   int64  `json:"count"`
			TotalMs int64  `json:"total_ms"`
		} `json:"timings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "mux", resp.Timings[0].Label)
	assert.Equal(t, "step", resp.Timings[0].Kind)
	assert.Equal(t, int64(2), resp.Timings[0].Count)
	assert.Equal(t, int64(80), resp.Timings[0].TotalMs)
}

func TestMetricsAndHealth(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/sessions/load", "")

	w := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `costime_marks_total{kind="start",tag="CosTime"} 1`)

	w = f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMarkEndpointsAreRateLimited(t *testing.T) {
	limiter := ratelimit.NewLimiter(0.001, 1)
	f := newFixture(t, api.WithRateLimit(limiter.Middleware(ratelimit.IPKeyFunc)))

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/steps/a", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/steps/b", "").Code)

	// reads are not limited
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
}

func TestWrongMethod(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/steps/decode", "").Code)
}
