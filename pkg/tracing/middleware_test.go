package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordingProvider() (*Provider, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	return newProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)), "test"), sr
}

func TestMiddlewareNamesSpanByRoute(t *testing.T) {
	p, sr := recordingProvider()

	router := mux.NewRouter()
	router.Use(p.Middleware)
	router.HandleFunc("/sessions/{label}", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanContextFromContext(r.Context()).IsValid())
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)

	req := httptest.NewRequest(http.MethodPost, "/sessions/transcode", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "POST /sessions/{label}", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.Parent().TraceID().String())
	assert.Contains(t, span.Attributes(), attribute.String("costime.label", "transcode"))
	assert.Contains(t, span.Attributes(), attribute.Int("http.status_code", http.StatusOK))
}

func TestMiddlewareMarksServerErrors(t *testing.T) {
	p, sr := recordingProvider()

	router := mux.NewRouter()
	router.Use(p.Middleware)
	router.HandleFunc("/timings", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/timings", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.status_code", http.StatusInternalServerError))
}
