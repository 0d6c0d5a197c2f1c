package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/psantana5/costime/pkg/costime"
	"github.com/psantana5/costime/pkg/logging"
	"github.com/psantana5/costime/pkg/report"
	"github.com/psantana5/costime/pkg/store"
)

// Handler exposes one shared Stopwatch over HTTP so processes that cannot
// link this module (shell scripts around ffmpeg, for example) can mark
// starts, ends and steps.
type Handler struct {
	stopwatch *costime.Stopwatch
	store     store.Store
	metrics   http.Handler
	limit     func(http.Handler) http.Handler
	logger    *logging.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithMetrics serves h at /metrics
func WithMetrics(h http.Handler) Option {
	return func(handler *Handler) {
		handler.metrics = h
	}
}

// WithRateLimit wraps the mark endpoints in mw
func WithRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(handler *Handler) {
		handler.limit = mw
	}
}

// NewHandler creates a handler. s backs GET /timings.
func NewHandler(sw *costime.Stopwatch, s store.Store, logger *logging.Logger, opts ...Option) *Handler {
	h := &Handler{
		stopwatch: sw,
		store:     s,
		logger:    logger,
		limit:     func(next http.Handler) http.Handler { return next },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers all routes on r
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/timings", h.timings).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}

	r.Handle("/sessions/{label}", h.limit(http.HandlerFunc(h.start))).Methods(http.MethodPost)
	r.Handle("/sessions/{label}/end", h.limit(http.HandlerFunc(h.end))).Methods(http.MethodPost)
	r.Handle("/steps", h.limit(http.HandlerFunc(h.stepStart))).Methods(http.MethodPost)
	r.Handle("/steps/{label}", h.limit(http.HandlerFunc(h.step))).Methods(http.MethodPost)
}

// StartResponse is returned by POST /sessions/{label}
type StartResponse struct {
	Label   string `json:"label"`
	Session int64  `json:"session"`
}

// EndRequest is the body of POST /sessions/{label}/end
type EndRequest struct {
	Session *int64 `json:"session"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	label := mux.Vars(r)["label"]
	session := h.stopwatch.Start(label)
	writeJSON(w, http.StatusOK, StartResponse{Label: label, Session: int64(session)})
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	label := mux.Vars(r)["label"]

	var req EndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Session == nil {
		http.Error(w, "Missing session", http.StatusBadRequest)
		return
	}

	h.stopwatch.End(label, costime.Session(*req.Session))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stepStart(w http.ResponseWriter, r *http.Request) {
	h.stopwatch.MainStepStart()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request) {
	h.stopwatch.MainStep(mux.Vars(r)["label"])
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) timings(w http.ResponseWriter, r *http.Request) {
	sums, err := h.store.Summaries()
	if err != nil {
		h.logger.Error("failed to load summaries", map[string]interface{}{"error": err.Error()})
		http.Error(w, "Failed to load timings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timings": report.Rows(sums),
		"count":   len(sums),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
