package metrics

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/psantana5/costime/pkg/costime"
)

// Recorder exports stopwatch measurements as Prometheus metrics
type Recorder struct {
	elapsed *prometheus.HistogramVec
	marks   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewRecorder creates a recorder registered on reg. Pass a fresh
// prometheus.NewRegistry() to keep metrics out of the global registry.
func NewRecorder(reg *prometheus.Registry) (*Recorder, error) {
	r := &Recorder{
		elapsed: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "costime_elapsed_seconds",
				Help:    "Elapsed time reported by stopwatch end and step marks",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"tag", "label", "kind"},
		),
		marks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "costime_marks_total",
				Help: "Stopwatch marks by kind",
			},
			[]string{"tag", "kind"},
		),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{r.elapsed, r.marks} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return r, nil
}

// Observe implements costime.Observer
func (r *Recorder) Observe(m costime.Measurement) {
	r.marks.WithLabelValues(m.Tag, string(m.Kind)).Inc()
	if m.Kind == costime.KindStart {
		return
	}
	r.elapsed.WithLabelValues(m.Tag, m.Label, string(m.Kind)).Observe(m.Elapsed.Seconds())
}

// Handler serves the registry for scraping
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// WriteText writes every gathered family in the Prometheus text format
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
