package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psantana5/costime/internal/config"
	"github.com/psantana5/costime/pkg/costime"
	"github.com/psantana5/costime/pkg/logging"
	"github.com/psantana5/costime/pkg/metrics"
	"github.com/psantana5/costime/pkg/store"
	"github.com/psantana5/costime/pkg/tracing"
)

// Version is stamped into trace resources
var Version = "dev"

// App is a configured Stopwatch plus everything observing it
type App struct {
	Logger    *logging.Logger
	Stopwatch *costime.Stopwatch
	Store     store.Store
	Metrics   *metrics.Recorder // nil when metrics are disabled
	Tracer    *tracing.Provider

	history *store.Observer
}

// New wires a Stopwatch from cfg. Extra options are applied last, so tests
// can swap the clock or sink.
func New(cfg *config.Config, logger *logging.Logger, opts ...costime.Option) (*App, error) {
	a := &App{Logger: logger}

	s, err := store.NewStore(cfg.History.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	a.Store = s

	a.history = store.NewObserver(a.Store, logger, 0)
	observers := []costime.Observer{a.history}

	if cfg.Metrics.Enabled {
		rec, err := metrics.NewRecorder(prometheus.NewRegistry())
		if err != nil {
			a.history.Close()
			a.Store.Close()
			return nil, err
		}
		a.Metrics = rec
		observers = append(observers, rec)
	}

	tp, err := tracing.NewProvider(context.Background(), cfg.Tracing, Version, logger)
	if err != nil {
		a.history.Close()
		a.Store.Close()
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	a.Tracer = tp
	if cfg.Tracing.Enabled {
		observers = append(observers, tracing.NewSpanObserver(tp.Tracer()))
	}

	base := []costime.Option{
		costime.WithSink(logger),
		costime.WithTag(cfg.Tag),
		costime.WithFormat(cfg.StopwatchFormat()),
		costime.WithObserver(observers...),
	}
	a.Stopwatch = costime.New(append(base, opts...)...)
	return a, nil
}

// Close writes queued history, flushes the tracer and closes the store
func (a *App) Close(ctx context.Context) error {
	var historyErr error
	if a.history != nil {
		historyErr = a.history.Close()
	}
	return errors.Join(historyErr, a.Tracer.Shutdown(ctx), a.Store.Close())
}
