package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/psantana5/costime/pkg/costime"
	"github.com/psantana5/costime/pkg/logging"
)

// Store keeps measurement history
type Store interface {
	Record(m costime.Measurement) error
	Summaries() ([]Summary, error)
	Close() error
}

// Config selects a Store implementation
type Config struct {
	Type string // "memory", "sqlite" or "postgres"; empty picks sqlite when Path is set
	Path string // SQLite file
	DSN  string // PostgreSQL connection string
}

// ErrUnsupportedDatabase is returned by NewStore for an unknown Type
var ErrUnsupportedDatabase = errors.New("unsupported database type")

// NewStore opens the store described by config
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "postgres", "postgresql":
		return NewPostgreSQLStore(config)
	case "sqlite":
		if config.Path == "" {
			return nil, errors.New("SQLite path is required")
		}
		return NewSQLiteStore(config.Path)
	case "":
		if config.Path == "" {
			return NewMemoryStore(), nil
		}
		return NewSQLiteStore(config.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDatabase, config.Type)
	}
}

// Persistent reports whether config names a store that outlives the process
func (c Config) Persistent() bool {
	switch c.Type {
	case "postgres", "postgresql", "sqlite":
		return true
	case "":
		return c.Path != ""
	default:
		return false
	}
}

// Summary aggregates measurements sharing tag, label and kind
type Summary struct {
	Tag   string        `json:"tag" yaml:"tag"`
	Label string        `json:"label" yaml:"label"`
	Kind  costime.Kind  `json:"kind" yaml:"kind"`
	Count int64         `json:"count" yaml:"count"`
	Total time.Duration `json:"total" yaml:"total"`
	Min   time.Duration `json:"min" yaml:"min"`
	Max   time.Duration `json:"max" yaml:"max"`
	Last  time.Time     `json:"last" yaml:"last"`
}

// Mean returns the average elapsed time
func (s Summary) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// DefaultObserverBuffer is the number of measurements an Observer queues
// before it starts dropping
const DefaultObserverBuffer = 1024

// Observer records stopwatch measurements into a store from a single writer
// goroutine, so a slow database never stalls the stopwatch caller. When the
// queue is full the measurement is dropped and logged. Close drains the
// queue.
type Observer struct {
	store  Store
	logger *logging.Logger

	queue chan costime.Measurement
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewObserver starts an observer writing end and step measurements to s.
// A buffer of zero or less uses DefaultObserverBuffer.
func NewObserver(s Store, logger *logging.Logger, buffer int) *Observer {
	if buffer <= 0 {
		buffer = DefaultObserverBuffer
	}
	o := &Observer{
		store:  s,
		logger: logger,
		queue:  make(chan costime.Measurement, buffer),
		done:   make(chan struct{}),
	}
	go o.run()
	return o
}

// Observe implements costime.Observer. It never blocks.
func (o *Observer) Observe(m costime.Measurement) {
	if m.Kind == costime.KindStart {
		return
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.drop(m, "observer closed")
		return
	}

	select {
	case o.queue <- m:
	default:
		o.drop(m, "queue full")
	}
}

// Dropped returns how many measurements were not recorded
func (o *Observer) Dropped() int64 {
	return o.dropped.Load()
}

// Close stops accepting measurements and waits until queued ones are written
func (o *Observer) Close() error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	<-o.done
	return nil
}

func (o *Observer) run() {
	defer close(o.done)
	for m := range o.queue {
		if err := o.store.Record(m); err != nil {
			o.logger.Error("failed to record measurement", map[string]interface{}{
				"label": m.Label,
				"kind":  string(m.Kind),
				"error": err.Error(),
			})
		}
	}
}

func (o *Observer) drop(m costime.Measurement, reason string) {
	o.dropped.Add(1)
	o.logger.Warn("dropped measurement", map[string]interface{}{
		"label":  m.Label,
		"kind":   string(m.Kind),
		"reason": reason,
	})
}
