// Package costime measures wall-clock time between start/end markers and
// between successive step markers, and writes each measurement to a log sink.
package costime

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/psantana5/costime/pkg/logging"
)

// DefaultTag is the sink tag used when none is configured
const DefaultTag = "CosTime"

// Sink receives one line per stopwatch operation
type Sink interface {
	Emit(level logging.Level, tag, message string)
}

// Session is the handle returned by Start: the start time in Unix millis.
type Session int64

// Time returns the session start as a time.Time
func (s Session) Time() time.Time {
	return time.UnixMilli(int64(s))
}

// Stopwatch emits elapsed-time lines. One Stopwatch owns one step cursor;
// share an instance between call sites that should measure steps together.
type Stopwatch struct {
	clock     clock.Clock
	sink      Sink
	tag       string
	format    Format
	observers []Observer

	mu     sync.Mutex
	cursor int64
}

// Option configures a Stopwatch
type Option func(*Stopwatch)

// WithClock sets the clock, mainly for tests
func WithClock(c clock.Clock) Option {
	return func(s *Stopwatch) {
		s.clock = c
	}
}

// WithSink sets where lines are written
func WithSink(sink Sink) Option {
	return func(s *Stopwatch) {
		s.sink = sink
	}
}

// WithTag sets the sink tag
func WithTag(tag string) Option {
	return func(s *Stopwatch) {
		s.tag = tag
	}
}

// WithFormat selects the start/end line format
func WithFormat(f Format) Option {
	return func(s *Stopwatch) {
		s.format = f
	}
}

// WithObserver adds observers notified after each line is emitted
func WithObserver(observers ...Observer) Option {
	return func(s *Stopwatch) {
		s.observers = append(s.observers, observers...)
	}
}

// New creates a Stopwatch. Without options it uses the system clock, the
// core format and an INFO text logger on stdout.
func New(opts ...Option) *Stopwatch {
	s := &Stopwatch{
		clock:  clock.New(),
		tag:    DefaultTag,
		format: FormatCore,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = logging.NewLogger(logging.INFO, false)
	}
	return s
}

// Tag returns the sink tag
func (s *Stopwatch) Tag() string {
	return s.tag
}

// Format returns the line format
func (s *Stopwatch) Format() Format {
	return s.format
}

// Start records the current time under label and returns it as a Session
func (s *Stopwatch) Start(label string) Session {
	now := s.clock.Now()
	startMillis := now.UnixMilli()

	s.sink.Emit(logging.INFO, s.tag, s.format.startMessage(label, startMillis))
	s.notify(Measurement{
		Tag:       s.tag,
		Label:     label,
		Kind:      KindStart,
		StartedAt: now,
		EndedAt:   now,
	})
	return Session(startMillis)
}

// End reports the time elapsed since session. Any session value is accepted;
// one not produced by Start yields a meaningless but harmless elapsed time.
func (s *Stopwatch) End(label string, session Session) {
	now := s.clock.Now()
	endMillis := now.UnixMilli()
	elapsedMillis := endMillis - int64(session)

	s.sink.Emit(logging.INFO, s.tag, s.format.endMessage(label, endMillis, elapsedMillis))
	s.notify(Measurement{
		Tag:       s.tag,
		Label:     label,
		Kind:      KindEnd,
		StartedAt: session.Time(),
		EndedAt:   now,
		Elapsed:   time.Duration(elapsedMillis) * time.Millisecond,
	})
}

// MainStepStart moves the step cursor to now
func (s *Stopwatch) MainStepStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = s.clock.Now().UnixMilli()
}

// MainStep reports the time since the previous step boundary and makes now
// the new boundary. Before the first MainStepStart the boundary is the Unix
// epoch, so the first interval is the full wall-clock value.
func (s *Stopwatch) MainStep(label string) {
	s.mu.Lock()
	now := s.clock.Now()
	curMillis := now.UnixMilli()
	prevMillis := s.cursor
	s.cursor = curMillis
	s.mu.Unlock()

	elapsedMillis := curMillis - prevMillis
	s.sink.Emit(logging.INFO, s.tag, s.format.stepMessage(label, elapsedMillis))
	s.notify(Measurement{
		Tag:       s.tag,
		Label:     label,
		Kind:      KindStep,
		StartedAt: time.UnixMilli(prevMillis),
		EndedAt:   now,
		Elapsed:   time.Duration(elapsedMillis) * time.Millisecond,
	})
}

// Cursor returns the current step boundary
func (s *Stopwatch) Cursor() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Session(s.cursor)
}

func (s *Stopwatch) notify(m Measurement) {
	for _, o := range s.observers {
		o.Observe(m)
	}
}
