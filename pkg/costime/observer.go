package costime

import "time"

// Kind is the operation that produced a Measurement
type Kind string

const (
	KindStart Kind = "start"
	KindEnd   Kind = "end"
	KindStep  Kind = "step"
)

// Measurement is what observers receive for every stopwatch operation.
// Elapsed is zero for KindStart.
type Measurement struct {
	Tag       string        `json:"tag"`
	Label     string        `json:"label"`
	Kind      Kind          `json:"kind"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ElapsedMillis returns Elapsed in whole milliseconds
func (m Measurement) ElapsedMillis() int64 {
	return m.Elapsed.Milliseconds()
}

// Observer is notified after each stopwatch line is emitted. Observers run
// on the caller's goroutine and must not block.
type Observer interface {
	Observe(m Measurement)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(m Measurement)

// Observe calls f(m)
func (f ObserverFunc) Observe(m Measurement) {
	f(m)
}
