package costime

import "sync/atomic"

var defaultStopwatch atomic.Pointer[Stopwatch]

func init() {
	defaultStopwatch.Store(New())
}

// Default returns the process-wide Stopwatch used by the package functions
func Default() *Stopwatch {
	return defaultStopwatch.Load()
}

// SetDefault replaces the process-wide Stopwatch. The new instance starts
// with its own step cursor.
func SetDefault(s *Stopwatch) {
	defaultStopwatch.Store(s)
}

// Start calls Start on the default Stopwatch
func Start(label string) Session {
	return Default().Start(label)
}

// End calls End on the default Stopwatch
func End(label string, session Session) {
	Default().End(label, session)
}

// MainStepStart calls MainStepStart on the default Stopwatch
func MainStepStart() {
	Default().MainStepStart()
}

// MainStep calls MainStep on the default Stopwatch
func MainStep(label string) {
	Default().MainStep(label)
}
