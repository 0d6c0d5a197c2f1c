package metrics

import "github.com/psantana5/costime/pkg/logging"

type discardSink struct{}

func (discardSink) Emit(logging.Level, string, string) {}
