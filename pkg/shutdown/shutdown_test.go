package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/costime/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.ERROR+1, false)
}

func TestHooksRunInReverseOrder(t *testing.T) {
	m := New(time.Second, quietLogger())

	var order []string
	m.Register("store", func(context.Context) error { order = append(order, "store"); return nil })
	m.Register("tracer", func(context.Context) error { order = append(order, "tracer"); return nil })
	m.Register("http", func(context.Context) error { order = append(order, "http"); return nil })

	require.NoError(t, m.Shutdown())
	assert.Equal(t, []string{"http", "tracer", "store"}, order)
}

func TestShutdownRunsOnce(t *testing.T) {
	m := New(time.Second, quietLogger())

	calls := 0
	m.Register("count", func(context.Context) error { calls++; return nil })

	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Shutdown())
	assert.Equal(t, 1, calls)
}

func TestHookErrorsAreJoined(t *testing.T) {
	m := New(time.Second, quietLogger())
	errFlush := errors.New("flush failed")

	ran := false
	m.Register("after", func(context.Context) error { ran = true; return nil })
	m.Register("tracer", func(context.Context) error { return errFlush })

	err := m.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, errFlush)
	assert.Contains(t, err.Error(), "tracer")
	assert.True(t, ran, "later hooks still run after a failure")
}

func TestHooksSeeDeadline(t *testing.T) {
	m := New(50*time.Millisecond, quietLogger())

	var hasDeadline bool
	m.Register("deadline", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})

	require.NoError(t, m.Shutdown())
	assert.True(t, hasDeadline)
}

func TestWaitReturnsOnContextCancel(t *testing.T) {
	m := New(time.Second, quietLogger())

	done := false
	m.Register("done", func(context.Context) error { done = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Wait(ctx))

	assert.True(t, done)
}
