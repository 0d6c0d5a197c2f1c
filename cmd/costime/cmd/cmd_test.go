package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/costime/internal/app"
	"github.com/psantana5/costime/pkg/logging"
	"github.com/psantana5/costime/pkg/store"
	"github.com/psantana5/costime/pkg/tracing"
)

// resetFlags restores scalar flags so state does not leak between tests
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() == "string" || f.Value.Type() == "bool" {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func quietConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"+extra), 0644))
	return path
}

func TestConfigShowMergesFlags(t *testing.T) {
	path := quietConfig(t, "format: extractor\n")

	out, err := execute(t, "config", "show", "-o", "json", "--config", path, "--tag", "Flagged")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Flagged", got["tag"])
	assert.Equal(t, "extractor", got["format"])
}

func TestConfigShowRedactsDSN(t *testing.T) {
	path := quietConfig(t, "history:\n  type: postgres\n  dsn: postgres://costime:s3cret@db/costime\n")

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "postgres://costime:xxxxx@db/costime")
}

func TestConfigShowRejectsBadFormatFlag(t *testing.T) {
	_, err := execute(t, "config", "show", "--config", quietConfig(t, ""), "--format", "verbose")
	assert.Error(t, err)
}

func TestExecThenReport(t *testing.T) {
	dir := t.TempDir()
	cfgPath := quietConfig(t, "")
	history := filepath.Join(dir, "history.db")
	prom := filepath.Join(dir, "run.prom")

	out, err := execute(t, "exec", "--config", cfgPath, "--history", history, "--metrics-out", prom,
		"--label", "transcode", "--", "sh", "-c", "echo transcoding")
	require.NoError(t, err)
	assert.Contains(t, out, "transcoding")

	metricsText, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), `costime_elapsed_seconds_count{kind="end",label="transcode",tag="CosTime"} 1`)

	out, err = execute(t, "report", "--config", cfgPath, "--history", history, "-o", "json")
	require.NoError(t, err)

	var rows []struct {
		Label string `json:"label"`
		Kind  string `json:"kind"`
		Count int64  `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "transcode", rows[0].Label)
	assert.Equal(t, "end", rows[0].Kind)
	assert.Equal(t, int64(1), rows[0].Count)
}

func TestExecPropagatesExitCode(t *testing.T) {
	_, err := execute(t, "exec", "--config", quietConfig(t, ""), "--", "sh", "-c", "exit 4")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 4, exitErr.Code)
}

func TestExecMapsSignalDeathToShellStatus(t *testing.T) {
	_, err := execute(t, "exec", "--config", quietConfig(t, ""), "--", "sh", "-c", "kill -TERM $$")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 128+int(syscall.SIGTERM), exitErr.Code)
}

type closeFailingStore struct{ *store.MemoryStore }

func (closeFailingStore) Close() error { return errors.New("disk full") }

func TestCloseAppLogsFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLogger(logging.INFO, false)
	logger.SetOutput(&logs)

	tp, err := tracing.NewProvider(context.Background(), tracing.Config{ServiceName: "costime"}, "test", logger)
	require.NoError(t, err)

	closeApp(&app.App{Logger: logger, Store: closeFailingStore{store.NewMemoryStore()}, Tracer: tp}, logger)

	assert.Contains(t, logs.String(), "failed to close")
	assert.Contains(t, logs.String(), "disk full")
}

func TestReportNeedsHistory(t *testing.T) {
	_, err := execute(t, "report", "--config", quietConfig(t, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history")
}
