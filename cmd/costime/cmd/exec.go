package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/psantana5/costime/internal/app"
	"github.com/psantana5/costime/internal/runner"
	"github.com/psantana5/costime/pkg/costime"
	"github.com/psantana5/costime/pkg/logging"
)

var (
	execLabel      string
	execSteps      []string
	execMetricsOut string
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command> [args...]",
	Short: "Time an external command",
	Long: `Runs a command between a start and an end mark. Each --step is marked the
first time a line of the command's output contains it, measured from the
previous step (or from launch).

Example:
  costime exec --label transcode --step "Stream mapping" --step "video:" -- ffmpeg -i in.mp4 out.mp4
  costime exec --format extractor --metrics-out run.prom -- ./transcode.sh`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().StringVar(&execLabel, "label", "", "label for the start/end pair (default: command name)")
	execCmd.Flags().StringArrayVar(&execSteps, "step", nil, "output substring that marks a step (repeatable)")
	execCmd.Flags().StringVar(&execMetricsOut, "metrics-out", "", "write Prometheus text metrics to this file after the run")
}

func runExec(cmd *cobra.Command, args []string) error {
	logger, err := cfg.NewLogger("exec")
	if err != nil {
		return err
	}
	defer logger.Close()

	runID := uuid.NewString()
	a, err := app.New(cfg, logger, costime.WithSink(logger.WithField("run_id", runID)))
	if err != nil {
		return err
	}
	defer closeApp(a, logger)
	costime.SetDefault(a.Stopwatch)

	label := execLabel
	if label == "" {
		label = filepath.Base(args[0])
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, a.Stopwatch, runner.Options{
		Label:  label,
		Steps:  execSteps,
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	}, args[0], args[1:]...)
	if err != nil {
		return err
	}

	if execMetricsOut != "" {
		if err := writeMetrics(a, execMetricsOut); err != nil {
			return err
		}
	}

	if res.ExitCode != 0 {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

// closeApp drains history and flushes the tracer; failures are logged
func closeApp(a *app.App, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		logger.Error("failed to close", map[string]interface{}{"error": err.Error()})
	}
}

func writeMetrics(a *app.App, path string) error {
	if a.Metrics == nil {
		return fmt.Errorf("--metrics-out requires metrics.enabled")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return a.Metrics.WriteText(f)
}
