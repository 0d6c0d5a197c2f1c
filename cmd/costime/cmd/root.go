package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/costime/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "costime",
	Short: "Stopwatch logging for media pipelines",
	Long: `costime measures wall-clock time between start/end marks and between
successive steps, and writes every measurement to the log, Prometheus metrics,
OpenTelemetry spans and an optional SQLite history.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// ExitError carries a child process exit code up to main
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.costime/config.yaml)")
	flags.String("format", "", "log line preset: core or extractor")
	flags.String("tag", "", "log tag for stopwatch lines")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "write JSON log lines")
	flags.String("history", "", "SQLite history database path")
}

// loadConfig merges file, environment and flags; flags win
func loadConfig(cmd *cobra.Command, args []string) error {
	v := viper.New()
	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"format":       "format",
		"tag":          "tag",
		"log.level":    "log-level",
		"log.json":     "log-json",
		"history.path": "history",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}

	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}
