package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/psantana5/costime/pkg/report"
	"github.com/psantana5/costime/pkg/store"
)

var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize recorded measurements",
	Long:  `Aggregates the SQLite or PostgreSQL history per tag, label and kind: count, total, mean, min and max in milliseconds.`,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "table", "output format: table, json or yaml")
}

func runReport(cmd *cobra.Command, args []string) error {
	storeCfg := cfg.History.StoreConfig()
	if !storeCfg.Persistent() {
		return errors.New("no history database configured (set --history, history.path or history.dsn)")
	}

	s, err := store.NewStore(storeCfg)
	if err != nil {
		return err
	}
	defer s.Close()

	sums, err := s.Summaries()
	if err != nil {
		return err
	}
	return report.Render(cmd.OutOrStdout(), sums, reportOutput)
}
