// Package report implements "rtx report": render previously persisted
// orchestrator runs from historydb, rather than re-scanning a project.
// rtx scan/pre-upgrade already print a fresh Report as JSON on every
// invocation; this command only exists to look back at what
// --history-dsn already recorded.
package report

import (
	"encoding/json"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/afadesigns/rtx/internal/historydb"
)

func NewCmdReport() *cobra.Command {
	options := struct {
		driver    string
		dsn       string
		ecosystem string
		name      string
		limit     int
	}{
		driver: "sqlite",
		limit:  10,
	}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render previously recorded rtx runs from --history-dsn",
		Example: heredoc.Doc(`
			$ rtx report --history-dsn history.db
			$ rtx report --history-dsn history.db --ecosystem npm --name left-pad
		`),
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runReport(historydb.Config{Driver: options.driver, DSN: options.dsn}, options.ecosystem, options.name, options.limit)
		},
	}

	cmd.Flags().StringVar(&options.driver, "history-driver", options.driver, "history store driver: sqlite, mysql, or postgres")
	cmd.Flags().StringVar(&options.dsn, "history-dsn", "", "history store DSN/path")
	cmd.Flags().StringVar(&options.ecosystem, "ecosystem", "", "show history for one dependency's ecosystem")
	cmd.Flags().StringVar(&options.name, "name", "", "show history for one dependency's name")
	cmd.Flags().IntVar(&options.limit, "limit", options.limit, "number of recent runs to list when no dependency is given")

	return cmd
}

func runReport(cfg historydb.Config, ecosystem, name string, limit int) error {
	if cfg.DSN == "" {
		return errors.New("report: --history-dsn is required")
	}

	store, err := historydb.Open(cfg)
	if err != nil {
		return errors.Wrap(err, "report: open history store")
	}
	defer func() { _ = store.Close() }()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if ecosystem != "" && name != "" {
		rows, err := store.HistoryForDependency(ecosystem, name)
		if err != nil {
			return errors.Wrap(err, "report: query dependency history")
		}
		return errors.Wrap(enc.Encode(rows), "report: encode dependency history")
	}

	runs, err := store.RecentRuns(limit)
	if err != nil {
		return errors.Wrap(err, "report: query recent runs")
	}
	return errors.Wrap(enc.Encode(runs), "report: encode recent runs")
}
