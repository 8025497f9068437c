// Package scan implements "rtx scan": build the project's dependency
// working set with every scanio.Scanner rtx ships, then run it through
// the Orchestrator and print the resulting trust.Report.
package scan

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/afadesigns/rtx/internal/config"
	"github.com/afadesigns/rtx/internal/depset"
	"github.com/afadesigns/rtx/internal/historydb"
	"github.com/afadesigns/rtx/internal/metrics"
	"github.com/afadesigns/rtx/internal/trust"
	"github.com/afadesigns/rtx/internal/wiring"
	"github.com/afadesigns/rtx/pkg/cmd/util/flag"
)

func NewCmd() *cobra.Command {
	options := struct {
		configPath   string
		deadline     time.Duration
		historyDSN   string
		historyDrv   string
		cacheBackend flag.CacheBackend
		cachePath    string
	}{
		deadline:   5 * time.Minute,
		historyDrv: "sqlite",
	}

	cmd := &cobra.Command{
		Use:   "scan <project root>",
		Short: "Evaluate the supply-chain trust of a project's dependencies",
		Example: heredoc.Doc(`
			$ rtx scan .
			$ rtx scan --config rtx.toml ./services/api
			$ rtx scan --history-dsn history.db .
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(options.configPath)
			if err != nil {
				return errors.Wrap(err, "scan: load config")
			}
			if cmd.Flags().Changed("cache-backend") {
				cfg.CacheBackend = options.cacheBackend.String()
			}
			if cmd.Flags().Changed("cache-path") {
				cfg.CachePath = options.cachePath
			}
			return runScan(cfg, args[0], options.deadline, historydb.Config{Driver: options.historyDrv, DSN: options.historyDSN})
		},
	}

	cmd.Flags().StringVarP(&options.configPath, "config", "c", "", "rtx config file path")
	cmd.Flags().DurationVarP(&options.deadline, "deadline", "d", options.deadline, "per-run deadline (0 disables)")
	cmd.Flags().StringVar(&options.historyDSN, "history-dsn", "", "persist this run to a history store at this DSN/path (empty disables persistence)")
	cmd.Flags().StringVar(&options.historyDrv, "history-driver", options.historyDrv, "history store driver: sqlite, mysql, or postgres")
	cmd.Flags().Var(&options.cacheBackend, "cache-backend", "override the configured cache backend")
	_ = cmd.RegisterFlagCompletionFunc("cache-backend", flag.CacheBackendCompletion)
	cmd.Flags().StringVar(&options.cachePath, "cache-path", "", "override the configured cache path")

	return cmd
}

func runScan(cfg config.Config, root string, deadline time.Duration, historyCfg historydb.Config) error {
	reg := metrics.New(prometheus.NewRegistry())

	pipeline, err := wiring.Build(cfg, reg)
	if err != nil {
		return errors.Wrap(err, "scan: build pipeline")
	}
	defer func() { _ = pipeline.Close() }()

	workingSet, err := scanWorkingSet(pipeline, root)
	if err != nil {
		return errors.Wrap(err, "scan: gather dependencies")
	}

	report := pipeline.Orchestrator.Run(context.Background(), deadline, workingSet)

	if historyCfg.DSN != "" {
		if err := persistReport(historyCfg, report); err != nil {
			return errors.Wrap(err, "scan: persist history")
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "scan: encode report")
	}

	os.Exit(report.ExitCode)
	return nil
}

func persistReport(cfg historydb.Config, report trust.Report) error {
	store, err := historydb.Open(cfg)
	if err != nil {
		return errors.Wrap(err, "open history store")
	}
	defer func() { _ = store.Close() }()
	return errors.Wrap(store.SaveReport(report), "save report")
}

// scanWorkingSet runs every scanner the pipeline registered against root
// and merges their output with depset.Build. A scanner whose recognized
// manifests are absent under root returns an empty slice rather than an
// error (scanio.Scanner's contract), so every scanner always runs; there
// is no separate manifest-presence check to keep in sync with each
// scanner's own Manifests() list.
func scanWorkingSet(pipeline *wiring.Pipeline, root string) ([]trust.Dependency, error) {
	batches := make([][]trust.Dependency, 0, len(pipeline.Scanners))
	for _, scanner := range pipeline.Scanners {
		deps, err := scanner.Scan(root)
		if err != nil {
			return nil, errors.Wrapf(err, "scan: %s", scanner.Ecosystem())
		}
		batches = append(batches, deps)
	}
	return depset.Build(batches...), nil
}
