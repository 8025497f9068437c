// Package preupgrade implements "rtx pre-upgrade": evaluate a proposed
// version bump for one dependency before it lands, by diffing the trust
// Report it would produce against the Report the project's current
// baseline produces.
package preupgrade

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/afadesigns/rtx/internal/config"
	"github.com/afadesigns/rtx/internal/depset"
	"github.com/afadesigns/rtx/internal/metrics"
	"github.com/afadesigns/rtx/internal/orchestrator"
	"github.com/afadesigns/rtx/internal/trust"
	"github.com/afadesigns/rtx/internal/wiring"
)

func NewCmd() *cobra.Command {
	options := struct {
		configPath string
		deadline   time.Duration
	}{
		deadline: 5 * time.Minute,
	}

	cmd := &cobra.Command{
		Use:   "pre-upgrade <project root> <ecosystem>/<name>@<version>",
		Short: "Evaluate a proposed dependency version bump before it lands",
		Example: heredoc.Doc(`
			$ rtx pre-upgrade . npm/left-pad@2.0.0
		`),
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			target, err := parseTarget(args[1])
			if err != nil {
				return errors.Wrap(err, "pre-upgrade: parse target")
			}
			return runPreUpgrade(args[0], options.configPath, options.deadline, target)
		},
	}

	cmd.Flags().StringVarP(&options.configPath, "config", "c", "", "rtx config file path")
	cmd.Flags().DurationVarP(&options.deadline, "deadline", "d", options.deadline, "per-run deadline (0 disables)")

	return cmd
}

// parseTarget reads "<ecosystem>/<name>@<version>", e.g. "npm/left-pad@2.0.0".
func parseTarget(spec string) (orchestrator.UpgradeTarget, error) {
	ecosystem, rest, ok := strings.Cut(spec, "/")
	if !ok {
		return orchestrator.UpgradeTarget{}, errors.Errorf("pre-upgrade: expected <ecosystem>/<name>@<version>, got %q", spec)
	}
	at := strings.LastIndex(rest, "@")
	if at <= 0 {
		return orchestrator.UpgradeTarget{}, errors.Errorf("pre-upgrade: expected <ecosystem>/<name>@<version>, got %q", spec)
	}
	name, version := rest[:at], rest[at+1:]
	return orchestrator.UpgradeTarget{Ecosystem: ecosystem, Name: name, Version: version}, nil
}

func runPreUpgrade(root, configPath string, deadline time.Duration, target orchestrator.UpgradeTarget) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "pre-upgrade: load config")
	}

	reg := metrics.New(prometheus.NewRegistry())

	pipeline, err := wiring.Build(cfg, reg)
	if err != nil {
		return errors.Wrap(err, "pre-upgrade: build pipeline")
	}
	defer func() { _ = pipeline.Close() }()

	baselineSet, err := scanWorkingSet(pipeline, root)
	if err != nil {
		return errors.Wrap(err, "pre-upgrade: gather dependencies")
	}

	result := pipeline.Orchestrator.RunPreUpgrade(context.Background(), deadline, baselineSet, target)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return errors.Wrap(err, "pre-upgrade: encode report")
	}

	os.Exit(result.ExitCode)
	return nil
}

// scanWorkingSet mirrors pkg/cmd/scan's: run every registered scanner and
// merge what they find. Kept as its own copy rather than an exported
// helper in pkg/cmd/scan, since a command package importing a sibling
// command package is the wrong direction for cobra's tree.
func scanWorkingSet(pipeline *wiring.Pipeline, root string) ([]trust.Dependency, error) {
	batches := make([][]trust.Dependency, 0, len(pipeline.Scanners))
	for _, scanner := range pipeline.Scanners {
		deps, err := scanner.Scan(root)
		if err != nil {
			return nil, errors.Wrapf(err, "pre-upgrade: %s", scanner.Ecosystem())
		}
		batches = append(batches, deps)
	}
	return depset.Build(batches...), nil
}
