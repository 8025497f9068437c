package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/afadesigns/rtx/internal/trust"
)

// UpgradeTarget names the single dependency a pre-upgrade check is
// evaluating a version bump for.
type UpgradeTarget struct {
	Ecosystem string
	Name      string
	Version   string
}

// PreUpgradeReport pairs the baseline and proposed Reports with the
// combined exit code (spec §4.7 "Pre-upgrade mode").
type PreUpgradeReport struct {
	Baseline trust.Report
	Proposed trust.Report
	ExitCode int
}

// RunPreUpgrade evaluates two synthetic working sets derived from
// baselineSet: the set as-is, and the same set with target's dependency
// replaced by its proposed version (same peers otherwise). It returns
// both Reports and an exit code equal to max(baseline, proposed).
func (o *Orchestrator) RunPreUpgrade(ctx context.Context, deadline time.Duration, baselineSet []trust.Dependency, target UpgradeTarget) PreUpgradeReport {
	proposedSet := withProposedVersion(baselineSet, target)

	baseline := o.Run(ctx, deadline, baselineSet)
	proposed := o.Run(ctx, deadline, proposedSet)

	exit := baseline.ExitCode
	if proposed.ExitCode > exit {
		exit = proposed.ExitCode
	}
	return PreUpgradeReport{Baseline: baseline, Proposed: proposed, ExitCode: exit}
}

// withProposedVersion returns a copy of baseline with target's matching
// (ecosystem, name) dependency's version swapped to target.Version. Every
// other dependency (the unchanged peer set) is carried over verbatim.
func withProposedVersion(baseline []trust.Dependency, target UpgradeTarget) []trust.Dependency {
	out := make([]trust.Dependency, len(baseline))
	copy(out, baseline)

	targetName := trust.NormalizeName(target.Ecosystem, target.Name)
	for i, dep := range out {
		if dep.Key().Ecosystem == strings.ToLower(target.Ecosystem) && dep.NormalizedName() == targetName {
			out[i].Version = target.Version
		}
	}
	return out
}
