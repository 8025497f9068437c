package orchestrator

import (
	"context"
	"time"

	"github.com/afadesigns/rtx/internal/policy"
	"github.com/afadesigns/rtx/internal/signal"
	"github.com/afadesigns/rtx/internal/trust"
)

// join merges the per-provider advisory/metadata results gathered for the
// working set into per-dependency verdicts (spec §4.7 step 4: "a
// dependency is ready once all providers have either returned a result
// or marked themselves unavailable for it"). runCtx is only consulted to
// decide whether a missing metadata entry reflects a real unavailability
// versus a deadline cutting the run short. advisoryUnavailable names the
// dependencies at least one advisory provider could not resolve (spec §8
// scenario 5): those get their own source_unavailable reason so a
// dependency that was never actually checked can never read as quietly
// safe.
func (o *Orchestrator) join(runCtx context.Context, now time.Time, workingSet []trust.Dependency, advisoryResults map[trust.Key][]trust.Advisory, advisoryUnavailable map[trust.Key]bool, metadataResults map[trust.Key]trust.ReleaseMetadata) []trust.DependencyVerdict {
	verdicts := make([]trust.DependencyVerdict, 0, len(workingSet))
	for _, dep := range workingSet {
		key := dep.Key()
		advisories := advisoryResults[key]
		meta, ready := metadataResults[key]
		if !ready {
			meta = trust.ReleaseMetadata{Ecosystem: dep.Ecosystem, Unknown: true}
		}

		_, isCompromised := o.cfg.Compromised.Lookup(dep.Ecosystem, dep.NormalizedName())
		sig := signal.Derive(now, dep, advisories, meta, o.cfg.Thresholds, isCompromised)
		verdict := policy.Evaluate(sig)

		if !ready && runCtx.Err() != nil {
			verdict.Reasons = append(verdict.Reasons, trust.Reason{
				Category: trust.ReasonUnavailable,
				Severity: verdict.Severity,
				Detail:   "deadline exceeded before metadata became ready",
			})
		}

		if advisoryUnavailable[key] {
			verdict.Reasons = append(verdict.Reasons, trust.Reason{
				Category: trust.ReasonUnavailable,
				Severity: verdict.Severity,
				Detail:   "one or more advisory sources could not be queried for this dependency",
			})
		}

		verdicts = append(verdicts, trust.DependencyVerdict{Dependency: dep, Verdict: verdict})
	}
	return verdicts
}
