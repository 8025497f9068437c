// Package orchestrator drives the trust evaluation pipeline end to end
// (spec §4.7): fan out to advisory and metadata providers under bounded
// concurrency, merge per-dependency results, invoke the Signal Deriver
// and Policy Engine, and assemble the final Report. Grounded on the
// teacher's pkg/detect/detect.go top-level shape (open backing stores,
// iterate targets, build a result, encode), generalized from a single
// vulnerability database lookup to a multi-source fan-out pipeline.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/afadesigns/rtx/internal/advisory"
	"github.com/afadesigns/rtx/internal/policy/compromised"
	"github.com/afadesigns/rtx/internal/signal"
	"github.com/afadesigns/rtx/internal/trust"
)

// MetadataFetcher resolves release metadata for one dependency at a
// time; *metadata.Provider satisfies this via its exported FetchOne.
type MetadataFetcher interface {
	FetchOne(ctx context.Context, dep trust.Dependency) trust.ReleaseMetadata
}

// Recorder receives the Orchestrator's own observability events;
// *metrics.Registry satisfies it. Kept as a minimal local interface
// (rather than importing internal/metrics directly) so the pipeline
// package has no dependency on Prometheus.
type Recorder interface {
	ObserveProviderCall(provider string, err error, elapsed time.Duration)
	ObserveRun(elapsed time.Duration, severityCounts map[string]int)
}

// Config wires the Orchestrator to its providers and policy inputs.
type Config struct {
	AdvisoryProviders []advisory.Provider
	Metadata          MetadataFetcher
	Compromised       compromised.Index
	Thresholds        signal.Thresholds

	// GlobalConcurrency bounds total in-flight provider calls across
	// every source (spec §4.7 step 3). Default 16.
	GlobalConcurrency int64

	// Clock supplies "now" for age-based signal derivation; defaults to
	// time.Now. Overridable for deterministic tests.
	Clock func() time.Time

	// NewRunID generates the Report.RunID stamped on every run; defaults
	// to uuid.NewString. Overridable for deterministic tests.
	NewRunID func() string

	// Metrics, if set, records per-provider call outcomes and overall
	// run duration. Nil disables instrumentation entirely.
	Metrics Recorder
}

// Orchestrator runs the pipeline for a fixed set of wired providers.
type Orchestrator struct {
	cfg Config
}

// New constructs an Orchestrator, filling in defaults.
func New(cfg Config) *Orchestrator {
	if cfg.GlobalConcurrency <= 0 {
		cfg.GlobalConcurrency = 16
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Thresholds == (signal.Thresholds{}) {
		cfg.Thresholds = signal.DefaultThresholds
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = func() string { return uuid.NewString() }
	}
	return &Orchestrator{cfg: cfg}
}

// Run executes the full pipeline against workingSet and returns the
// assembled Report. deadline, if positive, bounds the whole run; on
// expiry, in-flight work is cancelled cooperatively and any dependency
// that never became "ready" is reported with a source_unavailable
// reason instead of aborting the run (spec §4.7 "Timeout and
// cancellation").
func (o *Orchestrator) Run(ctx context.Context, deadline time.Duration, workingSet []trust.Dependency) trust.Report {
	start := time.Now()
	runCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	sem := semaphore.NewWeighted(o.cfg.GlobalConcurrency)

	advisoryResults, unavailable, sources := o.fetchAdvisories(runCtx, sem, workingSet)
	metadataResults := o.fetchMetadata(runCtx, sem, workingSet)

	now := o.cfg.Clock()
	verdicts := o.join(runCtx, now, workingSet, advisoryResults, unavailable, metadataResults)
	sortVerdicts(verdicts)

	summary := summarize(verdicts)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.ObserveRun(time.Since(start), summary.ByResult)
	}

	return trust.Report{
		SchemaVersion: 1,
		RunID:         o.cfg.NewRunID(),
		GeneratedAt:   now,
		Verdicts:      verdicts,
		Sources:       sources,
		Summary:       summary,
		ExitCode:      exitCode(verdicts),
	}
}

// fetchAdvisories dispatches every configured provider against the full
// working set concurrently, merging their results with
// internal/advisory.Merge and recording one SourceOutcome per provider.
// Besides the merged advisories, it returns the set of dependency keys at
// least one provider could not resolve (spec §4.2/§8 scenario 5:
// "dependency annotated source_unavailable=true for that source"),
// regardless of whether the provider failed outright or only partially.
func (o *Orchestrator) fetchAdvisories(ctx context.Context, sem *semaphore.Weighted, deps []trust.Dependency) (map[trust.Key][]trust.Advisory, map[trust.Key]bool, []trust.SourceOutcome) {
	if len(o.cfg.AdvisoryProviders) == 0 {
		return map[trust.Key][]trust.Advisory{}, nil, nil
	}

	perProvider := make([]map[trust.Key]advisory.ProviderResult, len(o.cfg.AdvisoryProviders))
	outcomes := make([]trust.SourceOutcome, len(o.cfg.AdvisoryProviders))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, provider := range o.cfg.AdvisoryProviders {
		i, provider := i, provider
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				outcomes[i] = trust.SourceOutcome{Name: provider.Name(), Status: trust.SourceDegraded, Detail: err.Error()}
				perProvider[i] = allUnavailable(deps)
				return nil
			}
			defer sem.Release(1)

			callStart := time.Now()
			data, err := provider.Fetch(ctx, deps)
			if o.cfg.Metrics != nil {
				o.cfg.Metrics.ObserveProviderCall(provider.Name(), err, time.Since(callStart))
			}
			if err != nil {
				slog.Warn("advisory provider degraded", "provider", provider.Name(), "error", err)
				outcomes[i] = trust.SourceOutcome{Name: provider.Name(), Status: trust.SourceDegraded, Detail: err.Error()}
				perProvider[i] = fillUnavailable(data, deps)
				return nil
			}
			perProvider[i] = data
			outcomes[i] = trust.SourceOutcome{Name: provider.Name(), Status: trust.SourceOK}
			return nil
		})
	}
	_ = group.Wait()

	nonNil := make([]map[trust.Key]advisory.ProviderResult, 0, len(perProvider))
	for _, m := range perProvider {
		if m != nil {
			nonNil = append(nonNil, m)
		}
	}
	merged, unavailable := advisory.Merge(nonNil...)
	return merged, unavailable, outcomes
}

// allUnavailable marks every dependency unavailable for a provider that
// never ran at all (e.g. the global concurrency semaphore couldn't be
// acquired before the run's context gave up).
func allUnavailable(deps []trust.Dependency) map[trust.Key]advisory.ProviderResult {
	return fillUnavailable(nil, deps)
}

// fillUnavailable fills in an Unavailable entry for every dependency data
// doesn't already cover, so a provider's own partial result is preserved
// and only the gaps it left are marked missing.
func fillUnavailable(data map[trust.Key]advisory.ProviderResult, deps []trust.Dependency) map[trust.Key]advisory.ProviderResult {
	if data == nil {
		data = make(map[trust.Key]advisory.ProviderResult, len(deps))
	}
	for _, dep := range deps {
		if _, ok := data[dep.Key()]; !ok {
			data[dep.Key()] = advisory.ProviderResult{Unavailable: true}
		}
	}
	return data
}

// fetchMetadata dispatches one metadata lookup per dependency, bounded by
// the shared global semaphore (metadata providers have no batch
// operation of their own — spec §4.3: "may issue one request per
// dependency... but share the global concurrency limiter").
func (o *Orchestrator) fetchMetadata(ctx context.Context, sem *semaphore.Weighted, deps []trust.Dependency) map[trust.Key]trust.ReleaseMetadata {
	out := make(map[trust.Key]trust.ReleaseMetadata, len(deps))
	if o.cfg.Metadata == nil {
		return out
	}

	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	for _, dep := range deps {
		dep := dep
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			meta := o.cfg.Metadata.FetchOne(ctx, dep)

			mu.Lock()
			out[dep.Key()] = meta
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return out
}

func sortVerdicts(verdicts []trust.DependencyVerdict) {
	sort.SliceStable(verdicts, func(i, j int) bool {
		a, b := verdicts[i], verdicts[j]
		if a.Verdict.Severity != b.Verdict.Severity {
			return a.Verdict.Severity > b.Verdict.Severity
		}
		if a.Dependency.Ecosystem != b.Dependency.Ecosystem {
			return a.Dependency.Ecosystem < b.Dependency.Ecosystem
		}
		if a.Dependency.Name != b.Dependency.Name {
			return a.Dependency.Name < b.Dependency.Name
		}
		return a.Dependency.Version < b.Dependency.Version
	})
}

func summarize(verdicts []trust.DependencyVerdict) trust.Summary {
	summary := trust.Summary{Total: len(verdicts), ByResult: make(map[string]int)}
	for _, v := range verdicts {
		summary.ByResult[v.Verdict.Severity.String()]++
	}
	return summary
}

func exitCode(verdicts []trust.DependencyVerdict) int {
	code := 0
	for _, v := range verdicts {
		if c := v.Verdict.Severity.ExitCode(); c > code {
			code = c
		}
	}
	return code
}
