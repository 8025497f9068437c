package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afadesigns/rtx/internal/advisory"
	"github.com/afadesigns/rtx/internal/policy/compromised"
	"github.com/afadesigns/rtx/internal/signal"
	"github.com/afadesigns/rtx/internal/trust"
)

type fakeAdvisoryProvider struct {
	name string
	data map[trust.Key][]trust.Advisory
	err  error
}

func (f fakeAdvisoryProvider) Name() string { return f.name }

func (f fakeAdvisoryProvider) Fetch(_ context.Context, deps []trust.Dependency) (map[trust.Key]advisory.ProviderResult, error) {
	out := make(map[trust.Key]advisory.ProviderResult, len(deps))
	if f.err != nil {
		for _, dep := range deps {
			out[dep.Key()] = advisory.ProviderResult{Unavailable: true}
		}
		return out, f.err
	}
	for _, dep := range deps {
		out[dep.Key()] = advisory.ProviderResult{Advisories: f.data[dep.Key()]}
	}
	return out, nil
}

type fakeMetadataFetcher struct {
	byKey map[trust.Key]trust.ReleaseMetadata
}

func (f fakeMetadataFetcher) FetchOne(_ context.Context, dep trust.Dependency) trust.ReleaseMetadata {
	meta, ok := f.byKey[dep.Key()]
	if !ok {
		return trust.ReleaseMetadata{Ecosystem: dep.Ecosystem, Unknown: true}
	}
	return meta
}

func fixedClock() time.Time {
	return time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
}

func TestRunProducesSafeVerdictWhenNoSignalsFire(t *testing.T) {
	deps := []trust.Dependency{{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}}
	meta := trust.ReleaseMetadata{TotalReleases: 10, MaintainerCount: 3}

	o := New(Config{
		Metadata: fakeMetadataFetcher{byKey: map[trust.Key]trust.ReleaseMetadata{deps[0].Key(): meta}},
		Clock:    fixedClock,
	})
	report := o.Run(context.Background(), 0, deps)

	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, trust.SeverityNone, report.Verdicts[0].Verdict.Severity)
	assert.Equal(t, 0, report.ExitCode)
}

func TestRunMergesAdvisoriesAcrossProvidersIntoVerdict(t *testing.T) {
	dep := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}
	deps := []trust.Dependency{dep}

	providerA := fakeAdvisoryProvider{
		name: "osv.dev",
		data: map[trust.Key][]trust.Advisory{
			dep.Key(): {{ID: "OSV-1", Source: "osv.dev", Severity: trust.SeverityHigh}},
		},
	}
	providerB := fakeAdvisoryProvider{
		name: "github",
		data: map[trust.Key][]trust.Advisory{
			dep.Key(): {{ID: "GHSA-1", Source: "github", Severity: trust.SeverityCritical}},
		},
	}

	o := New(Config{
		AdvisoryProviders: []advisory.Provider{providerA, providerB},
		Metadata:          fakeMetadataFetcher{byKey: map[trust.Key]trust.ReleaseMetadata{dep.Key(): {TotalReleases: 10, MaintainerCount: 5}}},
		Clock:             fixedClock,
	})
	report := o.Run(context.Background(), 0, deps)

	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, trust.SeverityCritical, report.Verdicts[0].Verdict.Severity)
	require.Len(t, report.Sources, 2)
	assert.Equal(t, trust.SourceOK, report.Sources[0].Status)
}

func TestRunMarksProviderDegradedOnFetchError(t *testing.T) {
	dep := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}
	deps := []trust.Dependency{dep}

	failing := fakeAdvisoryProvider{name: "osv.dev", err: assertError{}}

	o := New(Config{
		AdvisoryProviders: []advisory.Provider{failing},
		Metadata:          fakeMetadataFetcher{byKey: map[trust.Key]trust.ReleaseMetadata{dep.Key(): {TotalReleases: 10, MaintainerCount: 5}}},
		Clock:             fixedClock,
	})
	report := o.Run(context.Background(), 0, deps)

	require.Len(t, report.Sources, 1)
	assert.Equal(t, trust.SourceDegraded, report.Sources[0].Status)

	require.Len(t, report.Verdicts, 1)
	reasons := report.Verdicts[0].Verdict.Reasons
	found := false
	for _, r := range reasons {
		if r.Category == trust.ReasonUnavailable {
			found = true
		}
	}
	assert.True(t, found, "expected a source_unavailable reason on the dependency whose only advisory source failed, got %+v", reasons)
}

func TestRunReportsUnknownMetadataAsUnreadyWithoutFatalError(t *testing.T) {
	dep := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}
	deps := []trust.Dependency{dep}

	o := New(Config{Metadata: fakeMetadataFetcher{byKey: map[trust.Key]trust.ReleaseMetadata{}}, Clock: fixedClock})
	report := o.Run(context.Background(), 0, deps)

	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, trust.SeverityNone, report.Verdicts[0].Verdict.Severity)
}

func TestRunSortsVerdictsBySeverityThenEcosystemThenNameThenVersion(t *testing.T) {
	high := trust.Dependency{Ecosystem: "npm", Name: "b", Version: "1.0.0"}
	low := trust.Dependency{Ecosystem: "npm", Name: "a", Version: "1.0.0"}
	deps := []trust.Dependency{low, high}

	byKey := map[trust.Key]trust.ReleaseMetadata{
		high.Key(): {TotalReleases: 1, MaintainerCount: 0},
		low.Key():  {TotalReleases: 10, MaintainerCount: 5},
	}

	o := New(Config{Metadata: fakeMetadataFetcher{byKey: byKey}, Clock: fixedClock})
	report := o.Run(context.Background(), 0, deps)

	require.Len(t, report.Verdicts, 2)
	assert.Equal(t, "b", report.Verdicts[0].Dependency.Name)
	assert.Equal(t, "a", report.Verdicts[1].Dependency.Name)
}

func TestRunPreUpgradeEvaluatesBaselineAndProposedVersions(t *testing.T) {
	dep := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "1.0.0"}
	deps := []trust.Dependency{dep}

	byKey := map[trust.Key]trust.ReleaseMetadata{
		{Ecosystem: "npm", Name: "left-pad", Version: "1.0.0"}: {TotalReleases: 10, MaintainerCount: 5},
		{Ecosystem: "npm", Name: "left-pad", Version: "2.0.0"}: {TotalReleases: 10, MaintainerCount: 5},
	}

	o := New(Config{Metadata: fakeMetadataFetcher{byKey: byKey}, Clock: fixedClock})
	result := o.RunPreUpgrade(context.Background(), 0, deps, UpgradeTarget{Ecosystem: "npm", Name: "left-pad", Version: "2.0.0"})

	require.Len(t, result.Proposed.Verdicts, 1)
	assert.Equal(t, "2.0.0", result.Proposed.Verdicts[0].Dependency.Version)
	assert.Equal(t, "1.0.0", result.Baseline.Verdicts[0].Dependency.Version)
	assert.Equal(t, result.ExitCode, maxInt(result.Baseline.ExitCode, result.Proposed.ExitCode))
}

func TestDefaultThresholdsAreAppliedWhenUnset(t *testing.T) {
	o := New(Config{})
	assert.Equal(t, signal.DefaultThresholds, o.cfg.Thresholds)
	assert.Equal(t, int64(16), o.cfg.GlobalConcurrency)
}

func TestRunStampsEveryReportWithAGeneratedRunID(t *testing.T) {
	deps := []trust.Dependency{{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}}
	o := New(Config{Clock: fixedClock})

	first := o.Run(context.Background(), 0, deps)
	second := o.Run(context.Background(), 0, deps)

	assert.NotEmpty(t, first.RunID)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunUsesOverriddenRunIDGenerator(t *testing.T) {
	deps := []trust.Dependency{{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}}
	o := New(Config{Clock: fixedClock, NewRunID: func() string { return "fixed-run-id" }})

	report := o.Run(context.Background(), 0, deps)
	assert.Equal(t, "fixed-run-id", report.RunID)
}

type fakeRecorder struct {
	providerCalls []string
	runObserved   bool
}

func (r *fakeRecorder) ObserveProviderCall(provider string, _ error, _ time.Duration) {
	r.providerCalls = append(r.providerCalls, provider)
}

func (r *fakeRecorder) ObserveRun(time.Duration, map[string]int) {
	r.runObserved = true
}

func TestRunNotifiesRecorderOfProviderCallsAndRunDuration(t *testing.T) {
	dep := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}
	rec := &fakeRecorder{}

	o := New(Config{
		AdvisoryProviders: []advisory.Provider{fakeAdvisoryProvider{name: "osv", data: map[trust.Key][]trust.Advisory{}}},
		Metadata:          fakeMetadataFetcher{byKey: map[trust.Key]trust.ReleaseMetadata{dep.Key(): {TotalReleases: 10, MaintainerCount: 3}}},
		Clock:             fixedClock,
		Metrics:           rec,
	})
	_ = o.Run(context.Background(), 0, []trust.Dependency{dep})

	assert.Equal(t, []string{"osv"}, rec.providerCalls)
	assert.True(t, rec.runObserved)
}

func TestCompromisedLookupContributesCriticalSeverity(t *testing.T) {
	idx, err := compromised.Load("")
	require.NoError(t, err)

	dep := trust.Dependency{Ecosystem: "npm", Name: "event-stream", Version: "3.3.6"}
	deps := []trust.Dependency{dep}

	o := New(Config{
		Metadata:    fakeMetadataFetcher{byKey: map[trust.Key]trust.ReleaseMetadata{dep.Key(): {TotalReleases: 10, MaintainerCount: 5}}},
		Compromised: idx,
		Clock:       fixedClock,
	})
	report := o.Run(context.Background(), 0, deps)

	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, trust.SeverityCritical, report.Verdicts[0].Verdict.Severity)
}

type assertError struct{}

func (assertError) Error() string { return "provider failure" }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
