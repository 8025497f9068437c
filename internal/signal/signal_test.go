package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/afadesigns/rtx/internal/trust"
)

var fixedNow = time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

func TestDeriveFlagsAbandonedWhenLatestReleaseOlderThanThreshold(t *testing.T) {
	old := fixedNow.AddDate(0, 0, -600)
	meta := trust.ReleaseMetadata{LatestRelease: &old, MaintainerCount: 5, TotalReleases: 40}
	sig := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "left-pad"}, nil, meta, DefaultThresholds, false)
	assert.True(t, sig.Abandoned)
}

func TestDeriveDoesNotFlagAbandonedWhenMetadataUnknown(t *testing.T) {
	meta := trust.ReleaseMetadata{Unknown: true}
	sig := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "left-pad"}, nil, meta, DefaultThresholds, false)
	assert.False(t, sig.Abandoned)
	assert.False(t, sig.HighChurn)
	assert.False(t, sig.BusFactorZero)
	assert.False(t, sig.LowMaturity)
}

func TestDeriveChurnThresholdsAreMutuallyExclusive(t *testing.T) {
	high := trust.ReleaseMetadata{ReleasesLast30d: 12, MaintainerCount: 3, TotalReleases: 20}
	sig := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "x"}, nil, high, DefaultThresholds, false)
	assert.True(t, sig.HighChurn)
	assert.False(t, sig.MediumChurn)

	medium := trust.ReleaseMetadata{ReleasesLast30d: 6, MaintainerCount: 3, TotalReleases: 20}
	sig2 := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "x"}, nil, medium, DefaultThresholds, false)
	assert.False(t, sig2.HighChurn)
	assert.True(t, sig2.MediumChurn)
}

func TestDeriveBusFactorThresholdsAreMutuallyExclusive(t *testing.T) {
	zero := trust.ReleaseMetadata{MaintainerCount: 0, TotalReleases: 20}
	sig := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "x"}, nil, zero, DefaultThresholds, false)
	assert.True(t, sig.BusFactorZero)
	assert.False(t, sig.BusFactorOne)

	one := trust.ReleaseMetadata{MaintainerCount: 1, TotalReleases: 20}
	sig2 := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "x"}, nil, one, DefaultThresholds, false)
	assert.False(t, sig2.BusFactorZero)
	assert.True(t, sig2.BusFactorOne)
}

func TestDeriveLowMaturityWhenTotalReleasesBelowThreshold(t *testing.T) {
	meta := trust.ReleaseMetadata{TotalReleases: 2, MaintainerCount: 5}
	sig := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "x"}, nil, meta, DefaultThresholds, false)
	assert.True(t, sig.LowMaturity)
}

func TestDeriveTyposquatRequiresHigherPopularityCandidate(t *testing.T) {
	meta := trust.ReleaseMetadata{
		TotalReleases:   10,
		MaintainerCount: 5,
		PopularCandidates: []trust.PopularCandidate{
			{Name: "reqeusts", Popularity: 100},
			{Name: "requests", Popularity: 48000000},
		},
	}
	sig := Derive(fixedNow, trust.Dependency{Ecosystem: "pypi", Name: "reqeusts"}, nil, meta, DefaultThresholds, false)
	assert.True(t, sig.Typosquat)
	assert.Equal(t, "requests", sig.TyposquatTarget)
}

func TestDeriveHasKnownVulnOnlyForNonWithdrawnAffectingAdvisory(t *testing.T) {
	meta := trust.ReleaseMetadata{TotalReleases: 10, MaintainerCount: 5}
	advisories := []trust.Advisory{
		{ID: "A-1", Source: "osv.dev", Severity: trust.SeverityHigh, Withdrawn: true},
		{ID: "A-2", Source: "osv.dev", Severity: trust.SeverityCritical},
	}
	sig := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "x", Version: "1.0.0"}, advisories, meta, DefaultThresholds, false)
	assert.True(t, sig.HasKnownVuln)
	assert.Equal(t, trust.SeverityCritical, sig.MaxVulnSeverity)
	assert.Len(t, sig.Advisories, 1)
	assert.Equal(t, "A-2", sig.Advisories[0].ID)
}

func TestDeriveRespectsVersionRangeWhenPresent(t *testing.T) {
	meta := trust.ReleaseMetadata{TotalReleases: 10, MaintainerCount: 5}
	advisories := []trust.Advisory{
		{ID: "A-1", Source: "osv.dev", Severity: trust.SeverityHigh, Ranges: []trust.VersionRange{{Fixed: "2.0.0"}}},
	}
	affected := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "x", Version: "1.0.0"}, advisories, meta, DefaultThresholds, false)
	assert.True(t, affected.HasKnownVuln)

	safe := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "x", Version: "2.0.0"}, advisories, meta, DefaultThresholds, false)
	assert.False(t, safe.HasKnownVuln)
}

func TestDerivePropagatesCompromisedFlagVerbatim(t *testing.T) {
	meta := trust.ReleaseMetadata{TotalReleases: 10, MaintainerCount: 5}
	sig := Derive(fixedNow, trust.Dependency{Ecosystem: "npm", Name: "event-stream"}, nil, meta, DefaultThresholds, true)
	assert.True(t, sig.Compromised)
}
