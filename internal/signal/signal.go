// Package signal implements the Signal Deriver (spec §4.5): a pure
// function turning one dependency's advisories and release metadata into
// a TrustSignal. No network calls, no shared state, grounded on
// original_source/src/rtx/policy.py's _derive_signals rule shape,
// adapted to the spec's boolean-flag schema.
package signal

import (
	"time"

	"github.com/afadesigns/rtx/internal/semver"
	"github.com/afadesigns/rtx/internal/trust"
	"github.com/afadesigns/rtx/internal/typosquat"
)

// Thresholds configures every derivation rule (spec §4.5: "all
// thresholds configurable, defaults in parentheses").
type Thresholds struct {
	AbandonmentDays      int
	ChurnHighThreshold   int
	ChurnMediumThreshold int
	BusFactorZero        int
	BusFactorOne         int
	LowMaturityReleases  int
	TyposquatMaxDistance int
}

// DefaultThresholds matches spec §4.5's defaults exactly.
var DefaultThresholds = Thresholds{
	AbandonmentDays:      540,
	ChurnHighThreshold:   10,
	ChurnMediumThreshold: 5,
	BusFactorZero:        0,
	BusFactorOne:         1,
	LowMaturityReleases:  3,
	TyposquatMaxDistance: 2,
}

// Derive is the pure TrustSignal computation. now is passed explicitly so
// the function stays deterministic and testable. compromised reports
// whether the dependency's (ecosystem, name) pair appears in the curated
// compromised-maintainers dataset (internal/policy/compromised); it is
// looked up by the caller so this function stays free of I/O.
func Derive(now time.Time, dep trust.Dependency, advisories []trust.Advisory, meta trust.ReleaseMetadata, thresholds Thresholds, compromised bool) trust.TrustSignal {
	var sig trust.TrustSignal
	sig.Compromised = compromised

	if !meta.Unknown {
		days := meta.DaysSince(now)
		sig.DaysSinceRelease = days
		sig.ReleasesLast30d = meta.ReleasesLast30d
		sig.MaintainerCount = meta.MaintainerCount
		sig.TotalReleases = meta.TotalReleases

		if meta.LatestRelease != nil && days >= thresholds.AbandonmentDays {
			sig.Abandoned = true
		}
		if meta.ReleasesLast30d >= thresholds.ChurnHighThreshold {
			sig.HighChurn = true
		} else if meta.ReleasesLast30d >= thresholds.ChurnMediumThreshold {
			sig.MediumChurn = true
		}
		if meta.MaintainerCount <= thresholds.BusFactorZero {
			sig.BusFactorZero = true
		} else if meta.MaintainerCount <= thresholds.BusFactorOne {
			sig.BusFactorOne = true
		}
		if meta.TotalReleases < thresholds.LowMaturityReleases {
			sig.LowMaturity = true
		}
		if meta.Deprecated {
			sig.Yanked = true
		}

		if match, ok := typosquat.Find(dep.NormalizedName(), selfPopularity(meta, dep), candidatesOf(meta), thresholds.TyposquatMaxDistance); ok {
			sig.Typosquat = true
			sig.TyposquatTarget = match.Target
		}
	}

	maxSeverity := trust.SeverityNone
	for _, advisory := range advisories {
		if advisory.Withdrawn {
			continue
		}
		if advisory.Yanked {
			sig.Yanked = true
		}
		affected, err := advisoryAffects(dep.Ecosystem, advisory, dep.Version)
		if err != nil || !affected {
			continue
		}
		sig.HasKnownVuln = true
		sig.Advisories = append(sig.Advisories, advisory)
		maxSeverity = trust.Max(maxSeverity, advisory.Severity)
	}
	sig.MaxVulnSeverity = maxSeverity

	return sig
}

// advisoryAffects reports whether version falls within any of advisory's
// ranges. An advisory with no ranges at all is treated as affecting every
// version (OSV convention for "no precise range published").
func advisoryAffects(ecosystem string, advisory trust.Advisory, version string) (bool, error) {
	if len(advisory.Ranges) == 0 {
		return true, nil
	}
	for _, r := range advisory.Ranges {
		in, err := semver.Contains(ecosystem, r, version)
		if err != nil {
			continue
		}
		if in {
			return true, nil
		}
	}
	return false, nil
}

func selfPopularity(meta trust.ReleaseMetadata, dep trust.Dependency) int64 {
	for _, c := range meta.PopularCandidates {
		if c.Name == dep.NormalizedName() {
			return c.Popularity
		}
	}
	return 0
}

func candidatesOf(meta trust.ReleaseMetadata) []typosquat.Candidate {
	out := make([]typosquat.Candidate, 0, len(meta.PopularCandidates))
	for _, c := range meta.PopularCandidates {
		out = append(out, typosquat.Candidate{Name: c.Name, Popularity: c.Popularity})
	}
	return out
}
