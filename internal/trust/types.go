// Package trust holds the data model shared by every stage of the trust
// evaluation pipeline: dependency observations in, verdicts and a report
// out. Types here are created once by their owning stage and never mutated
// afterward.
package trust

import (
	"strings"
	"time"
)

// Dependency is a single (ecosystem, name, version) observation pulled
// from a manifest by an external scanner.
type Dependency struct {
	Ecosystem    string `json:"ecosystem"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	ManifestPath string `json:"manifest_path"`
	Direct       bool   `json:"direct"`
}

// NormalizedName applies the ecosystem's case/separator folding rules so
// that lookups (dedup, cache keys, typosquat candidates) are stable.
func (d Dependency) NormalizedName() string {
	return NormalizeName(d.Ecosystem, d.Name)
}

// Coordinate is the human-readable identity used in logs and report keys.
func (d Dependency) Coordinate() string {
	return d.Ecosystem + ":" + d.Name + "@" + d.Version
}

// Key is the deduplication/lookup key: (ecosystem, normalized name, version).
type Key struct {
	Ecosystem string
	Name      string
	Version   string
}

// Key returns the Dependency's deduplication key.
func (d Dependency) Key() Key {
	return Key{Ecosystem: strings.ToLower(d.Ecosystem), Name: d.NormalizedName(), Version: d.Version}
}

// caseInsensitiveEcosystems registries whose package names are matched
// without regard to case.
var caseInsensitiveEcosystems = map[string]bool{
	"npm":       true,
	"pypi":      true,
	"nuget":     true,
	"packagist": false,
}

// foldSeparatorEcosystems registries that fold "-" and "_" together when
// resolving a name (PyPI normalizes per PEP 503).
var foldSeparatorEcosystems = map[string]bool{
	"pypi": true,
}

// NormalizeName applies per-ecosystem name normalization rules (spec
// §4.1): lowercase for case-insensitive registries, separator folding
// where the registry does it, otherwise preserved verbatim.
func NormalizeName(ecosystem, name string) string {
	out := name
	if caseInsensitiveEcosystems[strings.ToLower(ecosystem)] {
		out = strings.ToLower(out)
	}
	if foldSeparatorEcosystems[strings.ToLower(ecosystem)] {
		out = strings.NewReplacer("_", "-", ".", "-").Replace(out)
		for strings.Contains(out, "--") {
			out = strings.ReplaceAll(out, "--", "-")
		}
	}
	return out
}

// VersionRange is an affected-version range as declared by an advisory
// source, opaque to the core beyond the ecosystem-specific comparator in
// internal/semver.
type VersionRange struct {
	Introduced        string `json:"introduced,omitempty"`
	Fixed             string `json:"fixed,omitempty"`
	LastAffected      string `json:"last_affected,omitempty"`
	FixedInclusive    bool   `json:"-"`
	IntroducedInclusive bool `json:"-"`
}

// Advisory is a vulnerability record from an upstream source.
type Advisory struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Severity  Severity       `json:"severity"`
	Ranges    []VersionRange `json:"ranges,omitempty"`
	Withdrawn bool           `json:"withdrawn,omitempty"`
	Yanked    bool           `json:"yanked,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	CVSS      string         `json:"cvss,omitempty"`
}

// PopularCandidate is one entry in a typosquat corpus: a well-known
// package name plus a relative popularity score used as the tiebreaker.
type PopularCandidate struct {
	Name       string
	Popularity int64
}

// ReleaseMetadata is per-dependency registry metadata. Unknown is true
// when the fetch failed; in that state every scalar is its zero value and
// the Signal Deriver must not treat that as positive evidence.
type ReleaseMetadata struct {
	Ecosystem         string             `json:"ecosystem"`
	LatestRelease     *time.Time         `json:"latest_release,omitempty"`
	ReleasesLast30d   int                `json:"releases_last_30d"`
	TotalReleases     int                `json:"total_releases"`
	MaintainerCount   int                `json:"maintainer_count"`
	Deprecated        bool               `json:"deprecated"`
	CanonicalName     string             `json:"canonical_name,omitempty"`
	PopularCandidates []PopularCandidate `json:"-"`
	Unknown           bool               `json:"unknown"`
}

// DaysSince returns the age of the latest release in days, or -1 if unknown.
func (m ReleaseMetadata) DaysSince(now time.Time) int {
	if m.LatestRelease == nil {
		return -1
	}
	d := int(now.Sub(*m.LatestRelease).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// CacheKey content-addresses one provider fetch.
type CacheKey struct {
	Source    string
	Ecosystem string
	Name      string
	Version   string // empty means "version-independent" (wildcard)
}

// String renders a stable textual form used for hashing and log lines.
func (k CacheKey) String() string {
	v := k.Version
	if v == "" {
		v = "*"
	}
	return k.Source + "/" + k.Ecosystem + "/" + k.Name + "/" + v
}

// CacheEntry is the value stored by the Cache Layer.
type CacheEntry struct {
	Key       CacheKey  `json:"-"`
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is no longer valid at the given instant.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// TrustSignal is the Signal Deriver's pure output: boolean flags plus the
// scalars and advisories they were derived from.
type TrustSignal struct {
	Abandoned     bool `json:"abandoned"`
	HighChurn     bool `json:"high_churn"`
	MediumChurn   bool `json:"medium_churn"`
	BusFactorZero bool `json:"bus_factor_zero"`
	BusFactorOne  bool `json:"bus_factor_one"`
	LowMaturity   bool `json:"low_maturity"`
	Typosquat     bool `json:"typosquat"`
	Yanked        bool `json:"yanked"`
	HasKnownVuln  bool `json:"has_known_vuln"`
	Compromised   bool `json:"compromised"`

	TyposquatTarget   string   `json:"typosquat_target,omitempty"`
	MaxVulnSeverity   Severity `json:"max_vuln_severity"`
	DaysSinceRelease  int      `json:"days_since_release,omitempty"`
	ReleasesLast30d   int      `json:"releases_last_30d,omitempty"`
	MaintainerCount   int      `json:"maintainer_count,omitempty"`
	TotalReleases     int      `json:"total_releases,omitempty"`

	Advisories []Advisory `json:"advisories,omitempty"`
}

// ReasonCategory names one contributing policy reason.
type ReasonCategory string

const (
	ReasonKnownVuln    ReasonCategory = "has_known_vuln"
	ReasonYanked       ReasonCategory = "yanked"
	ReasonTyposquat    ReasonCategory = "typosquat"
	ReasonAbandoned    ReasonCategory = "abandoned"
	ReasonBusFactor0   ReasonCategory = "bus_factor_zero"
	ReasonBusFactor1   ReasonCategory = "bus_factor_one"
	ReasonHighChurn    ReasonCategory = "high_churn"
	ReasonMediumChurn  ReasonCategory = "medium_churn"
	ReasonLowMaturity  ReasonCategory = "low_maturity"
	ReasonCompromised  ReasonCategory = "compromised"
	ReasonUnavailable  ReasonCategory = "source_unavailable"
)

// Reason is one entry in a Verdict's ordered reason list.
type Reason struct {
	Category ReasonCategory `json:"category"`
	Severity Severity       `json:"severity"`
	Detail   string         `json:"detail,omitempty"`
}

// Verdict is the Policy Engine's output for one dependency.
type Verdict struct {
	Severity                Severity `json:"severity"`
	Reasons                 []Reason `json:"reasons"`
	ContributingAdvisoryIDs []string `json:"contributing_advisory_ids,omitempty"`
}

// SourceStatus is the per-provider outcome recorded on a Report.
type SourceStatus string

const (
	SourceOK       SourceStatus = "ok"
	SourceDegraded SourceStatus = "degraded"
	SourceDisabled SourceStatus = "disabled"
)

// SourceOutcome records one provider's fate across the run.
type SourceOutcome struct {
	Name   string       `json:"name"`
	Status SourceStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// DependencyVerdict pairs a Dependency with its Verdict for report ordering.
type DependencyVerdict struct {
	Dependency Dependency `json:"dependency"`
	Verdict    Verdict    `json:"verdict"`
}

// Summary holds the aggregate counts attached to a Report.
type Summary struct {
	Total    int            `json:"total"`
	ByResult map[string]int `json:"by_severity"`
}

// Report is the ordered collection of verdicts plus run metadata.
type Report struct {
	SchemaVersion int                 `json:"schema_version"`
	RunID         string              `json:"run_id"`
	GeneratedAt   time.Time           `json:"generated_at"`
	Verdicts      []DependencyVerdict `json:"verdicts"`
	Sources       []SourceOutcome     `json:"sources"`
	Summary       Summary             `json:"summary"`
	ExitCode      int                 `json:"exit_code"`
}
