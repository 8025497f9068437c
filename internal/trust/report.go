package trust

import "sort"

// SortVerdicts applies the report's total order: severity desc, ecosystem
// asc, name asc, version asc (spec §4.7.6). Stable so reasons attached
// within a single verdict keep their derivation order on ties.
func SortVerdicts(verdicts []DependencyVerdict) {
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

// SortReasons orders a Verdict's reasons by severity desc then category asc,
// matching the Policy Engine's determinism requirement (spec §4.6).
func SortReasons(reasons []Reason) {
	sort.SliceStable(reasons, func(i, j int) bool {
		if reasons[i].Severity != reasons[j].Severity {
			return reasons[i].Severity > reasons[j].Severity
		}
		return reasons[i].Category < reasons[j].Category
	})
}

// BuildSummary computes the aggregate counts attached to a Report.
func BuildSummary(verdicts []DependencyVerdict) Summary {
	counts := map[string]int{
		SeverityNone.String():     0,
		SeverityLow.String():      0,
		SeverityMedium.String():   0,
		SeverityHigh.String():     0,
		SeverityCritical.String(): 0,
	}
	for _, v := range verdicts {
		counts[v.Verdict.Severity.String()]++
	}
	return Summary{Total: len(verdicts), ByResult: counts}
}

// HighestSeverity returns the most severe verdict in the set, or
// SeverityNone for an empty set.
func HighestSeverity(verdicts []DependencyVerdict) Severity {
	highest := SeverityNone
	for _, v := range verdicts {
		highest = Max(highest, v.Verdict.Severity)
	}
	return highest
}
