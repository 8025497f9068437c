// Package policy implements the Policy Engine (spec §4.6): a pure
// function mapping a TrustSignal to a Verdict via a fixed
// severity-contribution table. No network calls, no shared state.
package policy

import (
	"sort"

	"github.com/afadesigns/rtx/internal/trust"
)

// contribution pairs a reason category with the severity it contributes
// when its signal has fired. Order here is irrelevant; Evaluate sorts
// reasons before returning them.
type contribution struct {
	category ReasonCategory
	severity trust.Severity
	fired    func(trust.TrustSignal) bool
}

type ReasonCategory = trust.ReasonCategory

// table is the fixed severity-contribution table from spec §4.6. The
// has_known_vuln contribution does not appear here: its severity is the
// signal's own MaxVulnSeverity, not a fixed constant, and is handled
// separately in Evaluate.
var table = []contribution{
	{trust.ReasonYanked, trust.SeverityHigh, func(s trust.TrustSignal) bool { return s.Yanked }},
	{trust.ReasonTyposquat, trust.SeverityHigh, func(s trust.TrustSignal) bool { return s.Typosquat }},
	{trust.ReasonAbandoned, trust.SeverityMedium, func(s trust.TrustSignal) bool { return s.Abandoned }},
	{trust.ReasonBusFactor0, trust.SeverityMedium, func(s trust.TrustSignal) bool { return s.BusFactorZero }},
	{trust.ReasonBusFactor1, trust.SeverityLow, func(s trust.TrustSignal) bool { return s.BusFactorOne && !s.BusFactorZero }},
	{trust.ReasonHighChurn, trust.SeverityMedium, func(s trust.TrustSignal) bool { return s.HighChurn }},
	{trust.ReasonMediumChurn, trust.SeverityLow, func(s trust.TrustSignal) bool { return s.MediumChurn && !s.HighChurn }},
	{trust.ReasonLowMaturity, trust.SeverityLow, func(s trust.TrustSignal) bool { return s.LowMaturity }},
	{trust.ReasonCompromised, trust.SeverityCritical, func(s trust.TrustSignal) bool { return s.Compromised }},
}

// Evaluate turns one dependency's TrustSignal into a Verdict. Severity is
// the max over every fired contribution; Reasons are the fired
// contributions sorted severity-desc then category-asc, stable. No fired
// reasons means safe.
func Evaluate(sig trust.TrustSignal) trust.Verdict {
	var reasons []trust.Reason

	if sig.HasKnownVuln {
		reasons = append(reasons, trust.Reason{
			Category: trust.ReasonKnownVuln,
			Severity: sig.MaxVulnSeverity,
		})
	}
	for _, c := range table {
		if c.fired(sig) {
			reasons = append(reasons, trust.Reason{Category: c.category, Severity: c.severity})
		}
	}

	sort.SliceStable(reasons, func(i, j int) bool {
		if reasons[i].Severity != reasons[j].Severity {
			return reasons[i].Severity > reasons[j].Severity
		}
		return reasons[i].Category < reasons[j].Category
	})

	verdict := trust.Verdict{Severity: trust.SeverityNone, Reasons: reasons}
	for _, r := range reasons {
		verdict.Severity = trust.Max(verdict.Severity, r.Severity)
	}
	for _, a := range sig.Advisories {
		verdict.ContributingAdvisoryIDs = append(verdict.ContributingAdvisoryIDs, a.ID)
	}
	return verdict
}
