// Package cvss derives a trust.Severity from a CVSS vector string using
// pandatix/go-cvss. It reports ok=false when the vector cannot be parsed;
// the textual-label fallback of advisory.py's _severity_from_osv chain
// (numeric score first, then database_specific.severity label) is applied
// by the caller, osv.severityFromVuln, not by this package.
package cvss

import (
	"strings"

	gocvss20 "github.com/pandatix/go-cvss/20"
	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"

	"github.com/afadesigns/rtx/internal/trust"
)

// Score parses vector and returns its base score, or false if vector is
// empty or unparseable.
func Score(vector string) (float64, bool) {
	vector = strings.TrimSpace(vector)
	if vector == "" {
		return 0, false
	}

	switch {
	case strings.HasPrefix(vector, "CVSS:4.0"):
		v, err := gocvss40.ParseVector(vector)
		if err != nil {
			return 0, false
		}
		return v.Score(), true
	case strings.HasPrefix(vector, "CVSS:3.1"):
		v, err := gocvss31.ParseVector(vector)
		if err != nil {
			return 0, false
		}
		return v.BaseScore(), true
	case strings.HasPrefix(vector, "CVSS:3.0"):
		v, err := gocvss30.ParseVector(vector)
		if err != nil {
			return 0, false
		}
		return v.BaseScore(), true
	default:
		v, err := gocvss20.ParseVector(vector)
		if err != nil {
			return 0, false
		}
		return v.BaseScore(), true
	}
}

// SeverityFromScore maps a CVSS base score to a trust.Severity using the
// standard CVSS v3 qualitative rating bands.
func SeverityFromScore(score float64) trust.Severity {
	switch {
	case score >= 9.0:
		return trust.SeverityCritical
	case score >= 7.0:
		return trust.SeverityHigh
	case score >= 4.0:
		return trust.SeverityMedium
	case score > 0:
		return trust.SeverityLow
	default:
		return trust.SeverityNone
	}
}

// SeverityFromVector is a convenience wrapper combining Score and
// SeverityFromScore; ok is false when vector could not be parsed.
func SeverityFromVector(vector string) (trust.Severity, bool) {
	score, ok := Score(vector)
	if !ok {
		return trust.SeverityNone, false
	}
	return SeverityFromScore(score), true
}
