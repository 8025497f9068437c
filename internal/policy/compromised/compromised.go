// Package compromised loads the curated list of packages with a known
// history of maintainer account compromise or malicious takeover,
// grounded on original_source/src/rtx/policy.py's compromised_maintainers
// dataset (TrustPolicyEngine.__init__ / _derive_signals).
package compromised

import (
	"embed"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

//go:embed data/compromised_maintainers.json
var embedded embed.FS

// Entry is one compromised-package record.
type Entry struct {
	Ecosystem string `json:"ecosystem"`
	Package   string `json:"package"`
	Reference string `json:"reference"`
}

// Index is a fast (ecosystem, package) lookup over the loaded entries.
type Index struct {
	byKey map[string]Entry
}

func key(ecosystem, pkg string) string {
	return strings.ToLower(ecosystem) + "/" + strings.ToLower(pkg)
}

// Lookup reports whether (ecosystem, name) is a known-compromised
// package, returning its reference note when found.
func (idx Index) Lookup(ecosystem, name string) (Entry, bool) {
	e, ok := idx.byKey[key(ecosystem, name)]
	return e, ok
}

// Load reads the compromised-maintainers dataset. overridePath takes
// precedence over the embedded default when non-empty.
func Load(overridePath string) (Index, error) {
	var raw []byte
	var err error
	if overridePath != "" {
		raw, err = os.ReadFile(overridePath)
	} else {
		raw, err = embedded.ReadFile("data/compromised_maintainers.json")
	}
	if err != nil {
		return Index{}, errors.Wrap(err, "compromised: read dataset")
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Index{}, errors.Wrap(err, "compromised: decode dataset")
	}

	idx := Index{byKey: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Ecosystem == "" || e.Package == "" {
			continue
		}
		idx.byKey[key(e.Ecosystem, e.Package)] = e
	}
	return idx, nil
}
