// Package popular embeds a small per-ecosystem corpus of well-known
// package names and relative popularity scores, used by the Signal
// Deriver's typosquat check (spec §4.5) as the comparison set a new or
// unfamiliar name is measured against. The corpus can be overridden by
// pointing Config.OverridePath at an equivalent on-disk JSON file (spec
// §9 Open Question: typosquat corpus source).
package popular

import (
	"embed"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/afadesigns/rtx/internal/trust"
)

//go:embed data/*.json
var embedded embed.FS

// Load returns the popular-name corpus for ecosystem, reading from
// overridePath when set, otherwise from the embedded default.
func Load(ecosystem, overridePath string) ([]trust.PopularCandidate, error) {
	ecosystem = strings.ToLower(ecosystem)

	var raw []byte
	var err error
	if overridePath != "" {
		raw, err = os.ReadFile(overridePath)
		if err != nil {
			return nil, errors.Wrapf(err, "read override corpus %s", overridePath)
		}
	} else {
		raw, err = embedded.ReadFile("data/" + ecosystem + ".json")
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, errors.Wrapf(err, "read embedded corpus for %s", ecosystem)
		}
	}

	var entries []trust.PopularCandidate
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrapf(err, "decode corpus for %s", ecosystem)
	}
	return entries, nil
}
