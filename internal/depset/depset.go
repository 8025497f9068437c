// Package depset builds the deduplicated, sorted working set of
// dependencies the rest of the trust evaluation pipeline operates on.
package depset

import (
	"slices"

	"github.com/afadesigns/rtx/internal/trust"
)

// Build merges dependency observations from any number of scanners into a
// stable, sorted vector. Collisions on (ecosystem, normalized_name,
// version) are merged by keeping the first-seen manifest path and
// union-ing the direct flag toward "direct if any source marks it direct"
// (spec §4.1).
func Build(batches ...[]trust.Dependency) []trust.Dependency {
	order := make([]trust.Key, 0)
	merged := make(map[trust.Key]trust.Dependency)

	for _, batch := range batches {
		for _, dep := range batch {
			key := dep.Key()
			existing, ok := merged[key]
			if !ok {
				merged[key] = dep
				order = append(order, key)
				continue
			}
			existing.Direct = existing.Direct || dep.Direct
			merged[key] = existing
		}
	}

	out := make([]trust.Dependency, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}

	slices.SortStableFunc(out, func(a, b trust.Dependency) int {
		if a.Ecosystem != b.Ecosystem {
			if a.Ecosystem < b.Ecosystem {
				return -1
			}
			return 1
		}
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		if a.Version == b.Version {
			return 0
		}
		if a.Version < b.Version {
			return -1
		}
		return 1
	})

	return out
}
