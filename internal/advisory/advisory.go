// Package advisory fans a dependency set out to every configured
// vulnerability source and merges their results (spec §4.2). Each
// Provider is independent and network-bound; Merge applies the
// dedup-by-(source,id) and take-highest-severity rule that advisory.py's
// AdvisoryClient.fetch_advisories applies in the original implementation.
package advisory

import (
	"context"
	"sort"

	"github.com/afadesigns/rtx/internal/trust"
)

// Provider fetches advisories for a batch of dependencies. Implementations
// must return a partial map (best effort) even on a non-nil error so
// callers can still use whatever was resolved before the failure: every
// dependency the provider could not resolve, whether due to a batch-wide
// error or a failure scoped to that one dependency, must still get an
// entry with Unavailable set rather than being silently omitted (spec
// §4.2: "mark a dependency as 'unavailable from this source' rather than
// omitting it").
type Provider interface {
	Name() string
	Fetch(ctx context.Context, deps []trust.Dependency) (map[trust.Key]ProviderResult, error)
}

// ProviderResult is one dependency's outcome from a single provider.
// Unavailable distinguishes "queried, found nothing" (Advisories is an
// empty, non-nil slice) from "never actually resolved" (spec §8 scenario
// 5: a timed-out source must not be indistinguishable from a clean one).
type ProviderResult struct {
	Advisories  []trust.Advisory
	Unavailable bool
}

// Result is one provider's outcome, paired with its SourceOutcome for the
// final report (spec §4.7: every source's health is always recorded).
type Result struct {
	Provider string
	Data     map[trust.Key]ProviderResult
	Outcome  trust.SourceOutcome
}

// Merge combines advisories from multiple providers per dependency key,
// deduplicating on (Source, ID) and keeping the highest-severity variant
// for any duplicate. It also returns the set of dependency keys that at
// least one provider marked Unavailable, regardless of whether another
// provider did resolve advisories for the same key.
func Merge(results ...map[trust.Key]ProviderResult) (map[trust.Key][]trust.Advisory, map[trust.Key]bool) {
	type dedupKey struct {
		source string
		id     string
	}

	merged := make(map[trust.Key]map[dedupKey]trust.Advisory)
	unavailable := make(map[trust.Key]bool)
	for _, result := range results {
		for key, pr := range result {
			if pr.Unavailable {
				unavailable[key] = true
			}
			bucket, ok := merged[key]
			if !ok {
				bucket = make(map[dedupKey]trust.Advisory)
				merged[key] = bucket
			}
			for _, advisory := range pr.Advisories {
				dk := dedupKey{source: advisory.Source, id: advisory.ID}
				existing, seen := bucket[dk]
				if !seen || advisory.Severity > existing.Severity {
					bucket[dk] = advisory
				}
			}
		}
	}

	out := make(map[trust.Key][]trust.Advisory, len(merged))
	for key, bucket := range merged {
		list := make([]trust.Advisory, 0, len(bucket))
		for _, advisory := range bucket {
			list = append(list, advisory)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Severity != list[j].Severity {
				return list[i].Severity > list[j].Severity
			}
			if list[i].Source != list[j].Source {
				return list[i].Source < list[j].Source
			}
			return list[i].ID < list[j].ID
		})
		out[key] = list
	}
	return out, unavailable
}
