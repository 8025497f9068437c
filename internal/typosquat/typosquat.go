// Package typosquat implements the edit-distance rule used to flag
// dependency names that are suspiciously close to a popular package.
package typosquat

import "strings"

// Levenshtein computes the edit distance between a and b, lowercased.
// When maxDistance is non-negative, the computation short-circuits and
// returns maxDistance+1 as soon as it can prove the true distance exceeds
// it, matching original_source/src/rtx/policy.py's bounded variant.
func Levenshtein(a, b string, maxDistance int) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 0
	}
	if a == "" {
		return boundedLen(len(b), maxDistance)
	}
	if b == "" {
		return boundedLen(len(a), maxDistance)
	}
	if maxDistance >= 0 {
		if diff := len(a) - len(b); diff > maxDistance || -diff > maxDistance {
			return maxDistance + 1
		}
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	for i := range prev {
		prev[i] = i
	}
	row := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		row[0] = i
		minInRow := row[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[j] = min3(row[j-1]+1, prev[j]+1, prev[j-1]+cost)
			if row[j] < minInRow {
				minInRow = row[j]
			}
		}
		if maxDistance >= 0 && minInRow > maxDistance {
			return maxDistance + 1
		}
		prev, row = row, prev
	}

	distance := prev[len(b)]
	if maxDistance >= 0 && distance > maxDistance {
		return maxDistance + 1
	}
	return distance
}

func boundedLen(n, maxDistance int) int {
	if maxDistance >= 0 && n > maxDistance {
		return maxDistance + 1
	}
	return n
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Candidate is a popular package name plus its relative popularity, used
// to break ties between equally-close matches (spec §4.5: "the candidate
// has strictly more downloads/popularity than self").
type Candidate struct {
	Name       string
	Popularity int64
}

// Match is a typosquat hit: the nearest popular candidate within the
// configured bound that also out-popularizes the dependency itself.
type Match struct {
	Target   string
	Distance int
}

// Find returns the closest typosquat match for name among candidates,
// or ok=false if none qualifies. Ties are broken by shorter candidate
// name (spec §4.3: "ties broken by shorter candidate").
func Find(name string, selfPopularity int64, candidates []Candidate, maxDistance int) (Match, bool) {
	normalized := strings.ToLower(name)
	best := Match{}
	found := false

	for _, c := range candidates {
		if strings.ToLower(c.Name) == normalized {
			continue
		}
		if c.Popularity <= selfPopularity {
			continue
		}
		distance := Levenshtein(normalized, c.Name, maxDistance)
		if distance > maxDistance {
			continue
		}
		if !found ||
			distance < best.Distance ||
			(distance == best.Distance && len(c.Name) < len(best.Target)) {
			best = Match{Target: c.Name, Distance: distance}
			found = true
		}
	}

	return best, found
}
