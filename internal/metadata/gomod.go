package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/afadesigns/rtx/internal/trust"
)

// fetchGoProxy queries the Go module proxy's version list plus the last
// 10 versions' @v/<version>.info for release timestamps, matching
// _fetch_gomod's "most recent 10" sampling in original_source.
func fetchGoProxy(ctx context.Context, client *http.Client, dep trust.Dependency) (trust.ReleaseMetadata, error) {
	module := strings.ToLower(dep.Name)
	listURL := "https://proxy.golang.org/" + module + "/@v/list"

	notFound, body, err := getText(ctx, client, listURL)
	if err != nil {
		return trust.ReleaseMetadata{}, err
	}
	if notFound {
		return trust.ReleaseMetadata{Ecosystem: "go"}, nil
	}

	var versions []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			versions = append(versions, line)
		}
	}

	sample := versions
	if len(sample) > 10 {
		sample = sample[len(sample)-10:]
	}

	now := time.Now().UTC()
	var timestamps []time.Time
	for _, version := range sample {
		infoURL := "https://proxy.golang.org/" + module + "/@v/" + version + ".info"
		notFound, infoBody, err := getText(ctx, client, infoURL)
		if err != nil || notFound {
			continue
		}
		var info struct {
			Time string `json:"Time"`
		}
		if err := json.Unmarshal([]byte(infoBody), &info); err != nil {
			continue
		}
		if parsed := parseDate(info.Time); parsed != nil {
			timestamps = append(timestamps, *parsed)
		}
	}

	return trust.ReleaseMetadata{
		Ecosystem:       "go",
		LatestRelease:   latestOf(timestamps),
		ReleasesLast30d: countWithin30Days(timestamps, now),
		TotalReleases:   len(versions),
	}, nil
}
