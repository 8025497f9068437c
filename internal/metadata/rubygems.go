package metadata

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/afadesigns/rtx/internal/trust"
)

type rubygemsVersionEntry struct {
	CreatedAt string `json:"created_at"`
	BuiltAt   string `json:"built_at"`
}

type rubygemsGemDetail struct {
	Authors string `json:"authors"`
}

func fetchRubyGems(ctx context.Context, client *http.Client, dep trust.Dependency) (trust.ReleaseMetadata, error) {
	versionsURL := "https://rubygems.org/api/v1/versions/" + dep.Name + ".json"
	var entries []rubygemsVersionEntry
	notFound, err := getJSON(ctx, client, versionsURL, &entries)
	if err != nil {
		return trust.ReleaseMetadata{}, err
	}
	if notFound {
		return trust.ReleaseMetadata{Ecosystem: "rubygems"}, nil
	}

	now := time.Now().UTC()
	var timestamps []time.Time
	for _, e := range entries {
		raw := e.CreatedAt
		if raw == "" {
			raw = e.BuiltAt
		}
		if parsed := parseDate(raw); parsed != nil {
			timestamps = append(timestamps, *parsed)
		}
	}

	var detail rubygemsGemDetail
	detailURL := "https://rubygems.org/api/v1/gems/" + dep.Name + ".json"
	_, _ = getJSON(ctx, client, detailURL, &detail)
	var maintainers []string
	if detail.Authors != "" {
		maintainers = strings.Split(detail.Authors, ",")
	}

	return trust.ReleaseMetadata{
		Ecosystem:       "rubygems",
		LatestRelease:   latestOf(timestamps),
		ReleasesLast30d: countWithin30Days(timestamps, now),
		TotalReleases:   len(timestamps),
		MaintainerCount: len(uniqueNonEmpty(maintainers)),
	}, nil
}
