package metadata

import (
	"context"
	"net/http"
	"time"

	"github.com/afadesigns/rtx/internal/trust"
)

type cratesResponse struct {
	Crate struct {
		UpdatedAt string `json:"updated_at"`
	} `json:"crate"`
	Versions []struct {
		CreatedAt string `json:"created_at"`
	} `json:"versions"`
	Teams []struct {
		Login string `json:"login"`
	} `json:"teams"`
}

func fetchCrates(ctx context.Context, client *http.Client, dep trust.Dependency) (trust.ReleaseMetadata, error) {
	url := "https://crates.io/api/v1/crates/" + dep.Name
	var data cratesResponse
	notFound, err := getJSON(ctx, client, url, &data)
	if err != nil {
		return trust.ReleaseMetadata{}, err
	}
	if notFound {
		return trust.ReleaseMetadata{Ecosystem: "crates"}, nil
	}

	now := time.Now().UTC()
	var timestamps []time.Time
	for _, v := range data.Versions {
		if parsed := parseDate(v.CreatedAt); parsed != nil {
			timestamps = append(timestamps, *parsed)
		}
	}
	latest := latestOf(timestamps)
	if latest == nil {
		latest = parseDate(data.Crate.UpdatedAt)
	}

	teamNames := make([]string, 0, len(data.Teams))
	for _, t := range data.Teams {
		teamNames = append(teamNames, t.Login)
	}

	return trust.ReleaseMetadata{
		Ecosystem:       "crates",
		LatestRelease:   latest,
		ReleasesLast30d: countWithin30Days(timestamps, now),
		TotalReleases:   len(data.Versions),
		MaintainerCount: len(uniqueNonEmpty(teamNames)),
	}, nil
}
