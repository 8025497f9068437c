package metadata

import (
	"context"
	"net/http"
	"time"

	"github.com/afadesigns/rtx/internal/trust"
)

type npmResponse struct {
	Time        map[string]string `json:"time"`
	Maintainers []struct {
		Name string `json:"name"`
	} `json:"maintainers"`
}

func fetchNPM(ctx context.Context, client *http.Client, dep trust.Dependency) (trust.ReleaseMetadata, error) {
	url := "https://registry.npmjs.org/" + dep.Name
	var data npmResponse
	notFound, err := getJSON(ctx, client, url, &data)
	if err != nil {
		return trust.ReleaseMetadata{}, err
	}
	if notFound {
		return trust.ReleaseMetadata{Ecosystem: "npm"}, nil
	}

	now := time.Now().UTC()
	var timestamps []time.Time
	for key, value := range data.Time {
		if key == "created" || key == "modified" {
			continue
		}
		if parsed := parseDate(value); parsed != nil {
			timestamps = append(timestamps, *parsed)
		}
	}

	maintainerNames := make([]string, 0, len(data.Maintainers))
	for _, m := range data.Maintainers {
		maintainerNames = append(maintainerNames, m.Name)
	}
	maintainers := uniqueNonEmpty(maintainerNames)

	return trust.ReleaseMetadata{
		Ecosystem:       "npm",
		LatestRelease:   latestOf(timestamps),
		ReleasesLast30d: countWithin30Days(timestamps, now),
		TotalReleases:   len(timestamps),
		MaintainerCount: len(maintainers),
	}, nil
}
