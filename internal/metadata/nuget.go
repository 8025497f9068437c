package metadata

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/afadesigns/rtx/internal/trust"
)

type nugetCatalogEntry struct {
	Published string `json:"published"`
	Authors   string `json:"authors"`
}

type nugetPageEntry struct {
	CatalogEntry nugetCatalogEntry `json:"catalogEntry"`
}

type nugetPage struct {
	Items []nugetPageEntry `json:"items"`
}

type nugetIndex struct {
	Items []nugetPage `json:"items"`
}

func fetchNuGet(ctx context.Context, client *http.Client, dep trust.Dependency) (trust.ReleaseMetadata, error) {
	packageID := strings.ToLower(dep.Name)
	url := "https://api.nuget.org/v3/registration5-semver1/" + packageID + "/index.json"
	var data nugetIndex
	notFound, err := getJSON(ctx, client, url, &data)
	if err != nil {
		return trust.ReleaseMetadata{}, err
	}
	if notFound {
		return trust.ReleaseMetadata{Ecosystem: "nuget"}, nil
	}

	now := time.Now().UTC()
	var timestamps []time.Time
	var maintainers []string
	for _, page := range data.Items {
		for _, entry := range page.Items {
			published := parseDate(entry.CatalogEntry.Published)
			if published == nil {
				continue
			}
			timestamps = append(timestamps, *published)
			if entry.CatalogEntry.Authors != "" {
				maintainers = append(maintainers, strings.Split(entry.CatalogEntry.Authors, ",")...)
			}
		}
	}

	return trust.ReleaseMetadata{
		Ecosystem:       "nuget",
		LatestRelease:   latestOf(timestamps),
		ReleasesLast30d: countWithin30Days(timestamps, now),
		TotalReleases:   len(timestamps),
		MaintainerCount: len(uniqueNonEmpty(maintainers)),
	}, nil
}
