package metadata

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/afadesigns/rtx/internal/trust"
)

type packagistAuthor struct {
	Name     string `json:"name"`
	Homepage string `json:"homepage"`
}

type packagistVersion struct {
	Time    string            `json:"time"`
	Authors []packagistAuthor `json:"authors"`
}

type packagistResponse struct {
	Package struct {
		Versions map[string]packagistVersion `json:"versions"`
	} `json:"package"`
}

func fetchPackagist(ctx context.Context, client *http.Client, dep trust.Dependency) (trust.ReleaseMetadata, error) {
	vendor, pkg, ok := strings.Cut(dep.Name, "/")
	if !ok {
		return trust.ReleaseMetadata{Ecosystem: "packagist"}, nil
	}

	url := "https://repo.packagist.org/packages/" + vendor + "/" + pkg + ".json"
	var data packagistResponse
	notFound, err := getJSON(ctx, client, url, &data)
	if err != nil {
		return trust.ReleaseMetadata{}, err
	}
	if notFound {
		return trust.ReleaseMetadata{Ecosystem: "packagist"}, nil
	}

	now := time.Now().UTC()
	var timestamps []time.Time
	var maintainers []string
	for _, v := range data.Package.Versions {
		if published := parseDate(v.Time); published != nil {
			timestamps = append(timestamps, *published)
		}
		for _, a := range v.Authors {
			name := a.Name
			if name == "" {
				name = a.Homepage
			}
			if name != "" {
				maintainers = append(maintainers, name)
			}
		}
	}

	return trust.ReleaseMetadata{
		Ecosystem:       "packagist",
		LatestRelease:   latestOf(timestamps),
		ReleasesLast30d: countWithin30Days(timestamps, now),
		TotalReleases:   len(timestamps),
		MaintainerCount: len(uniqueNonEmpty(maintainers)),
	}, nil
}
