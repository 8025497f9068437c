package metadata

import (
	"context"
	"net/http"
	"time"

	"github.com/afadesigns/rtx/internal/trust"
)

type pypiResponse struct {
	Info struct {
		Author     string `json:"author"`
		Maintainer string `json:"maintainer"`
	} `json:"info"`
	Releases map[string][]struct {
		UploadTimeISO8601 string `json:"upload_time_iso_8601"`
		UploadTime        string `json:"upload_time"`
	} `json:"releases"`
}

func fetchPyPI(ctx context.Context, client *http.Client, dep trust.Dependency) (trust.ReleaseMetadata, error) {
	url := "https://pypi.org/pypi/" + dep.Name + "/json"
	var data pypiResponse
	notFound, err := getJSON(ctx, client, url, &data)
	if err != nil {
		return trust.ReleaseMetadata{}, err
	}
	if notFound {
		return trust.ReleaseMetadata{Ecosystem: "pypi"}, nil
	}

	now := time.Now().UTC()
	var timestamps []time.Time
	for _, files := range data.Releases {
		if len(files) == 0 {
			continue
		}
		var best *time.Time
		for _, f := range files {
			ts := f.UploadTimeISO8601
			if ts == "" {
				ts = f.UploadTime
			}
			parsed := parseDate(ts)
			if parsed != nil && (best == nil || parsed.After(*best)) {
				best = parsed
			}
		}
		if best != nil {
			timestamps = append(timestamps, *best)
		}
	}

	maintainers := uniqueNonEmpty([]string{data.Info.Author, data.Info.Maintainer})

	return trust.ReleaseMetadata{
		Ecosystem:       "pypi",
		LatestRelease:   latestOf(timestamps),
		ReleasesLast30d: countWithin30Days(timestamps, now),
		TotalReleases:   len(data.Releases),
		MaintainerCount: len(maintainers),
	}, nil
}
