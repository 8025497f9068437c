package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/afadesigns/rtx/internal/trust"
)

type mavenSearchResponse struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			Timestamp int64 `json:"timestamp"`
		} `json:"docs"`
	} `json:"response"`
}

// fetchMaven queries search.maven.org's solrsearch endpoint. dep.Name is
// expected as "group:artifact" per Maven coordinate convention.
func fetchMaven(ctx context.Context, client *http.Client, dep trust.Dependency) (trust.ReleaseMetadata, error) {
	group, artifact, ok := strings.Cut(dep.Name, ":")
	if !ok {
		return trust.ReleaseMetadata{Ecosystem: "maven"}, nil
	}

	query := fmt.Sprintf(`g:"%s" AND a:"%s"`, group, artifact)
	reqURL := "https://search.maven.org/solrsearch/select?" + url.Values{
		"q":    {query},
		"core": {"gav"},
		"rows": {"50"},
		"wt":   {"json"},
		"sort": {"timestamp desc"},
	}.Encode()

	var data mavenSearchResponse
	notFound, err := getJSON(ctx, client, reqURL, &data)
	if err != nil {
		return trust.ReleaseMetadata{}, err
	}
	if notFound {
		return trust.ReleaseMetadata{Ecosystem: "maven"}, nil
	}

	now := time.Now().UTC()
	var timestamps []time.Time
	for _, doc := range data.Response.Docs {
		if doc.Timestamp <= 0 {
			continue
		}
		t := time.UnixMilli(doc.Timestamp).UTC()
		timestamps = append(timestamps, t)
	}

	total := len(timestamps)
	if total == 0 {
		total = data.Response.NumFound
	}

	return trust.ReleaseMetadata{
		Ecosystem:       "maven",
		LatestRelease:   latestOf(timestamps),
		ReleasesLast30d: countWithin30Days(timestamps, now),
		TotalReleases:   total,
	}, nil
}
