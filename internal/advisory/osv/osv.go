// Package osv is the OSV.dev advisory provider (spec §4.2), batch-querying
// https://api.osv.dev/v1/querybatch the way advisory.py's
// AdvisoryClient._query_osv does: chunked requests, per-chunk retry, and a
// severity derivation that prefers a numeric CVSS score over the
// database_specific severity label.
package osv

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/afadesigns/rtx/internal/advisory"
	"github.com/afadesigns/rtx/internal/advisory/cvss"
	"github.com/afadesigns/rtx/internal/retry"
	"github.com/afadesigns/rtx/internal/trust"
)

// ecosystemMap translates rtx ecosystem identifiers to OSV's own, per
// https://ossf.github.io/osv-schema/#affectedpackage-field (mirrors
// advisory.py's OSV_ECOSYSTEM_MAP).
var ecosystemMap = map[string]string{
	"pypi":      "PyPI",
	"npm":       "npm",
	"maven":     "Maven",
	"go":        "Go",
	"crates":    "crates.io",
	"packagist": "Packagist",
	"nuget":     "NuGet",
	"rubygems":  "RubyGems",
	"homebrew":  "Homebrew",
	"conda":     "conda",
	"docker":    "Docker",
}

const defaultBaseURL = "https://api.osv.dev/v1/querybatch"

// Config configures the provider.
type Config struct {
	BaseURL        string
	HTTPClient     *http.Client
	BatchSize      int
	MaxConcurrency int
	Limiter        *rate.Limiter
	Retry          retry.Policy
}

// Provider queries OSV.dev.
type Provider struct {
	baseURL        string
	client         *http.Client
	batchSize      int
	maxConcurrency int
	limiter        *rate.Limiter
	retry          retry.Policy
}

// New constructs a Provider, applying defaults the way vuls2's option
// structs backfill zero values.
func New(cfg Config) *Provider {
	p := &Provider{
		baseURL:        cfg.BaseURL,
		client:         cfg.HTTPClient,
		batchSize:      cfg.BatchSize,
		maxConcurrency: cfg.MaxConcurrency,
		limiter:        cfg.Limiter,
		retry:          cfg.Retry,
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 15 * time.Second}
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.maxConcurrency <= 0 {
		p.maxConcurrency = 4
	}
	if p.retry == (retry.Policy{}) {
		p.retry = retry.DefaultPolicy
	}
	return p
}

func (p *Provider) Name() string { return "osv.dev" }

type queryPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type query struct {
	Package queryPackage `json:"package"`
	Version string       `json:"version,omitempty"`
}

type batchRequest struct {
	Queries []query `json:"queries"`
}

type severityEntry struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type reference struct {
	URL string `json:"url"`
}

type affectedRange struct {
	Type   string `json:"type"`
	Events []struct {
		Introduced   string `json:"introduced,omitempty"`
		Fixed        string `json:"fixed,omitempty"`
		LastAffected string `json:"last_affected,omitempty"`
	} `json:"events"`
}

type affected struct {
	Ranges []affectedRange `json:"ranges"`
}

type vuln struct {
	ID        string          `json:"id"`
	Summary   string          `json:"summary"`
	Severity  []severityEntry `json:"severity"`
	Affected  []affected      `json:"affected"`
	DBSpecial struct {
		Severity string `json:"severity"`
	} `json:"database_specific"`
	References []reference `json:"references"`
	Withdrawn  string      `json:"withdrawn,omitempty"`
}

type batchResultEntry struct {
	Vulns []vuln `json:"vulns"`
}

type batchResponse struct {
	Results []batchResultEntry `json:"results"`
}

// Fetch queries OSV.dev in batches, fanning chunks out under a bounded
// concurrency + rate limiter (spec §5: per-source concurrency ceiling). A
// chunk that ultimately fails (rate limiter, network, non-2xx, exhausted
// retries) never cancels its siblings and never discards what the other
// chunks resolved: every dependency in the failing chunk is instead
// reported ProviderResult.Unavailable so the orchestrator can surface a
// source_unavailable reason for it specifically, the way
// internal/advisory/github.Fetch already does per-package.
func (p *Provider) Fetch(ctx context.Context, deps []trust.Dependency) (map[trust.Key]advisory.ProviderResult, error) {
	out := make(map[trust.Key]advisory.ProviderResult, len(deps))
	if len(deps) == 0 {
		return out, nil
	}

	chunks := chunk(deps, p.batchSize)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.maxConcurrency)

	results := make([]map[trust.Key][]trust.Advisory, len(chunks))
	chunkErrs := make([]error, len(chunks))
	for i, c := range chunks {
		i, c := i, c
		group.Go(func() error {
			if p.limiter != nil {
				if err := p.limiter.Wait(gctx); err != nil {
					chunkErrs[i] = err
					return nil
				}
			}
			var chunkOut map[trust.Key][]trust.Advisory
			err := retry.Do(gctx, p.retry, isRetryable, func(ctx context.Context) error {
				var err error
				chunkOut, err = p.queryChunk(ctx, c)
				return err
			})
			if err != nil {
				chunkErrs[i] = err
				return nil
			}
			results[i] = chunkOut
			return nil
		})
	}
	_ = group.Wait()

	var firstErr error
	for i, c := range chunks {
		if chunkErrs[i] != nil {
			if firstErr == nil {
				firstErr = chunkErrs[i]
			}
			for _, dep := range c {
				out[dep.Key()] = advisory.ProviderResult{Unavailable: true}
			}
			continue
		}
		for _, dep := range c {
			out[dep.Key()] = advisory.ProviderResult{Advisories: results[i][dep.Key()]}
		}
	}

	if firstErr != nil {
		return out, errors.Wrap(firstErr, "osv: batch query")
	}
	return out, nil
}

func isRetryable(err error) bool {
	return err != nil
}

func (p *Provider) queryChunk(ctx context.Context, deps []trust.Dependency) (map[trust.Key][]trust.Advisory, error) {
	req := batchRequest{Queries: make([]query, len(deps))}
	for i, dep := range deps {
		ecosystem := ecosystemMap[strings.ToLower(dep.Ecosystem)]
		if ecosystem == "" {
			ecosystem = dep.Ecosystem
		}
		req.Queries[i] = query{
			Package: queryPackage{Name: dep.Name, Ecosystem: ecosystem},
			Version: dep.Version,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal osv request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build osv request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "osv request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, errors.Errorf("osv: unexpected status %d", resp.StatusCode)
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode osv response")
	}

	out := make(map[trust.Key][]trust.Advisory, len(deps))
	for i, dep := range deps {
		var entry batchResultEntry
		if i < len(decoded.Results) {
			entry = decoded.Results[i]
		}
		advisories := make([]trust.Advisory, 0, len(entry.Vulns))
		for _, v := range entry.Vulns {
			if v.Withdrawn != "" {
				continue
			}
			advisories = append(advisories, trust.Advisory{
				ID:       v.ID,
				Source:   "osv.dev",
				Severity: severityFromVuln(v),
				Ranges:   rangesFromVuln(v),
				Summary:  v.Summary,
			})
		}
		sort.Slice(advisories, func(i, j int) bool { return advisories[i].ID < advisories[j].ID })
		out[dep.Key()] = advisories
	}
	return out, nil
}

func severityFromVuln(v vuln) trust.Severity {
	maxScore := 0.0
	for _, entry := range v.Severity {
		if score, ok := numericScore(entry.Score); ok && score > maxScore {
			maxScore = score
		}
	}
	if maxScore > 0 {
		return cvss.SeverityFromScore(maxScore)
	}
	if v.DBSpecial.Severity != "" {
		sev, err := trust.ParseSeverity(v.DBSpecial.Severity)
		if err == nil {
			return sev
		}
	}
	return trust.SeverityNone
}

func numericScore(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if score, err := strconv.ParseFloat(raw, 64); err == nil {
		return score, true
	}
	if strings.HasPrefix(raw, "CVSS:") {
		return cvss.Score(raw)
	}
	return 0, false
}

func rangesFromVuln(v vuln) []trust.VersionRange {
	var ranges []trust.VersionRange
	for _, a := range v.Affected {
		for _, r := range a.Ranges {
			if r.Type != "SEMVER" && r.Type != "ECOSYSTEM" {
				continue
			}
			for _, ev := range r.Events {
				if ev.Introduced == "" && ev.Fixed == "" && ev.LastAffected == "" {
					continue
				}
				ranges = append(ranges, trust.VersionRange{
					Introduced:   ev.Introduced,
					Fixed:        ev.Fixed,
					LastAffected: ev.LastAffected,
				})
			}
		}
	}
	return ranges
}

func chunk(deps []trust.Dependency, size int) [][]trust.Dependency {
	var chunks [][]trust.Dependency
	for i := 0; i < len(deps); i += size {
		end := i + size
		if end > len(deps) {
			end = len(deps)
		}
		chunks = append(chunks, deps[i:end])
	}
	return chunks
}
