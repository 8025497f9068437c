// Package github is the GitHub Security Advisories provider (spec §4.2
// ADD), querying the GraphQL securityVulnerabilities connection the way
// advisory.py's AdvisoryClient._query_github does. Disabled automatically
// when no token is configured; a missing token is not an error: New
// reports ok=false and internal/wiring leaves the provider out of the run,
// so no SourceOutcome is recorded for it.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/afadesigns/rtx/internal/advisory"
	"github.com/afadesigns/rtx/internal/retry"
	"github.com/afadesigns/rtx/internal/trust"
)

const defaultAPIURL = "https://api.github.com/graphql"

const vulnQuery = `
query($ecosystem: SecurityAdvisoryEcosystem!, $package: String!) {
  securityVulnerabilities(first: 20, ecosystem: $ecosystem, package: $package) {
    nodes {
      advisory {
        ghsaId
        summary
        severity
        references { url }
      }
      vulnerableVersionRange
    }
  }
}`

// Config configures the provider.
type Config struct {
	APIURL         string
	Token          string
	HTTPClient     *http.Client
	MaxConcurrency int
	Retry          retry.Policy
}

// Provider queries the GitHub Security Advisory GraphQL API.
type Provider struct {
	apiURL         string
	token          string
	client         *http.Client
	maxConcurrency int
	retry          retry.Policy
}

// New constructs a Provider. Returns nil, false when no token is
// configured, so orchestration can skip it the way the original
// AdvisoryClient skips _query_github with no RTX_GITHUB_TOKEN.
func New(cfg Config) (*Provider, bool) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, false
	}
	p := &Provider{
		apiURL:         cfg.APIURL,
		token:          cfg.Token,
		client:         cfg.HTTPClient,
		maxConcurrency: cfg.MaxConcurrency,
		retry:          cfg.Retry,
	}
	if p.apiURL == "" {
		p.apiURL = defaultAPIURL
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 15 * time.Second}
	}
	if p.maxConcurrency <= 0 {
		p.maxConcurrency = 4
	}
	if p.retry == (retry.Policy{}) {
		p.retry = retry.DefaultPolicy
	}
	return p, true
}

func (p *Provider) Name() string { return "github" }

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type advisoryNode struct {
	GhsaID     string `json:"ghsaId"`
	Summary    string `json:"summary"`
	Severity   string `json:"severity"`
	References []struct {
		URL string `json:"url"`
	} `json:"references"`
}

type vulnNode struct {
	Advisory               advisoryNode `json:"advisory"`
	VulnerableVersionRange string       `json:"vulnerableVersionRange"`
}

type graphqlResponse struct {
	Data struct {
		SecurityVulnerabilities struct {
			Nodes []vulnNode `json:"nodes"`
		} `json:"securityVulnerabilities"`
	} `json:"data"`
}

// Fetch queries GitHub for every distinct (ecosystem, name) pair in deps.
func (p *Provider) Fetch(ctx context.Context, deps []trust.Dependency) (map[trust.Key]advisory.ProviderResult, error) {
	out := make(map[trust.Key]advisory.ProviderResult, len(deps))
	if len(deps) == 0 {
		return out, nil
	}

	type pkgKey struct{ ecosystem, name string }
	unique := make(map[pkgKey][]trust.Dependency)
	for _, dep := range deps {
		pk := pkgKey{ecosystem: strings.ToLower(dep.Ecosystem), name: dep.Name}
		unique[pk] = append(unique[pk], dep)
	}

	perPackage := make(map[pkgKey][]trust.Advisory)
	var mu sync.Mutex
	var merr *multierror.Error

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.maxConcurrency)

	for pk := range unique {
		pk := pk
		group.Go(func() error {
			var advisories []trust.Advisory
			err := retry.Do(gctx, p.retry, func(error) bool { return true }, func(ctx context.Context) error {
				var err error
				advisories, err = p.queryPackage(ctx, pk.ecosystem, pk.name)
				return err
			})
			if err != nil {
				// A single package failing (bad token, rate limit) must not
				// fail the whole provider; spec §4.7 records it as degraded
				// at the orchestrator level instead. The failure is still
				// collected so it isn't silently discarded if every package
				// in the batch turns out to have failed.
				mu.Lock()
				merr = multierror.Append(merr, errors.Wrapf(err, "github: query %s/%s", pk.ecosystem, pk.name))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			perPackage[pk] = advisories
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	for _, dep := range deps {
		pk := pkgKey{ecosystem: strings.ToLower(dep.Ecosystem), name: dep.Name}
		advisories, ok := perPackage[pk]
		out[dep.Key()] = advisory.ProviderResult{Advisories: advisories, Unavailable: !ok}
	}

	// Only surface the aggregated error when nothing in the batch
	// succeeded; a partial failure is reported per-package via the
	// wrapped errors above but must not discard the packages that did
	// resolve.
	if len(perPackage) == 0 && merr.ErrorOrNil() != nil {
		return out, merr.ErrorOrNil()
	}
	return out, nil
}

func (p *Provider) queryPackage(ctx context.Context, ecosystem, name string) ([]trust.Advisory, error) {
	req := graphqlRequest{
		Query: vulnQuery,
		Variables: map[string]any{
			"ecosystem": strings.ToUpper(ecosystem),
			"package":   name,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal github request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build github request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "github request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.New("github: invalid token")
	}
	if resp.StatusCode >= 300 {
		return nil, errors.Errorf("github: unexpected status %d", resp.StatusCode)
	}

	var decoded graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode github response")
	}

	nodes := decoded.Data.SecurityVulnerabilities.Nodes
	advisories := make([]trust.Advisory, 0, len(nodes))
	for _, node := range nodes {
		refs := make([]string, 0, len(node.Advisory.References))
		for _, r := range node.Advisory.References {
			refs = append(refs, r.URL)
		}
		advisories = append(advisories, trust.Advisory{
			ID:       orDefault(node.Advisory.GhsaID, "GHSA-unknown"),
			Source:   "github",
			Severity: severityFromLabel(node.Advisory.Severity),
			Summary:  node.Advisory.Summary,
		})
	}
	sort.Slice(advisories, func(i, j int) bool { return advisories[i].ID < advisories[j].ID })
	return advisories, nil
}

func severityFromLabel(label string) trust.Severity {
	if label == "" {
		return trust.SeverityLow
	}
	sev, err := trust.ParseSeverity(label)
	if err != nil {
		return trust.SeverityLow
	}
	return sev
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
