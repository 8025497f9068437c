// Package npm scans an npm project's lockfile and manifest for its
// dependency set. Grounded on
// original_source/src/rtx/scanners/npm.py + scanners/common.py's
// load_lock_dependencies (npm v2/v3 "packages" object keyed by
// node_modules path, falling back to the legacy "dependencies" object),
// translated to Go with encoding/json.
package npm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/afadesigns/rtx/internal/trust"
)

// Scanner implements scanio.Scanner for the npm ecosystem.
type Scanner struct{}

// New returns an npm Scanner.
func New() Scanner { return Scanner{} }

func (Scanner) Ecosystem() string { return "npm" }

func (Scanner) Manifests() []string {
	return []string{"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml"}
}

// Scan reads package-lock.json (preferred, exact resolved versions) and
// falls back to package.json's dependency sections for projects that ship
// no lockfile. yarn.lock/pnpm-lock.yaml are recognized by Manifests() but
// not parsed by this scanner (spec's Non-goals exclude exhaustive
// per-ecosystem manifest parsing; gomod/npm exist only to make the CLI
// runnable end to end).
func (s Scanner) Scan(root string) ([]trust.Dependency, error) {
	versions := make(map[string]string)
	manifest := make(map[string]string)
	direct := make(map[string]bool)

	lockPath := filepath.Join(root, "package-lock.json")
	if raw, err := os.ReadFile(lockPath); err == nil {
		deps, err := parseLockFile(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "npm: parse %s", lockPath)
		}
		for name, version := range deps {
			if _, ok := versions[name]; !ok {
				versions[name] = version
				manifest[name] = lockPath
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "npm: read %s", lockPath)
	}

	manifestPath := filepath.Join(root, "package.json")
	if raw, err := os.ReadFile(manifestPath); err == nil {
		deps, err := parsePackageJSON(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "npm: parse %s", manifestPath)
		}
		for name, version := range deps {
			if _, ok := versions[name]; !ok {
				versions[name] = version
				manifest[name] = manifestPath
			}
			direct[name] = true
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "npm: read %s", manifestPath)
	}

	names := make([]string, 0, len(versions))
	for name := range versions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]trust.Dependency, 0, len(names))
	for _, name := range names {
		out = append(out, trust.Dependency{
			Ecosystem:    "npm",
			Name:         name,
			Version:      normalizeVersion(versions[name]),
			ManifestPath: manifest[name],
			Direct:       direct[name],
		})
	}
	return out, nil
}

func normalizeVersion(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimLeft(raw, "^~>=<")
	if raw == "" {
		return "0.0.0"
	}
	return raw
}

type lockPackage struct {
	Version string `json:"version"`
}

type lockFile struct {
	Packages     map[string]lockPackage `json:"packages"`
	Dependencies map[string]lockPackage `json:"dependencies"`
}

func parseLockFile(raw []byte) (map[string]string, error) {
	var lf lockFile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	if len(lf.Packages) > 0 {
		for path, pkg := range lf.Packages {
			name := normalizeLockName(path)
			if name == "" || pkg.Version == "" {
				continue
			}
			out[name] = pkg.Version
		}
		return out, nil
	}
	for name, pkg := range lf.Dependencies {
		if pkg.Version == "" {
			continue
		}
		out[normalizeLockName(name)] = pkg.Version
	}
	return out, nil
}

func normalizeLockName(name string) string {
	name = strings.TrimPrefix(name, "./")
	if idx := strings.LastIndex(name, "node_modules/"); idx >= 0 {
		name = name[idx+len("node_modules/"):]
	}
	return name
}

type packageJSON struct {
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

func parsePackageJSON(raw []byte) (map[string]string, error) {
	var pkg packageJSON
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for _, section := range []map[string]string{pkg.Dependencies, pkg.DevDependencies, pkg.OptionalDependencies, pkg.PeerDependencies} {
		for name, spec := range section {
			if _, ok := out[name]; !ok {
				out[name] = spec
			}
		}
	}
	return out, nil
}
