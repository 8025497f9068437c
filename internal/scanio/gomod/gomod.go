// Package gomod scans a Go module's go.mod/go.sum for its dependency set.
// Grounded on original_source/src/rtx/scanners/go.py + common.read_go_mod's
// require-block line scanner, translated to Go with bufio.Scanner.
package gomod

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/afadesigns/rtx/internal/trust"
)

// Scanner implements scanio.Scanner for the Go module ecosystem.
type Scanner struct{}

// New returns a Go module Scanner.
func New() Scanner { return Scanner{} }

func (Scanner) Ecosystem() string { return "go" }

func (Scanner) Manifests() []string { return []string{"go.mod", "go.sum"} }

// Scan reads go.mod's require directives (recording them as direct) and
// go.sum's module/version pairs (recording any not already seen as
// indirect), first-writer-wins like the other scanners.
func (s Scanner) Scan(root string) ([]trust.Dependency, error) {
	versions := make(map[string]string)
	manifest := make(map[string]string)
	direct := make(map[string]bool)

	goModPath := filepath.Join(root, "go.mod")
	if raw, err := os.ReadFile(goModPath); err == nil {
		for name, version := range parseGoMod(raw) {
			versions[name] = version
			manifest[name] = goModPath
			direct[name] = true
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "gomod: read %s", goModPath)
	}

	goSumPath := filepath.Join(root, "go.sum")
	if f, err := os.Open(goSumPath); err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) < 2 {
				continue
			}
			name, version := fields[0], fields[1]
			version = strings.TrimSuffix(version, "/go.mod")
			if _, ok := versions[name]; !ok {
				versions[name] = version
				manifest[name] = goSumPath
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrapf(err, "gomod: scan %s", goSumPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "gomod: open %s", goSumPath)
	}

	names := make([]string, 0, len(versions))
	for name := range versions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]trust.Dependency, 0, len(names))
	for _, name := range names {
		out = append(out, trust.Dependency{
			Ecosystem:    "go",
			Name:         name,
			Version:      versions[name],
			ManifestPath: manifest[name],
			Direct:       direct[name],
		})
	}
	return out, nil
}

// parseGoMod extracts module -> version pairs from both single-line
// ("require module version") and parenthesized require(...) blocks,
// ignoring module/comment/replace lines.
func parseGoMod(raw []byte) map[string]string {
	out := make(map[string]string)
	inBlock := false

	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "module") || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "replace"):
			continue
		case line == "require (":
			inBlock = true
			continue
		case inBlock && strings.HasPrefix(line, ")"):
			inBlock = false
			continue
		case strings.HasPrefix(line, "require") && !strings.HasSuffix(line, "("):
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				out[fields[1]] = fields[2]
			}
		case inBlock:
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				out[fields[0]] = fields[1]
			}
		}
	}
	return out
}
