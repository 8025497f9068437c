// Package scanio defines the inbound contract between a project checkout
// and the Dependency Set Builder: a Scanner reads one ecosystem's
// manifests/lockfiles and returns the trust.Dependency records it finds.
// Scanners are pure, local, and network-free (spec's Non-goals exclude
// package installation and script execution). Grounded on the teacher's
// pkg/scan directory convention of one package per recognized input shape.
package scanio

import "github.com/afadesigns/rtx/internal/trust"

// Scanner recognizes and parses one ecosystem's manifest/lockfile set.
type Scanner interface {
	// Ecosystem is the trust.Dependency.Ecosystem value this scanner produces.
	Ecosystem() string
	// Manifests lists the filenames this scanner looks for under a project root.
	Manifests() []string
	// Scan reads whichever of Manifests() exist under root and returns the
	// dependencies found, deduplicated by name with first-writer-wins
	// version/manifest precedence (mirrors original_source's scanners'
	// dependencies.setdefault ordering).
	Scan(root string) ([]trust.Dependency, error)
}
