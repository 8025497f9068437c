package semver

import (
	goversion "github.com/aquasecurity/go-version/pkg/version"
)

// genericComparator handles ecosystems with a roughly semver-compatible
// scheme (Go modules, crates.io, NuGet) via aquasecurity/go-version, the
// same library vuls2 carries for its own generic version comparisons.
type genericComparator struct{}

func (genericComparator) Compare(a, b string) (int, error) {
	va, err := goversion.Parse(a)
	if err != nil {
		return 0, wrapParse("generic", a, err)
	}
	vb, err := goversion.Parse(b)
	if err != nil {
		return 0, wrapParse("generic", b, err)
	}
	return va.Compare(vb), nil
}
