package semver

import (
	npmversion "github.com/aquasecurity/go-npm-version/pkg"
)

// npmComparator orders npm/semver-with-build-metadata versions.
type npmComparator struct{}

func (npmComparator) Compare(a, b string) (int, error) {
	va, err := npmversion.NewVersion(a)
	if err != nil {
		return 0, wrapParse("npm", a, err)
	}
	vb, err := npmversion.NewVersion(b)
	if err != nil {
		return 0, wrapParse("npm", b, err)
	}
	return va.Compare(vb), nil
}
