package semver

import (
	pep440 "github.com/aquasecurity/go-pep440-version"
)

// pypiComparator orders PEP 440 versions.
type pypiComparator struct{}

func (pypiComparator) Compare(a, b string) (int, error) {
	va, err := pep440.Parse(a)
	if err != nil {
		return 0, wrapParse("pypi", a, err)
	}
	vb, err := pep440.Parse(b)
	if err != nil {
		return 0, wrapParse("pypi", b, err)
	}
	return va.Compare(vb), nil
}
