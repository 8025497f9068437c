package semver

import (
	mvnversion "github.com/masahiro331/go-mvn-version"
)

// mavenComparator orders Maven coordinate versions.
type mavenComparator struct{}

func (mavenComparator) Compare(a, b string) (int, error) {
	va, err := mvnversion.NewVersion(a)
	if err != nil {
		return 0, wrapParse("maven", a, err)
	}
	vb, err := mvnversion.NewVersion(b)
	if err != nil {
		return 0, wrapParse("maven", b, err)
	}
	return va.Compare(vb), nil
}
