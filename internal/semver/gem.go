package semver

import (
	gemversion "github.com/aquasecurity/go-gem-version"
)

// gemComparator orders RubyGems versions.
type gemComparator struct{}

func (gemComparator) Compare(a, b string) (int, error) {
	va, err := gemversion.NewVersion(a)
	if err != nil {
		return 0, wrapParse("rubygems", a, err)
	}
	vb, err := gemversion.NewVersion(b)
	if err != nil {
		return 0, wrapParse("rubygems", b, err)
	}
	return va.Compare(vb), nil
}
