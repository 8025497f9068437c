package semver

import (
	apkversion "github.com/knqyf263/go-apk-version"
	debversion "github.com/knqyf263/go-deb-version"
	rpmversion "github.com/knqyf263/go-rpm-version"
)

// apkComparator orders Alpine apk package versions.
type apkComparator struct{}

func (apkComparator) Compare(a, b string) (int, error) {
	va, err := apkversion.NewVersion(a)
	if err != nil {
		return 0, wrapParse("apk", a, err)
	}
	vb, err := apkversion.NewVersion(b)
	if err != nil {
		return 0, wrapParse("apk", b, err)
	}
	return va.Compare(vb), nil
}

// debComparator orders Debian/dpkg package versions (epoch:upstream-revision).
type debComparator struct{}

func (debComparator) Compare(a, b string) (int, error) {
	va, err := debversion.NewVersion(a)
	if err != nil {
		return 0, wrapParse("deb", a, err)
	}
	vb, err := debversion.NewVersion(b)
	if err != nil {
		return 0, wrapParse("deb", b, err)
	}
	return va.Compare(vb), nil
}

// rpmComparator orders RPM package versions (epoch:version-release).
type rpmComparator struct{}

func (rpmComparator) Compare(a, b string) (int, error) {
	va := rpmversion.NewVersion(a)
	vb := rpmversion.NewVersion(b)
	return va.Compare(vb), nil
}
