package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afadesigns/rtx/internal/trust"
)

func TestContainsFixedExclusive(t *testing.T) {
	rng := trust.VersionRange{Introduced: "4.0.0", Fixed: "4.17.21"}
	in, err := Contains("npm", rng, "4.17.20")
	require.NoError(t, err)
	assert.True(t, in)

	atFixed, err := Contains("npm", rng, "4.17.21")
	require.NoError(t, err)
	assert.False(t, atFixed, "fixed bound is exclusive per OSV semantics")
}

func TestContainsLastAffectedInclusive(t *testing.T) {
	rng := trust.VersionRange{Introduced: "1.0.0", LastAffected: "1.2.0"}
	in, err := Contains("go", rng, "1.2.0")
	require.NoError(t, err)
	assert.True(t, in)

	out, err := Contains("go", rng, "1.2.1")
	require.NoError(t, err)
	assert.False(t, out)
}

func TestContainsBeforeIntroduced(t *testing.T) {
	rng := trust.VersionRange{Introduced: "2.0.0", Fixed: "3.0.0"}
	in, err := Contains("pypi", rng, "1.9.0")
	require.NoError(t, err)
	assert.False(t, in)
}
