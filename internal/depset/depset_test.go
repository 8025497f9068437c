package depset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afadesigns/rtx/internal/trust"
)

func TestBuildDedupesAndMergesDirectFlag(t *testing.T) {
	a := []trust.Dependency{
		{Ecosystem: "npm", Name: "Lodash", Version: "4.17.20", ManifestPath: "package.json", Direct: false},
	}
	b := []trust.Dependency{
		{Ecosystem: "npm", Name: "lodash", Version: "4.17.20", ManifestPath: "apps/web/package.json", Direct: true},
	}

	got := Build(a, b)
	require.Len(t, got, 1)
	assert.Equal(t, "package.json", got[0].ManifestPath)
	assert.True(t, got[0].Direct)
}

func TestBuildIsSortedByEcosystemNameVersion(t *testing.T) {
	in := []trust.Dependency{
		{Ecosystem: "pypi", Name: "requests", Version: "2.0.0"},
		{Ecosystem: "npm", Name: "lodash", Version: "4.17.21"},
		{Ecosystem: "npm", Name: "lodash", Version: "4.17.20"},
	}
	got := Build(in)
	require.Len(t, got, 3)
	assert.Equal(t, "npm", got[0].Ecosystem)
	assert.Equal(t, "4.17.20", got[0].Version)
	assert.Equal(t, "npm", got[1].Ecosystem)
	assert.Equal(t, "4.17.21", got[1].Version)
	assert.Equal(t, "pypi", got[2].Ecosystem)
}

func TestBuildEmptySetIsEmptyNotNilUnsafe(t *testing.T) {
	got := Build()
	assert.Len(t, got, 0)
}
