package flag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheBackendSetAcceptsKnownValues(t *testing.T) {
	var backend CacheBackend
	require.NoError(t, backend.Set("redis"))
	assert.Equal(t, CacheBackendRedis, backend)
	assert.Equal(t, "redis", backend.String())
}

func TestCacheBackendSetRejectsUnknownValue(t *testing.T) {
	var backend CacheBackend
	err := backend.Set("mongodb")
	assert.Error(t, err)
}

func TestCacheBackendTypeNameForHelpOutput(t *testing.T) {
	var backend CacheBackend
	assert.Equal(t, "CacheBackend", backend.Type())
}

func TestCacheBackendCompletionListsEveryValue(t *testing.T) {
	values, _ := CacheBackendCompletion(nil, nil, "")
	assert.ElementsMatch(t, []string{"boltdb", "redis", "pebble"}, values)
}
