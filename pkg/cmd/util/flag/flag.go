package flag

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// CacheBackend selects which internal/cache backend a command opens,
// implementing pflag.Value the way the teacher's DBType does for its
// own --dbtype flag.
type CacheBackend string

const (
	CacheBackendBoltDB CacheBackend = "boltdb"
	CacheBackendRedis  CacheBackend = "redis"
	CacheBackendPebble CacheBackend = "pebble"
)

func (t *CacheBackend) String() string {
	return string(*t)
}

func (t *CacheBackend) Set(v string) error {
	switch v {
	case "boltdb", "redis", "pebble":
		*t = CacheBackend(v)
		return nil
	default:
		return errors.Errorf("unexpected cache backend. accepts: %q, actual: %q", []CacheBackend{CacheBackendBoltDB, CacheBackendRedis, CacheBackendPebble}, v)
	}
}

func (t *CacheBackend) Type() string {
	return "CacheBackend"
}

func CacheBackendCompletion(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{string(CacheBackendBoltDB), string(CacheBackendRedis), string(CacheBackendPebble)}, cobra.ShellCompDirectiveDefault
}
