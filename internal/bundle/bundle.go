// Package bundle pulls a pinned advisory/metadata snapshot from an OCI
// registry and seeds the Cache Layer with it, so rtx can run offline or in
// CI without reaching osv.dev/GitHub/registries directly. Grounded
// directly on pkg/db/fetch/fetch.go's oras.Copy-into-memory-store,
// find-layer-by-media-type, zstd-decompress flow, adapted from a single
// bolt file download to a stream of cache records.
package bundle

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	progressbar "github.com/schollz/progressbar/v3"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"

	"github.com/afadesigns/rtx/internal/cache"
	"github.com/afadesigns/rtx/internal/trust"
)

// snapshotLayerMediaType identifies the layer carrying the seed records
// within the pulled OCI manifest.
const snapshotLayerMediaType = "application/vnd.rtx.trust-bundle.v1+zstd"

// record is one cache seed entry as it appears in the bundle's
// newline-delimited JSON payload.
type record struct {
	Source    string    `json:"source"`
	Ecosystem string    `json:"ecosystem"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type options struct {
	repository string
	noProgress bool
}

// Option configures Pull.
type Option interface{ apply(*options) }

type repositoryOption string

func (o repositoryOption) apply(opts *options) { opts.repository = string(o) }

// WithRepository overrides the default bundle repository reference.
func WithRepository(repository string) Option { return repositoryOption(repository) }

type noProgressOption bool

func (o noProgressOption) apply(opts *options) { opts.noProgress = bool(o) }

// WithNoProgress disables the download progress bar.
func WithNoProgress(noProgress bool) Option { return noProgressOption(noProgress) }

// Pull fetches the bundle's manifest and snapshot layer from an OCI
// registry and writes every record it contains into store, returning the
// number of records seeded.
func Pull(ctx context.Context, store *cache.Store, opts ...Option) (int, error) {
	o := &options{repository: "ghcr.io/afadesigns/rtx-trust-bundle:latest"}
	for _, opt := range opts {
		opt.apply(o)
	}

	slog.Info("pull trust bundle", "repository", o.repository)

	ms := memory.New()
	repo, err := remote.NewRepository(o.repository)
	if err != nil {
		return 0, errors.Wrapf(err, "bundle: create client for %s", o.repository)
	}
	if repo.Reference.Reference == "" {
		return 0, errors.Errorf("bundle: repository must include a tag or digest, got %q", o.repository)
	}

	manifestDesc, err := oras.Copy(ctx, repo, repo.Reference.Reference, ms, repo.Reference.Reference, oras.DefaultCopyOptions)
	if err != nil {
		return 0, errors.Wrapf(err, "bundle: copy from %s", o.repository)
	}

	manifestReader, err := ms.Fetch(ctx, manifestDesc)
	if err != nil {
		return 0, errors.Wrap(err, "bundle: fetch manifest")
	}
	defer manifestReader.Close()

	var manifest ocispec.Manifest
	if err := json.NewDecoder(content.NewVerifyReader(manifestReader, manifestDesc)).Decode(&manifest); err != nil {
		return 0, errors.Wrap(err, "bundle: decode manifest")
	}

	var layer *ocispec.Descriptor
	for i := range manifest.Layers {
		if manifest.Layers[i].MediaType == snapshotLayerMediaType {
			layer = &manifest.Layers[i]
			break
		}
	}
	if layer == nil {
		return 0, errors.Errorf("bundle: no %s layer in manifest, layers: %#v", snapshotLayerMediaType, manifest.Layers)
	}

	layerReader, err := repo.Fetch(ctx, *layer)
	if err != nil {
		return 0, errors.Wrap(err, "bundle: fetch snapshot layer")
	}
	defer layerReader.Close()

	dec, err := zstd.NewReader(content.NewVerifyReader(layerReader, *layer))
	if err != nil {
		return 0, errors.Wrap(err, "bundle: new zstd reader")
	}
	defer dec.Close()

	bar := progressbar.DefaultBytesSilent(-1)
	if !o.noProgress {
		bar = progressbar.DefaultBytes(layer.Size, "seeding cache")
	}
	defer bar.Finish()

	return seed(ctx, store, io.TeeReader(dec, bar))
}

// seed decodes newline-delimited JSON records from r and writes each into
// store through Store.Seed, which persists the entry to the backend and
// records its key in that source's LRU.
func seed(ctx context.Context, store *cache.Store, r io.Reader) (int, error) {
	decoder := json.NewDecoder(r)
	count := 0
	for decoder.More() {
		var rec record
		if err := decoder.Decode(&rec); err != nil {
			return count, errors.Wrap(err, "bundle: decode record")
		}
		key := trust.CacheKey{Source: rec.Source, Ecosystem: rec.Ecosystem, Name: rec.Name, Version: rec.Version}
		if err := store.Seed(ctx, key, rec.Payload, rec.FetchedAt, rec.ExpiresAt); err != nil {
			return count, errors.Wrapf(err, "bundle: seed %s", key.String())
		}
		count++
	}
	return count, nil
}
