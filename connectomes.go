/*
Package connectomes provides uniform access to connectomics datasets hosted
on heterogeneous backends (neuPrint, DVID, ChunkedGraph, CATMAID,
neuroglancer-precomputed buckets).

	hb, err := connectomes.Get("hemibrain")
	...
	vol, err := hb.Segmentation().Slice(ctx,
		connectome.NewRange(15000, 15256),
		connectome.NewRange(20000, 20256),
		connectome.NewRange(18000, 18064))
	neurons, err := hb.Skeleton().Get(ctx, 1734350788)

Every dataset exposes the same four accessors (segmentation, skeleton,
mesh, annotations); modalities a dataset does not serve fail with
connectome.ErrNotImplemented.  Results use the standardized types in the
connectome package regardless of backend.
*/
package connectomes

import (
	"os"
	"sync"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
	"github.com/navis-org/connectomes/registry"
)

// ConfigEnv names an optional TOML config file applied to the default
// registry.
const ConfigEnv = "CONNECTOMES_CONFIG"

var (
	defaultOnce     sync.Once
	defaultRegistry *registry.Registry
)

// Default returns the process-wide registry, building it on first use
// from the file named by CONNECTOMES_CONFIG if set.
func Default() *registry.Registry {
	defaultOnce.Do(func() {
		var config *registry.Config
		if path := os.Getenv(ConfigEnv); path != "" {
			var err error
			config, err = registry.LoadConfig(path)
			if err != nil {
				connectome.Criticalf("Unable to load config from %s=%q: %v\n", ConfigEnv, path, err)
				config = nil
			}
		}
		config.Setup()
		defaultRegistry = registry.New(config)
	})
	return defaultRegistry
}

// Get resolves a dataset identifier like "hemibrain" against the default
// registry.
func Get(name string) (*dataset.Dataset, error) {
	return Default().Get(name)
}

// Datasets returns the identifiers registered in the default registry.
func Datasets() []string {
	return Default().Names()
}
