/*
Package registry resolves short dataset identifiers like "hemibrain" to
configured dataset adapters.  Adapters are constructed lazily on first
lookup and cached for the life of the registry, so backend handshakes and
token loading happen once per dataset.
*/
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// Builder constructs the adapter for one dataset from its configuration.
type Builder func(name string, dc DatasetConfig) (*dataset.Dataset, error)

// Registry maps dataset identifiers to lazily constructed adapters.
type Registry struct {
	config *Config

	mu       sync.RWMutex
	builders map[string]Builder
	aliases  map[string]string
	adapters map[string]*dataset.Dataset

	group singleflight.Group
}

// New returns a registry with the built-in dataset table.  A nil config
// uses defaults for every dataset.
func New(config *Config) *Registry {
	if config == nil {
		config = &Config{}
	}
	r := &Registry{
		config:   config,
		builders: make(map[string]Builder),
		aliases:  make(map[string]string),
		adapters: make(map[string]*dataset.Dataset),
	}
	registerBuiltins(r)
	return r
}

// Register adds or replaces a dataset builder, mostly useful for tests
// substituting fake backends.
func (r *Registry) Register(name string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = b
}

// RegisterAlias makes alias resolve to the same adapter as name.
func (r *Registry) RegisterAlias(alias, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = name
}

// Names returns the registered dataset identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the adapter for a dataset identifier, constructing and
// caching it on first use.  Unknown identifiers fail with
// connectome.ErrUnknownDataset.
func (r *Registry) Get(name string) (*dataset.Dataset, error) {
	r.mu.RLock()
	if target, found := r.aliases[name]; found {
		name = target
	}
	if d, found := r.adapters[name]; found {
		r.mu.RUnlock()
		return d, nil
	}
	builder, found := r.builders[name]
	r.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%q (registered: %s): %w", name,
			strings.Join(r.Names(), ", "), connectome.ErrUnknownDataset)
	}

	// Concurrent first lookups share one construction.
	v, err, _ := r.group.Do(name, func() (interface{}, error) {
		r.mu.RLock()
		d, found := r.adapters[name]
		r.mu.RUnlock()
		if found {
			return d, nil
		}
		t := connectome.NewTimeLog()
		d, err := builder(name, r.config.Datasets[name])
		if err != nil {
			return nil, fmt.Errorf("error initializing dataset %q: %w", name, err)
		}
		t.Infof("initialized dataset %q", name)
		r.mu.Lock()
		r.adapters[name] = d
		r.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dataset.Dataset), nil
}
