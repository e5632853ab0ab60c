// Package stats generalizes the ad hoc counter structs scattered across
// the simulator (pipeline.Stats, cache.Statistics) into one named
// registry so a caller can dump or filter every counter in the system
// without knowing which component owns it.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds a flat namespace of named counters, keyed by dotted
// names such as "pipeline.instructions" or "cache.l1d.hits".
type Registry struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{counters: make(map[string]uint64)}
}

// Add increments the named counter by delta, creating it at zero first
// if this is its first use.
func (r *Registry) Add(name string, delta uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

// Set overwrites the named counter's value outright, for counters that
// track a current level (e.g. a CPI-style derived value) rather than an
// accumulating total.
func (r *Registry) Set(name string, value uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] = value
}

// Get returns the named counter's current value and whether it exists.
func (r *Registry) Get(name string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.counters[name]
	return v, ok
}

// Filter returns every counter whose name has the given prefix,
// dotted-name prefixes like "cache." matching every cache level's
// counters in one call.
func (r *Registry) Filter(prefix string) map[string]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]uint64)
	for name, v := range r.counters {
		if strings.HasPrefix(name, prefix) {
			out[name] = v
		}
	}
	return out
}

// All returns every counter in the registry.
func (r *Registry) All() map[string]uint64 {
	return r.Filter("")
}

// Reset zeroes every counter without removing it from the namespace.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.counters {
		r.counters[name] = 0
	}
}

// String renders the registry as sorted "name = value" lines, for
// end-of-run diagnostic dumps.
func (r *Registry) String() string {
	all := r.All()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s = %d\n", name, all[name])
	}
	return b.String()
}
