package artifact

import (
	"fmt"
	"sort"
	"sync"
)

// Bag accumulates artifacts monotonically across collection phases and
// navigations. A key, once set, is never overwritten within the same run;
// later phases contribute only new keys. The orchestrator is the only
// mutator, but the bag still guards itself for safety when telemetry
// observers read mid-run.
type Bag struct {
	mu      sync.RWMutex
	results map[string]Result
	frozen  bool
}

// NewBag returns an empty artifact bag.
func NewBag() *Bag {
	return &Bag{results: make(map[string]Result)}
}

// Set stores a result under id. Setting an id that already exists is an
// error: merge semantics are union, never replacement.
func (b *Bag) Set(id string, result Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return fmt.Errorf("artifact: bag is frozen, cannot set %q", id)
	}
	if _, exists := b.results[id]; exists {
		return fmt.Errorf("artifact: %q already collected", id)
	}
	b.results[id] = result
	return nil
}

// Merge unions incoming results into the bag. Keys already present keep
// their first value; only new keys are added.
func (b *Bag) Merge(incoming map[string]Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return fmt.Errorf("artifact: bag is frozen, cannot merge")
	}
	for id, result := range incoming {
		if _, exists := b.results[id]; exists {
			continue
		}
		b.results[id] = result
	}
	return nil
}

// Get returns the result stored under id.
func (b *Bag) Get(id string) (Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.results[id]
	return r, ok
}

// Has reports whether id has been collected.
func (b *Bag) Has(id string) bool {
	_, ok := b.Get(id)
	return ok
}

// Len returns the number of collected artifacts.
func (b *Bag) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.results)
}

// IDs returns the collected artifact ids in sorted order.
func (b *Bag) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.results))
	for id := range b.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Freeze seals the bag and returns the final artifact map. Further Set or
// Merge calls fail. The returned map is a copy; mutating it does not affect
// the bag.
func (b *Bag) Freeze() map[string]Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
	out := make(map[string]Result, len(b.results))
	for id, r := range b.results {
		out[id] = r
	}
	return out
}
