package registry

import (
	"fmt"
	"regexp"
	"sync"
)

var slotPattern = regexp.MustCompile(`^\*(\d*)$`)

// rewriteSlotId rewrites a positional input id of the form "*", "*0", "*1",
// ... to "SLOT", "SLOT0", "SLOT1", ... (spec §3). Non-matching ids pass
// through unchanged (named inputs).
func rewriteSlotId(id string) string {
	m := slotPattern.FindStringSubmatch(id)
	if m == nil {
		return id
	}
	return "SLOT" + m[1]
}

// Registry is the process-wide transform metadata table. It is safe for
// concurrent read access once populated; Register is expected to be called
// only during process initialization (spec §9 "Global transform metadata").
type Registry struct {
	mu    sync.RWMutex
	byId  map[string]Metadata
	ready bool
}

// New creates an empty registry. Production code uses the package-level
// Global registry; New exists so tests can build isolated registries.
func New() *Registry {
	return &Registry{byId: make(map[string]Metadata)}
}

// Register adds a transform's metadata, rewriting SLOT-style input ids.
// Registering the same id twice is a programming error and panics: the
// registry is meant to be populated once, deterministically, at startup.
func (r *Registry) Register(m Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range m.Inputs {
		m.Inputs[i].Id = rewriteSlotId(m.Inputs[i].Id)
	}
	if _, exists := r.byId[m.Id]; exists {
		panic(fmt.Sprintf("registry: transform %q already registered", m.Id))
	}
	r.byId[m.Id] = m
}

// Lookup returns the metadata for a transform id.
func (r *Registry) Lookup(id string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byId[id]
	return m, ok
}

// MustLookup panics if id is not registered; used by internal bootstrap
// code (e.g. wiring operator-token -> transform-id maps) where an absent
// entry is always a registry construction bug, never user input.
func (r *Registry) MustLookup(id string) Metadata {
	m, ok := r.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("registry: transform %q not registered", id))
	}
	return m
}

// Ids returns all registered transform ids. Order is unspecified.
func (r *Registry) Ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byId))
	for id := range r.byId {
		out = append(out, id)
	}
	return out
}

// Global is the process-wide registry populated by init() in builtin.go and
// by external transform-library registration (out of scope per spec §1, but
// the registration surface itself is part of THE CORE).
var Global = New()
