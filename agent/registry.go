package agent

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// Registry maps unique agent names to their definitions. Registration order
// is preserved; the first registered agent is the default entry point.
//
// Registries are populated at startup and then sealed. A sealed registry is
// read-only and safe for concurrent lookups.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Definition
	order  []string
	sealed bool
}

// NewRegistry creates a registry and registers the given definitions.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{agents: make(map[string]*Definition)}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition. Registering a duplicate name fails with
// core.ErrDuplicateAgent.
func (r *Registry) Register(d *Definition) error {
	if d == nil {
		return fmt.Errorf("agent definition is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %s: %w", d.Name(), core.ErrRegistrySealed)
	}
	if _, exists := r.agents[d.Name()]; exists {
		return fmt.Errorf("%w: %s", core.ErrDuplicateAgent, d.Name())
	}
	r.agents[d.Name()] = d
	r.order = append(r.order, d.Name())
	return nil
}

// Resolve returns the definition registered under name.
func (r *Registry) Resolve(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownAgent, name)
	}
	return d, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// First returns the first registered definition.
func (r *Registry) First() (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, false
	}
	return r.agents[r.order[0]], true
}

// Agents returns all definitions in registration order.
func (r *Registry) Agents() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

// Names returns all agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Seal freezes the registry. Further registrations fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Targets returns the delegation targets available to the named agent:
// its explicit allow list when set, otherwise every other registered agent.
// Unknown names in an allow list are skipped.
func (r *Registry) Targets(from string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.agents[from]
	if !ok {
		return nil
	}

	var targets []string
	if allow := d.Delegates(); len(allow) > 0 {
		for _, name := range allow {
			if _, ok := r.agents[name]; ok && name != from {
				targets = append(targets, name)
			}
		}
		return targets
	}
	for _, name := range r.order {
		if name != from {
			targets = append(targets, name)
		}
	}
	return targets
}
