package dispatch

import "sync"

// UnitRegistry is the side-channel the Dispatcher and the workflow engine's
// handler share. workflow.WorkItem only carries an ExecutionKey and the
// member correlation ids (spec.md §4.4's execution-key convention), not the
// full dispatch Unit, so whatever handler actually runs the Override State
// Machine needs somewhere to look the Unit back up by that same key.
type UnitRegistry struct {
	mu    sync.Mutex
	units map[string]Unit
}

func NewUnitRegistry() *UnitRegistry {
	return &UnitRegistry{units: make(map[string]Unit)}
}

// Put registers unit under key, overwriting any unit previously registered
// under the same key (a redelivered dispatch pass for the same unit).
func (r *UnitRegistry) Put(key string, unit Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[key] = unit
}

// Take returns and removes the Unit registered for key, if any.
func (r *UnitRegistry) Take(key string) (Unit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[key]
	if ok {
		delete(r.units, key)
	}
	return u, ok
}
