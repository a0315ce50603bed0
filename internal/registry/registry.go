// Package registry holds the client-side view of every known Lora.
//
// The list is loaded once from the backend and then patched by push updates.
// Merges never add devices; only Load does.
package registry

import (
	"strings"
	"sync"

	"lora-control/internal/lora"
)

// Merge applies patch onto devices and returns the new list together with the
// entries that were overwritten (in registry order). A device present in both
// ends up equal to its patch entry; devices without a patch entry keep their
// values; patch entries with unknown ids are ignored. Neither input is mutated.
func Merge(devices, patch []lora.Actuator) (merged []lora.Actuator, updated []lora.Actuator) {
	byID := make(map[string]lora.Actuator, len(patch))
	for _, p := range patch {
		byID[p.ID] = p
	}
	merged = make([]lora.Actuator, len(devices))
	for i, d := range devices {
		p, ok := byID[d.ID]
		if !ok {
			merged[i] = d
			continue
		}
		p.ID = d.ID
		merged[i] = p
		updated = append(updated, p)
	}
	return merged, updated
}

type Registry struct {
	mu       sync.RWMutex
	devices  []lora.Actuator
	selected string
}

func New() *Registry {
	return &Registry{devices: []lora.Actuator{}}
}

// Load replaces the registry wholesale. Later entries with a repeated id are dropped.
func (r *Registry) Load(devices []lora.Actuator) {
	seen := make(map[string]struct{}, len(devices))
	next := make([]lora.Actuator, 0, len(devices))
	for _, d := range devices {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		next = append(next, d)
	}

	r.mu.Lock()
	r.devices = next
	if _, ok := seen[r.selected]; !ok {
		r.selected = ""
	}
	r.mu.Unlock()
}

// Merge patches the registry and returns the devices that changed.
func (r *Registry) Merge(patch []lora.Actuator) []lora.Actuator {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged, updated := Merge(r.devices, patch)
	r.devices = merged
	return updated
}

// All returns a copy of the current list in arrival order.
func (r *Registry) All() []lora.Actuator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]lora.Actuator, len(r.devices))
	copy(out, r.devices)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

func (r *Registry) Get(id string) (lora.Actuator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

func (r *Registry) getLocked(id string) (lora.Actuator, bool) {
	for _, d := range r.devices {
		if d.ID == id {
			return d, true
		}
	}
	return lora.Actuator{}, false
}

// Alias returns the display alias for id, or a generic label when unknown.
func (r *Registry) Alias(id string) string {
	if d, ok := r.Get(id); ok && d.Alias != "" {
		return d.Alias
	}
	return "Lora"
}

// Resolve finds a device by id first, then by case-insensitive alias.
func (r *Registry) Resolve(ref string) (lora.Actuator, error) {
	ref = strings.TrimSpace(ref)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.getLocked(ref); ok {
		return d, nil
	}
	for _, d := range r.devices {
		if strings.EqualFold(d.Alias, ref) {
			return d, nil
		}
	}
	return lora.Actuator{}, lora.ErrNotFound
}

// Select marks id as the device shown in the detail view.
func (r *Registry) Select(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.getLocked(id); !ok {
		return false
	}
	r.selected = id
	return true
}

// Selected always reads from the current list, so it never lags a merge.
func (r *Registry) Selected() (lora.Actuator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.selected == "" {
		return lora.Actuator{}, false
	}
	return r.getLocked(r.selected)
}
