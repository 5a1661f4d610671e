package detector

import "sync"

// Registry maps keys to block expiry instants. Entries are never removed at
// expiry; a key is blocked iff its entry is in the future at read time.
type Registry struct {
	mu      sync.RWMutex
	expires map[string]int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{expires: make(map[string]int64)}
}

// Blocked reports whether key has a non-expired block at nowMs.
func (r *Registry) Blocked(key string, nowMs int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exp, ok := r.expires[key]
	return ok && exp > nowMs
}

// Set records a block for key, overwriting any previous entry.
func (r *Registry) Set(key string, expiresAtMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expires[key] = expiresAtMs
}

// Active returns the keys still blocked at nowMs mapped to their expiry.
func (r *Registry) Active(nowMs int64) map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make(map[string]int64)
	for key, exp := range r.expires {
		if exp > nowMs {
			active[key] = exp
		}
	}
	return active
}

// Size returns the number of entries, expired ones included.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.expires)
}
