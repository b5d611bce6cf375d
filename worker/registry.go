package worker

import "sync"

// Registry tracks which campaigns currently have a live runner. Acquire
// is a test-and-set, so at most one runner ever exists per campaign.
// Removing a campaign is also how a runner is told to stop: the runner
// checks Active before every send unit and exits when its entry is gone.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]struct{})}
}

// Acquire claims the campaign for a new runner. It returns false when a
// runner already holds it.
func (r *Registry) Acquire(campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[campaignID]; ok {
		return false
	}
	r.active[campaignID] = struct{}{}
	return true
}

// Release drops the campaign's entry. Safe to call when no entry exists.
func (r *Registry) Release(campaignID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, campaignID)
}

// Active reports whether the campaign still holds a registry entry.
func (r *Registry) Active(campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[campaignID]
	return ok
}
