package liveness

import (
	"sort"
	"sync"
)

// TrackerStatus is a read-only view of a tracker for reporting.
type TrackerStatus struct {
	Identity         string `json:"identity"`
	State            string `json:"state"`
	BlinkCounter     int    `json:"blink_counter"`
	ChallengeCounter int    `json:"challenge_counter"`
	LastSeenFrame    uint64 `json:"last_seen_frame"`
}

// Registry owns exactly one tracker per identity label.
// Trackers are created on first sighting.
type Registry struct {
	cfg      Config
	pick     DirectionPicker
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, pick DirectionPicker) *Registry {
	return &Registry{
		cfg:      cfg,
		pick:     pick,
		trackers: make(map[string]*Tracker),
	}
}

// Step fetches or creates the tracker for identity and advances it.
func (r *Registry) Step(identity string, obs Observation, alreadyMarked bool) (Result, State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trackers[identity]
	if !ok {
		t = NewTracker(r.cfg, r.pick)
		r.trackers[identity] = t
	}

	res, err := t.Step(obs, alreadyMarked)
	return res, t.State(), err
}

// Reset returns the tracker for identity to AwaitingBlink, if it exists.
func (r *Registry) Reset(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trackers[identity]; ok {
		t.Reset()
	}
}

// Evict drops trackers not seen during the last IdleEvictFrames frames.
// Does nothing when eviction is disabled. Returns the evicted identities.
func (r *Registry) Evict(currentFrame uint64) []string {
	if r.cfg.IdleEvictFrames == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, t := range r.trackers {
		if currentFrame > t.LastSeen() && currentFrame-t.LastSeen() > r.cfg.IdleEvictFrames {
			delete(r.trackers, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Len returns the number of tracked identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}

// Snapshot returns the status of all trackers sorted by identity.
func (r *Registry) Snapshot() []TrackerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TrackerStatus, 0, len(r.trackers))
	for id, t := range r.trackers {
		out = append(out, TrackerStatus{
			Identity:         id,
			State:            t.State().String(),
			BlinkCounter:     t.BlinkCounter(),
			ChallengeCounter: t.ChallengeCounter(),
			LastSeenFrame:    t.LastSeen(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}
