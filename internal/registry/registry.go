// Package registry tracks a stream controller's live subscribers: each
// subscriber's bounded delivery queue and, for Filter controllers, the
// keywords it tracks.
package registry

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jodal/patsgw/internal/eventfilter"
)

// Subscription is one subscriber's membership in a controller's
// registry. Its Queue is written only by the owning controller and
// read only by the external consumer (the websocket handler).
type Subscription struct {
	ID       string
	Keywords []string
	Queue    chan eventfilter.Event
}

// New creates a subscription with a fresh UUIDv7 identifier and a
// queue of the given capacity. keywords is nil/empty for Sample
// controllers.
func New(keywords []string, queueCapacity int) *Subscription {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if crypto/rand is exhausted; fall back
		// to a random v4 rather than leaving the subscription unidentified.
		id = uuid.New()
	}
	return &Subscription{
		ID:       id.String(),
		Keywords: keywords,
		Queue:    make(chan eventfilter.Event, queueCapacity),
	}
}

// Registry is a controller-private map from subscription ID to
// subscription. All operations are serialized with respect to the
// owning controller's state transitions by the controller itself;
// Registry only guarantees that Snapshot observes a consistent view
// concurrently with Add/Remove.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewRegistry returns an empty registry ready for use.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscription)}
}

// Add inserts sub into the registry.
func (r *Registry) Add(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ID] = sub
}

// Remove deletes the subscription with the given id, if present, and
// reports whether the registry is now empty. Removing an id that is
// not present (already removed) is a no-op and reports the current
// emptiness.
func (r *Registry) Remove(id string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
	return len(r.subs) == 0
}

// Len returns the current number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Snapshot returns a stable slice of all current subscriptions for
// fan-out iteration. The slice is a copy: concurrent Add/Remove calls
// do not mutate it and are not blocked by it.
func (r *Registry) Snapshot() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

// CurrentKeywords returns the sorted, deduplicated union of keyword
// lists across all live subscriptions. It is a pure function of the
// registry contents and is the value sent to the upstream's track
// parameter for Filter controllers.
func (r *Registry) CurrentKeywords() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, s := range r.subs {
		for _, kw := range s.Keywords {
			seen[kw] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for kw := range seen {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}
