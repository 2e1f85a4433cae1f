// Package registry tracks which users currently hold live connections.
// A user is online while at least one of their connections is registered;
// the transition edges are reported atomically so presence events cannot
// double-fire under concurrent connects and disconnects.
package registry

import "sync"

const shardCount = 16

type shard struct {
	mu    sync.Mutex
	conns map[int]map[string]struct{} // userID -> set of connIDs
}

// Registry is a sharded map of user ids to their active connection ids.
type Registry struct {
	shards [shardCount]*shard

	ownerMu sync.RWMutex
	owner   map[string]int // connID -> userID
}

// New constructs an empty Registry.
func New() *Registry {
	r := &Registry{owner: make(map[string]int)}
	for i := range r.shards {
		r.shards[i] = &shard{conns: make(map[int]map[string]struct{})}
	}
	return r
}

func (r *Registry) shardFor(userID int) *shard {
	if userID < 0 {
		userID = -userID
	}
	return r.shards[userID%shardCount]
}

// Add registers a connection for the user and reports whether this was the
// user's first live connection.
func (r *Registry) Add(userID int, connID string) (wentOnline bool) {
	r.ownerMu.Lock()
	r.owner[connID] = userID
	r.ownerMu.Unlock()

	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		s.conns[userID] = set
	}
	wentOnline = len(set) == 0
	set[connID] = struct{}{}
	return wentOnline
}

// Remove unregisters a connection and reports whether the user dropped to
// zero connections. Removing an unknown connection reports false.
func (r *Registry) Remove(userID int, connID string) (wentOffline bool) {
	r.ownerMu.Lock()
	delete(r.owner, connID)
	r.ownerMu.Unlock()

	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.conns[userID]
	if !ok {
		return false
	}
	if _, ok := set[connID]; !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(s.conns, userID)
		return true
	}
	return false
}

// Connections returns a snapshot of the user's connection ids.
func (r *Registry) Connections(userID int) []string {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.conns[userID]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID int) bool {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns[userID]) > 0
}

// UserOf resolves a connection id back to its user.
func (r *Registry) UserOf(connID string) (int, bool) {
	r.ownerMu.RLock()
	defer r.ownerMu.RUnlock()
	userID, ok := r.owner[connID]
	return userID, ok
}

// OnlineCount returns the number of users with at least one connection.
func (r *Registry) OnlineCount() int {
	total := 0
	for _, s := range r.shards {
		s.mu.Lock()
		total += len(s.conns)
		s.mu.Unlock()
	}
	return total
}
