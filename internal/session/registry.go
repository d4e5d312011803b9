package session

import "sync"

// Registry holds the process-wide mutables every tool call reads: the active
// project id, the active session id, and a cached team-membership list keyed
// to that session. All behind one RWMutex with a clear lifecycle (set on
// session_start, read on every tool call, cleared on session close), and the
// team cache is invalidated whenever the session id changes (spec §5, §9).
type Registry struct {
	mu sync.RWMutex

	projectID string
	sessionID string

	teamCache   []string
	teamCacheOK bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// SetSession records the active project/session, invalidating the cached
// team membership if the session id actually changed.
func (r *Registry) SetSession(projectID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sessionID != r.sessionID {
		r.teamCache = nil
		r.teamCacheOK = false
	}
	r.projectID = projectID
	r.sessionID = sessionID
}

// Clear resets every mutable, used on explicit session close (spec §4.9).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projectID = ""
	r.sessionID = ""
	r.teamCache = nil
	r.teamCacheOK = false
}

func (r *Registry) Active() (projectID, sessionID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projectID, r.sessionID
}

// CachedTeam returns the cached team membership list, if one is populated
// for the current session.
func (r *Registry) CachedTeam() ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.teamCacheOK {
		return nil, false
	}
	return r.teamCache, true
}

// SetCachedTeam populates the team-membership cache for the current session.
func (r *Registry) SetCachedTeam(members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teamCache = members
	r.teamCacheOK = true
}
