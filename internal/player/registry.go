package player

import (
	"maps"
	"slices"
	"sync"
)

// Registry maps guild IDs to sessions. Sessions are created on first reference and kept
// for the lifetime of the process.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Get(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok {
		return s
	}
	s := newSession(guildID)
	r.sessions[guildID] = s
	return s
}

func (r *Registry) Peek(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[guildID]
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Active counts sessions that hold or are acquiring a transport.
func (r *Registry) Active() int {
	r.mu.Lock()
	sessions := slices.Collect(maps.Values(r.sessions))
	r.mu.Unlock()

	n := 0
	for _, s := range sessions {
		if s.Snapshot().State != StateIdle {
			n++
		}
	}
	return n
}
