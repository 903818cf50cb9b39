package editor

import "sync"

// Registry holds the live editing sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  func() *Session
}

func NewRegistry(factory func() *Session) *Registry {
	return &Registry{sessions: map[string]*Session{}, factory: factory}
}

func (r *Registry) Create() *Session {
	s := r.factory()
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}
