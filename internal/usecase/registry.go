package usecase

import "sync"

// Registry tracks the single active session per (subject, content) target.
// Replacement is a cancel-then-register transaction under one lock, so two
// sessions can never race to write the same cache key: by the time a new
// session is visible, the old one is already cancelled.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register installs s as the active session for its target, cancelling any
// session currently holding it.
func (r *Registry) Register(s *Session) {
	target := s.Key.Target()
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.sessions[target]; ok {
		prev.Cancel()
	}
	r.sessions[target] = s
}

// Release removes s from the registry. Only the owning entry is removed: if
// a newer session has already replaced s, the newer entry stays.
func (r *Registry) Release(s *Session) {
	target := s.Key.Target()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[target] == s {
		delete(r.sessions, target)
	}
}

// Cancel cancels the active session for target, if any. Used on mode switch
// and shutdown; the owning goroutine observes the flag cooperatively.
func (r *Registry) Cancel(target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[target]; ok {
		s.Cancel()
		return true
	}
	return false
}

// Active returns the in-flight session for target, or nil.
func (r *Registry) Active(target string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[target]
}
