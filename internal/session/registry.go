package session

import (
	"sync"

	"github.com/soumetsu-project/soumetsu/internal/models"
)

// Registry indexes online sessions by token.
type Registry struct {
	mu     sync.RWMutex
	byTok  map[string]*Session
	byUser map[int64]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byTok:  make(map[string]*Session),
		byUser: make(map[int64]*Session),
	}
}

// Add stores s. A session already registered for the same user is replaced
// in the user index and returned so the caller can destroy it.
func (r *Registry) Add(s *Session) (previous *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[s.user.ID]; ok && old.token != s.token {
		previous = old
	}
	r.byTok[s.token] = s
	r.byUser[s.user.ID] = s
	return previous
}

// Get returns the session for token.
func (r *Registry) Get(token string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byTok[token]
	return s, ok
}

// ByUserID returns the newest session for a user.
func (r *Registry) ByUserID(id int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[id]
	return s, ok
}

// ByName finds a session by username, compared in safe form.
func (r *Registry) ByName(name string) (*Session, bool) {
	safe := models.SafeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byUser {
		if s.user.NameSafe == safe || models.SafeName(s.user.Name) == safe {
			return s, true
		}
	}
	return nil, false
}

// Remove deletes the session for token and reports whether it existed.
func (r *Registry) Remove(token string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byTok[token]
	if !ok {
		return nil, false
	}
	delete(r.byTok, token)
	if cur, ok := r.byUser[s.user.ID]; ok && cur.token == token {
		delete(r.byUser, s.user.ID)
	}
	return s, true
}

// All returns a snapshot of every session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byTok))
	for _, s := range r.byTok {
		out = append(out, s)
	}
	return out
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTok)
}
