// File: /services/oauth_state.go
package services

import (
	"sync"
	"time"
)

type pendingState struct {
	verifier  string
	expiresAt time.Time
}

type parkedResult struct {
	result    AuthResult
	expiresAt time.Time
}

// StateStore holds in-flight OAuth redirects and the results of completed
// ones until the client that started them picks them up.
type StateStore struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	states  map[string]pendingState
	results map[string]parkedResult
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		ttl:     ttl,
		now:     time.Now,
		states:  map[string]pendingState{},
		results: map[string]parkedResult{},
	}
}

func (s *StateStore) PutState(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = pendingState{verifier: verifier, expiresAt: s.now().Add(s.ttl)}
}

// TakeState returns the PKCE verifier for state and forgets it.
func (s *StateStore) TakeState(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.states[state]
	if !ok {
		return "", false
	}
	delete(s.states, state)
	if s.now().After(p.expiresAt) {
		return "", false
	}
	return p.verifier, true
}

func (s *StateStore) PutResult(state string, result AuthResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[state] = parkedResult{result: result, expiresAt: s.now().Add(s.ttl)}
}

// TakeResult hands out a parked result exactly once.
func (s *StateStore) TakeResult(state string) (AuthResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[state]
	if !ok {
		return AuthResult{}, false
	}
	delete(s.results, state)
	if s.now().After(r.expiresAt) {
		return AuthResult{}, false
	}
	return r.result, true
}

// Purge removes expired states and unclaimed results.
func (s *StateStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, v := range s.states {
		if now.After(v.expiresAt) {
			delete(s.states, k)
			removed++
		}
	}
	for k, v := range s.results {
		if now.After(v.expiresAt) {
			delete(s.results, k)
			removed++
		}
	}
	return removed
}
