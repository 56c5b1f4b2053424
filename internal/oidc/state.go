package oidc

import (
	"strings"
	"sync"
	"time"

	"github.com/go-admin-template/go-admin-template/internal/uniuri"
)

// StateSeparator joins the provider identifier and the random part of a
// state token. Provider identifiers must not contain it.
const StateSeparator = ":"

// IssueState creates a state token tagged with the provider identifier.
// The random part carries roughly 130 bits of entropy.
func IssueState(providerID string) string {
	return providerID + StateSeparator + uniuri.NewLen(uniuri.StateLen)
}

// ParseState splits a state token into its provider identifier and random
// part. It fails with ErrMalformedState when the separator is absent or
// either part is empty.
func ParseState(state string) (providerID, randomPart string, err error) {
	providerID, randomPart, found := strings.Cut(state, StateSeparator)
	if !found || providerID == "" || randomPart == "" {
		return "", "", ErrMalformedState
	}

	return providerID, randomPart, nil
}

// stateStore tracks issued state tokens for single-use enforcement.
// Entries expire after the TTL; consuming removes them.
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{
		states: make(map[string]time.Time),
		ttl:    ttl,
	}
}

// add records a freshly issued state token.
func (s *stateStore) add(state string) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic cleanup keeps the map bounded without a background goroutine.
	for k, issued := range s.states {
		if now.Sub(issued) > s.ttl {
			delete(s.states, k)
		}
	}

	s.states[state] = now
}

// consume removes a state token and reports whether it was known and unexpired.
func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	issued, ok := s.states[state]
	if !ok {
		return false
	}

	delete(s.states, state)

	return time.Since(issued) <= s.ttl
}
