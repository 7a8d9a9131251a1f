package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// TokenStore holds short-lived single-use tokens for account activation and
// password resets.
type TokenStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]tokenEntry
}

type tokenEntry struct {
	username string
	expires  time.Time
}

// NewTokenStore creates a token store whose tokens expire after ttl.
func NewTokenStore(ttl time.Duration) *TokenStore {
	return &TokenStore{
		ttl:    ttl,
		tokens: make(map[string]tokenEntry),
	}
}

// GenerateToken mints a token bound to the given username. Any previous
// token for the same username stays valid until it expires.
func (s *TokenStore) GenerateToken(username string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	s.tokens[token] = tokenEntry{username: username, expires: time.Now().Add(s.ttl)}
	return token, nil
}

// ConsumeToken redeems a token, returning the bound username. A token can be
// consumed at most once; expired tokens fail.
func (s *TokenStore) ConsumeToken(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	delete(s.tokens, token)
	if time.Now().After(entry.expires) {
		return "", false
	}
	return entry.username, true
}

func (s *TokenStore) purgeLocked() {
	now := time.Now()
	for token, entry := range s.tokens {
		if now.After(entry.expires) {
			delete(s.tokens, token)
		}
	}
}
