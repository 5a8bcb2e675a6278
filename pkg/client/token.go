package client

import (
	"context"
	"sync"
)

// TokenProvider supplies bearer tokens. Clear is called when the API rejects the current token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Clear()
}

// StaticToken always returns the same token. An empty token sends anonymous requests.
type StaticToken string

// Token returns the fixed token.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// Clear is a no-op for static tokens.
func (StaticToken) Clear() {}

// MemoryTokenStore holds a token that can be replaced at runtime, e.g. after a login refresh.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns a store seeded with token.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

// Set replaces the stored token.
func (m *MemoryTokenStore) Set(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// Token returns the stored token.
func (m *MemoryTokenStore) Token(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

// Clear forgets the stored token.
func (m *MemoryTokenStore) Clear() {
	m.Set("")
}
