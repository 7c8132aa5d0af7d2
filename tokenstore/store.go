// Package tokenstore holds the session credentials used by the API client:
// access token, refresh token and organization token.
//
// Every backend satisfies httpclient.TokenStore. Getters return "" for an absent token.
package tokenstore

import (
	"context"
	"sync"
)

// Default token names, shared by the cookie and Redis backends
const (
	AccessTokenName  = "accessToken"
	RefreshTokenName = "refreshToken"
	OrgTokenName     = "orgToken"
)

// Credentials is a snapshot of the three stored tokens
type Credentials struct {
	AccessToken  string
	RefreshToken string
	OrgToken     string
}

// OrgTokenSetter is implemented by backends that can also persist the organization token.
// The client never writes it; login flows do.
type OrgTokenSetter interface {
	SetOrgToken(ctx context.Context, token string) error
}

// Memory keeps tokens in process memory
type Memory struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemory returns a store pre-populated with creds
func NewMemory(creds Credentials) *Memory {
	return &Memory{creds: creds}
}

// AccessToken returns the stored access token
func (m *Memory) AccessToken(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.AccessToken, nil
}

// RefreshToken returns the stored refresh token
func (m *Memory) RefreshToken(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.RefreshToken, nil
}

// OrgToken returns the stored organization token
func (m *Memory) OrgToken(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.OrgToken, nil
}

// SetTokens replaces the access/refresh pair
func (m *Memory) SetTokens(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds.AccessToken = access
	m.creds.RefreshToken = refresh
	return nil
}

// SetOrgToken replaces the organization token
func (m *Memory) SetOrgToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds.OrgToken = token
	return nil
}

// ClearTokens removes all three tokens
func (m *Memory) ClearTokens(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
	return nil
}

// Snapshot returns a copy of the stored credentials
func (m *Memory) Snapshot() Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}
