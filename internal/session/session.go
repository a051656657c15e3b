// Package session holds the signed-in identity on the client.
//
// The opaque token is the only state written to durable storage. The identity
// is recovered from the token's claims, and ledger data is always refetched.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmynk/savingcircle/internal/auth"
	"github.com/mmynk/savingcircle/internal/models"
)

// TokenStore persists the session token.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileStore keeps the token in a file readable only by the owner.
type FileStore struct {
	Path string
}

// Load returns the stored token, or "" when none is stored.
func (f FileStore) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token, creating parent directories as needed.
func (f FileStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Clear removes the token file.
func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// MemoryStore keeps the token in memory.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// Load returns the held token, or "" when none is held.
func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

// Save replaces the held token.
func (m *MemoryStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Clear forgets the held token.
func (m *MemoryStore) Clear() error {
	return m.Save("")
}

// Session is the current sign-in state. It is safe for concurrent use.
type Session struct {
	store TokenStore
	now   func() time.Time

	mu    sync.RWMutex
	token string
	user  models.User
}

// New creates a signed-out session backed by store.
func New(store TokenStore) *Session {
	return &Session{store: store, now: time.Now}
}

// Start signs in with token and persists it.
func (s *Session) Start(token string, user models.User) error {
	if err := s.store.Save(token); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = user
	return nil
}

// Restore signs in from the stored token. A missing or expired token leaves
// the session signed out; an expired token is also removed.
func (s *Session) Restore() error {
	token, err := s.store.Load()
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return fmt.Errorf("stored token unusable: %w", err)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		return s.store.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = models.User{ID: claims.UserID, Email: claims.Email, Name: claims.Name}
	return nil
}

// End signs out and removes the stored token.
func (s *Session) End() error {
	s.mu.Lock()
	s.token = ""
	s.user = models.User{}
	s.mu.Unlock()
	return s.store.Clear()
}

// Token returns the bearer token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether someone is signed in.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// CurrentUser returns the signed-in user.
func (s *Session) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.token != ""
}

// UpdateUser replaces the cached profile, e.g. after fetching it from the service.
func (s *Session) UpdateUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		s.user = user
	}
}
