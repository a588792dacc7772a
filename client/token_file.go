// File: /client/token_file.go
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trailcatalog-api/models"
)

// Session is the persisted sign-in state. It outlives the process so a
// later run starts already signed in.
type Session struct {
	Token        string          `json:"token,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at,omitempty"`
	User         *models.Profile `json:"user,omitempty"`
	PendingState string          `json:"pending_state,omitempty"`
}

// TokenFile stores a Session as JSON readable only by the owner.
type TokenFile struct {
	path string
	mu   sync.Mutex
}

func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// DefaultTokenFile lives in the user config directory.
func DefaultTokenFile() (*TokenFile, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return NewTokenFile(filepath.Join(dir, "trailcatalog", "session.json")), nil
}

func (f *TokenFile) Path() string {
	return f.path
}

// Load returns an empty Session when nothing was saved yet.
func (f *TokenFile) Load() (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s Session
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("corrupt session file %s: %w", f.path, err)
	}
	return s, nil
}

func (f *TokenFile) Save(s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0600)
}

func (f *TokenFile) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
