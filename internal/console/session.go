package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charlesng35/hrconsole/internal/client"
)

// Session is the persisted sign in state.
type Session struct {
	BaseURL  string           `json:"base_url"`
	Tokens   client.Tokens    `json:"tokens"`
	Identity *client.Identity `json:"identity,omitempty"`
	SavedAt  time.Time        `json:"saved_at"`
}

// SessionStore persists the session between runs. Load returns (nil, nil) when nothing is stored.
type SessionStore interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// FileSessionStore keeps the session as a JSON file readable only by the owner.
type FileSessionStore struct {
	path string
}

// NewFileSessionStore stores the session at path.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// DefaultSessionPath is ~/.hrconsole/session.json, falling back to the working directory.
func DefaultSessionPath() string {
	if dir, err := os.UserHomeDir(); err == nil && dir != "" {
		return filepath.Join(dir, ".hrconsole", "session.json")
	}
	return ".hrconsole-session.json"
}

func (s *FileSessionStore) Path() string { return s.path }

func (s *FileSessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session store: read: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("session store: decode: %w", err)
	}
	return &session, nil
}

// Save writes through a temporary file so a crash never leaves a half written session.
func (s *FileSessionStore) Save(session *Session) error {
	if session == nil {
		return s.Clear()
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("session store: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session store: create dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session store: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("session store: replace: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session store: remove: %w", err)
	}
	return nil
}

// MemorySessionStore keeps the session in memory, for tests and one-shot runs.
type MemorySessionStore struct {
	mu      sync.Mutex
	session *Session
}

func (s *MemorySessionStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	copied := *s.session
	return &copied, nil
}

func (s *MemorySessionStore) Save(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		s.session = nil
		return nil
	}
	copied := *session
	s.session = &copied
	return nil
}

func (s *MemorySessionStore) Clear() error {
	return s.Save(nil)
}
