package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	sessionFileName = "session.json"
	filePerms       = 0600 // Owner read/write only
)

// SessionState is what survives restarts: the agent user id and which
// wallet addresses the agent has already been told about.
type SessionState struct {
	UserID        string          `json:"user_id,omitempty"`
	WalletNotices map[string]bool `json:"wallet_notices,omitempty"`
}

// NoticeSent reports whether the agent was told about address.
func (s *SessionState) NoticeSent(address string) bool {
	return s.WalletNotices[noticeKey(address)]
}

func (s *SessionState) markNotice(address string) {
	if s.WalletNotices == nil {
		s.WalletNotices = make(map[string]bool)
	}
	s.WalletNotices[noticeKey(address)] = true
}

func noticeKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SessionStore loads and saves SessionState.
type SessionStore interface {
	Load() (SessionState, error)
	Save(SessionState) error
}

// FileStore keeps SessionState in <dataDir>/session.json.
type FileStore struct {
	mu       sync.Mutex
	filePath string
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{filePath: filepath.Join(dataDir, sessionFileName)}, nil
}

// Path returns the session file location.
func (s *FileStore) Path() string {
	return s.filePath
}

// Load returns the stored state. A missing file is an empty state.
func (s *FileStore) Load() (SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return SessionState{}, nil
	}
	if err != nil {
		return SessionState{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var st SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return SessionState{}, fmt.Errorf("failed to parse session file: %w", err)
	}
	return st, nil
}

// Save writes the state atomically with owner-only permissions.
func (s *FileStore) Save(st SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, filePerms); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup of temp file
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}
