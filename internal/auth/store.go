package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Record is the persisted credential material of one account. It never
// contains plaintext passwords, only token material.
type Record struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Store persists credential records to a single shared JSON file, one entry
// per account identifier. Writes go to a temp file in the same directory and
// are renamed into place; a sidecar flock guards against concurrent
// processes reading a partial write.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a store at path. The file is created on first save.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Load reads all records, holding a shared lock for the duration. A missing
// file is an empty store, not an error.
func (s *Store) Load() (map[string]Record, error) {
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock.RLock failed: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Record{}, nil
		}
		return nil, fmt.Errorf("os.ReadFile failed: %w", err)
	}

	records := map[string]Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("json.Unmarshal failed: %w", err)
	}

	return records, nil
}

// Save atomically replaces the store contents under an exclusive lock.
func (s *Store) Save(records map[string]Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("os.MkdirAll failed: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock.Lock failed: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("json.MarshalIndent failed: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("os.CreateTemp failed: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("tmp.Write failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("tmp.Close failed: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("os.Chmod failed: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("os.Rename failed: %w", err)
	}

	return nil
}
