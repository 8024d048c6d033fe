package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileStore keeps the session record in a JSON file, replaced atomically on
// every write so a crash never leaves half a credential behind.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path, creating its directory
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("error creating session directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the file backing the store
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var entries map[string]*Record
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", s.path, err)
	}
	rec, ok := entries[CredentialKey]
	if !ok || rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *FileStore) Save(_ context.Context, rec *Record) error {
	data, err := json.Marshal(map[string]*Record{CredentialKey: rec})
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(s.path, 0o600)
}

func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
