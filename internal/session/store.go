// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// FileName is the token file inside the data directory.
const FileName = "session.json"

// FileStore persists Tokens as a single JSON file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore returns a store for <dir>/session.json, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, FileName)}, nil
}

// Path returns the token file path.
func (s *FileStore) Path() string { return s.path }

// Load returns the stored tokens, or nil if there are none.
func (s *FileStore) Load() (*Tokens, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if t.AccessToken == "" {
		return nil, nil
	}
	return &t, nil
}

// Save atomically replaces the token file.
func (s *FileStore) Save(t *Tokens) error {
	raw, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := renameio.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Remove deletes the token file. A missing file is not an error.
func (s *FileStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
