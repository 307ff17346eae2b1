package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// FileStateStore is a file-based implementation that persists state to a
// single JSON document on disk
type FileStateStore struct {
	path string
}

// NewFileStateStore creates a new file-based state store
func NewFileStateStore(path string) (*FileStateStore, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path required")
	}
	return &FileStateStore{path: path}, nil
}

// Path returns the location of the state file
func (s *FileStateStore) Path() string {
	return s.path
}

// Load reads the state file. A missing file means there is no prior run.
func (s *FileStateStore) Load(ctx context.Context) (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, WrapError(ErrorKindStateLoad, fmt.Errorf("failed to read state file: %w", err))
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, WrapError(ErrorKindStateLoad, fmt.Errorf("failed to unmarshal state file %s: %w", s.path, err))
	}
	state.normalize()
	return &state, nil
}

// Save atomically replaces the state file
func (s *FileStateStore) Save(ctx context.Context, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Delete removes the state file
func (s *FileStateStore) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}
