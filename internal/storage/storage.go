package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Storage is the traversal-safe view of the upload root. Every path is a
// client path relative to the root.
type Storage interface {
	RootAbs() string
	Resolve(clientPath string) (string, error)
	MkdirAll(clientPath string, perm fs.FileMode) error
	Stat(clientPath string) (fs.FileInfo, error)
	Remove(clientPath string) error
	OpenForRead(clientPath string) (*os.File, error)
	Create(clientPath string) (*os.File, error)
}

type LocalStorage struct {
	validator *PathValidator
}

var _ Storage = (*LocalStorage)(nil)

func New(root string) (*LocalStorage, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStorage{validator: validator}, nil
}

func (s *LocalStorage) RootAbs() string {
	return s.validator.RootAbs()
}

func (s *LocalStorage) Resolve(clientPath string) (string, error) {
	return s.validator.ResolvePath(clientPath)
}

func (s *LocalStorage) MkdirAll(clientPath string, perm fs.FileMode) error {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(resolved, perm); err != nil {
		return fmt.Errorf("mkdir %q: %w", clientPath, err)
	}

	return nil
}

func (s *LocalStorage) Stat(clientPath string) (fs.FileInfo, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return nil, err
	}

	return os.Stat(resolved)
}

// Remove deletes a single file. The root itself can never be removed.
func (s *LocalStorage) Remove(clientPath string) error {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return err
	}

	if resolved == s.RootAbs() {
		return fmt.Errorf("remove %q: refusing to remove storage root", clientPath)
	}

	if err := os.Remove(resolved); err != nil {
		return fmt.Errorf("remove %q: %w", clientPath, err)
	}

	return nil
}

func (s *LocalStorage) OpenForRead(clientPath string) (*os.File, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return nil, err
	}

	return os.Open(resolved)
}

// Create opens a new file for writing, creating parent directories. It fails
// with fs.ErrExist rather than truncate an existing file.
func (s *LocalStorage) Create(clientPath string) (*os.File, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}

	return os.OpenFile(resolved, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}
