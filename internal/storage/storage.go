// Package storage keeps uploaded documents on disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const extension = ".pdf"

var (
	// ErrInvalidKey is returned for keys that were not issued by the store.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrNotFound is returned when no object exists for a key.
	ErrNotFound = errors.New("object not found")
)

// Store is a directory of immutable objects addressed by generated keys.
type Store struct {
	root string
}

// New creates the store, creating the root directory if needed.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{root: abs}, nil
}

// Put writes the content to a new object and returns its key and size.
// The object only becomes visible once it is completely written.
func (s *Store) Put(r io.Reader) (string, int64, error) {
	key := uuid.NewString() + extension

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}
	name := tmp.Name()
	tmp = nil

	if err := os.Rename(name, filepath.Join(s.root, key)); err != nil {
		os.Remove(name)
		return "", 0, fmt.Errorf("failed to store object: %w", err)
	}

	log.Debug("stored object", "key", key, "size", size)
	return key, size, nil
}

// Open opens the object for reading. The caller must close it.
func (s *Store) Open(key string) (*os.File, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *Store) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// path maps a key to its file. Only keys of the form <uuid>.pdf are accepted,
// so a key can never point outside the root.
func (s *Store) path(key string) (string, error) {
	id, ok := strings.CutSuffix(key, extension)
	if !ok {
		return "", ErrInvalidKey
	}
	if _, err := uuid.Parse(id); err != nil || strings.ContainsAny(id, `/\.`) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, key), nil
}
