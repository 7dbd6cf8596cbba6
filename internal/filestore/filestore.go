// Package filestore keeps uploaded document blobs on local disk, keyed by
// sortable identifiers and sharded into two-character prefix directories.
// The database stores only the returned location reference.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vendorhub.org/internal/ids"
)

// ErrTooLarge reports a blob exceeding the configured size ceiling.
var ErrTooLarge = errors.New("filestore: file too large")

// Store writes and reads document blobs under a root directory.
type Store struct {
	root     string
	maxBytes int64
}

// New creates the root directory if needed.
func New(root string, maxBytes int64) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("filestore: root directory is required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("filestore: max size must be positive")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &Store{root: root, maxBytes: maxBytes}, nil
}

// Save streams the reader to a new blob and returns its location reference
// and size. Fails with ErrTooLarge past the ceiling; the partial file is
// removed on any failure.
func (s *Store) Save(r io.Reader) (location string, size int64, err error) {
	key := ids.New()
	location = filepath.Join(key[:2], key)
	path := filepath.Join(s.root, location)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", 0, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, err
	}
	// Read one byte past the limit so oversize input is detected rather
	// than silently truncated.
	size, err = io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && size > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return location, size, nil
}

// Open returns a reader for the blob at location.
func (s *Store) Open(location string) (io.ReadCloser, error) {
	path, err := s.resolve(location)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes the blob at location. Removing a missing blob is not an
// error.
func (s *Store) Remove(location string) error {
	path, err := s.resolve(location)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// resolve rejects location references that escape the root.
func (s *Store) resolve(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", errors.New("filestore: location is required")
	}
	path := filepath.Join(s.root, filepath.Clean("/"+location))
	if !strings.HasPrefix(path, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", errors.New("filestore: invalid location")
	}
	return path, nil
}
