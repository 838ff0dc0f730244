package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes images to a directory served statically under PublicPrefix.
type LocalStore struct {
	Dir          string
	PublicPrefix string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, publicPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &LocalStore{Dir: dir, PublicPrefix: strings.TrimRight(publicPrefix, "/")}, nil
}

func (s *LocalStore) Save(_ context.Context, key, _ string, _ int64, r io.Reader) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return s.PublicPrefix + "/" + key, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) Key(path string) (string, bool) {
	key, ok := strings.CutPrefix(path, s.PublicPrefix+"/")
	if !ok {
		return "", false
	}
	if _, err := s.path(key); err != nil {
		return "", false
	}
	return key, true
}

// path resolves key inside Dir; keys are flat file names.
func (s *LocalStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid image key %q", key)
	}
	return filepath.Join(s.Dir, key), nil
}
