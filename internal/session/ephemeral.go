package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
)

// PrivateKeyEntry is the well-known ephemeral key under which an unlocked
// vault's private key is kept as a JWK.
const PrivateKeyEntry = "cipherdesk.vault.private_jwk"

// EphemeralStore holds short-lived session state that must survive between
// CLI invocations but not beyond the login session.
type EphemeralStore interface {
	// Get returns the value for key. ok is false when nothing is stored.
	Get(key string) (value []byte, ok bool, err error)
	// Put creates or replaces the value for key.
	Put(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// MemoryStore is an EphemeralStore that lives as long as the process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.entries[key]; ok {
		for i := range value {
			value[i] = 0
		}
		delete(s.entries, key)
	}
	return nil
}

// RuntimeStore keeps each entry in its own 0600 file under Dir. Dir is
// expected to be inside $XDG_RUNTIME_DIR, which the OS clears at logout.
// Dir must be a real directory with mode 0700 owned by the current user;
// it is created that way when missing and refused otherwise.
type RuntimeStore struct {
	Dir string
}

func NewRuntimeStore(dir string) *RuntimeStore {
	return &RuntimeStore{Dir: dir}
}

func (s *RuntimeStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid session entry name %q", key)
	}
	return filepath.Join(s.Dir, key), nil
}

// checkDir verifies Dir, creating it when create is set. exists is false
// when Dir is missing and was not created.
func (s *RuntimeStore) checkDir(create bool) (exists bool, err error) {
	info, err := os.Lstat(s.Dir)
	if os.IsNotExist(err) {
		if !create {
			return false, nil
		}
		if err := os.MkdirAll(s.Dir, 0700); err != nil {
			return false, fmt.Errorf("failed to create session directory: %w", err)
		}
		info, err = os.Lstat(s.Dir)
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect session directory: %w", err)
	}

	switch {
	case !info.IsDir():
		return false, fmt.Errorf("%w: %s is not a directory", kerrors.ErrInsecureRuntimeDir, s.Dir)
	case info.Mode().Perm() != 0700:
		return false, fmt.Errorf("%w: %s has mode %o, expected 700", kerrors.ErrInsecureRuntimeDir, s.Dir, info.Mode().Perm())
	case !ownedByCurrentUser(info):
		return false, fmt.Errorf("%w: %s is owned by another user", kerrors.ErrInsecureRuntimeDir, s.Dir)
	}
	return true, nil
}

func (s *RuntimeStore) Get(key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	exists, err := s.checkDir(false)
	if err != nil || !exists {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session entry: %w", err)
	}
	return data, true, nil
}

// Put writes the entry through a temporary file and a rename so a reader
// never sees a partial key.
func (s *RuntimeStore) Put(key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if _, err := s.checkDir(true); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.Dir, "."+key+".*")
	if err != nil {
		return fmt.Errorf("failed to create session entry: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict session entry permissions: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session entry: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to store session entry: %w", err)
	}
	return nil
}

func (s *RuntimeStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session entry: %w", err)
	}
	return nil
}
