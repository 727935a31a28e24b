package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const serviceName = "boardctl"

// Store handles provider token storage, preferring the system keychain with
// a plaintext file fallback.
type Store struct {
	useKeyring  bool
	fallbackDir string
}

// NewStore creates a token store.
func NewStore(fallbackDir string) *Store {
	// Skip keyring for tests or when explicitly disabled
	if os.Getenv("BOARDCTL_NO_KEYRING") != "" {
		return &Store{useKeyring: false, fallbackDir: fallbackDir}
	}

	// Test if keyring is available
	testKey := "boardctl::test"
	err := keyring.Set(serviceName, testKey, "test")
	if err == nil {
		_ = keyring.Delete(serviceName, testKey) // Best-effort cleanup
		return &Store{useKeyring: true, fallbackDir: fallbackDir}
	}
	fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, token stored in plaintext under %s\n",
		fallbackDir)
	return &Store{useKeyring: false, fallbackDir: fallbackDir}
}

// key returns the keyring key for an origin (the provider base URL).
func key(origin string) string {
	return fmt.Sprintf("boardctl::%s", origin)
}

func (s *Store) tokenPath(origin string) string {
	return filepath.Join(s.fallbackDir, "token-"+sanitizeOrigin(origin))
}

// Save stores the token for the given origin.
func (s *Store) Save(origin, token string) error {
	if s.useKeyring {
		return keyring.Set(serviceName, key(origin), token)
	}
	if err := os.MkdirAll(s.fallbackDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.tokenPath(origin), []byte(token), 0o600)
}

// Load retrieves the token for the given origin. A missing token returns
// ("", nil).
func (s *Store) Load(origin string) (string, error) {
	if s.useKeyring {
		token, err := keyring.Get(serviceName, key(origin))
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return token, err
	}
	data, err := os.ReadFile(s.tokenPath(origin))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Delete removes the stored token for the given origin.
func (s *Store) Delete(origin string) error {
	if s.useKeyring {
		err := keyring.Delete(serviceName, key(origin))
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	err := os.Remove(s.tokenPath(origin))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// sanitizeOrigin turns a base URL into a safe file name component.
func sanitizeOrigin(origin string) string {
	out := make([]rune, 0, len(origin))
	for _, r := range origin {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
