// Package auth manages the provider API token. Resolution order: the
// BOARDCTL_TOKEN environment variable, then the OS keyring, then a plaintext
// fallback file for systems without a keyring.
package auth

import (
	"os"
	"strings"

	"github.com/wordflux/boardctl/internal/output"
)

// EnvToken is the environment variable that overrides any stored token.
const EnvToken = "BOARDCTL_TOKEN"

// Manager resolves and manages the token for one provider origin.
type Manager struct {
	store  *Store
	origin string
}

// NewManager creates a manager for the given provider base URL, storing
// fallback tokens under fallbackDir.
func NewManager(origin, fallbackDir string) *Manager {
	return &Manager{store: NewStore(fallbackDir), origin: origin}
}

// Status describes where the active token comes from.
type Status struct {
	Authenticated bool   `json:"authenticated"`
	Source        string `json:"source,omitempty"` // "env", "keyring", or "file"
	Origin        string `json:"origin"`
}

// Token returns the active token, preferring the environment override.
// A missing token is an auth error, not an empty string.
func (m *Manager) Token() (string, error) {
	if tok := strings.TrimSpace(os.Getenv(EnvToken)); tok != "" {
		return tok, nil
	}
	tok, err := m.store.Load(m.origin)
	if err != nil {
		return "", err
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", output.ErrAuth("Not logged in")
	}
	return tok, nil
}

// Login stores a token for the origin.
func (m *Manager) Login(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return output.ErrUsage("Token must not be empty")
	}
	return m.store.Save(m.origin, token)
}

// Logout removes the stored token. The environment override, if set, is the
// caller's to unset.
func (m *Manager) Logout() error {
	return m.store.Delete(m.origin)
}

// Status reports whether a token is available and from where.
func (m *Manager) Status() Status {
	st := Status{Origin: m.origin}
	if strings.TrimSpace(os.Getenv(EnvToken)) != "" {
		st.Authenticated = true
		st.Source = "env"
		return st
	}
	tok, err := m.store.Load(m.origin)
	if err == nil && strings.TrimSpace(tok) != "" {
		st.Authenticated = true
		if m.store.useKeyring {
			st.Source = "keyring"
		} else {
			st.Source = "file"
		}
	}
	return st
}
