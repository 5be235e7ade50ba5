// Package credentials stores the access tokens the chatrelay CLI sends to
// servers, keyed by server URL.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	// TokenEnvVar overrides any stored token.
	TokenEnvVar = "CHATRELAY_TOKEN"
)

// Manager manages reading and writing credentials.toml in the .chatrelay/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .chatrelay/ directory; otherwise the standard dotdir resolution
// applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version: currentVersion,
				Servers: make(map[string]ServerCredential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Servers == nil {
		creds.Servers = make(map[string]ServerCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetToken stores the token for the server at target.
func (m *Manager) SetToken(target, token string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Servers[normalize(target)] = ServerCredential{Token: token}

	return m.Save(creds)
}

// GetToken returns the token for target. CHATRELAY_TOKEN wins over the
// stored value. Returns an empty string if nothing is stored.
func (m *Manager) GetToken(target string) (string, error) {
	if t := os.Getenv(TokenEnvVar); t != "" {
		return t, nil
	}

	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Servers[normalize(target)].Token, nil
}

// RemoveToken deletes the stored token for target.
func (m *Manager) RemoveToken(target string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Servers, normalize(target))

	return m.Save(creds)
}

// ListServers returns the server URLs that have stored tokens.
func (m *Manager) ListServers() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	servers := make([]string, 0, len(creds.Servers))
	for name := range creds.Servers {
		servers = append(servers, name)
	}

	sort.Strings(servers)

	return servers, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

func normalize(target string) string {
	return strings.TrimRight(strings.TrimSpace(target), "/")
}
