package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "subsidy-console"

// TokenEnvVar overrides the stored API token for every role when set.
const TokenEnvVar = "SUBSIDY_API_TOKEN"

// ErrNoToken is returned when no API token is stored for a role.
var ErrNoToken = errors.New("no API token stored")

// TokenKey returns the keyring key holding role's API token.
func TokenKey(role string) string {
	return "api-token-" + role
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/subsidy-console/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("subsidy-console-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store reads and writes role API tokens.
type Store struct {
	ring   keyring.Keyring
	getenv func(string) string
}

// Open returns a Store backed by the system keyring.
func Open() (*Store, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return NewStore(ring), nil
}

// NewStore returns a Store backed by ring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring, getenv: os.Getenv}
}

// Token returns the API token for role. The TokenEnvVar environment
// variable takes precedence over the keyring. A missing entry yields
// ErrNoToken.
func (s *Store) Token(role string) (string, error) {
	if token := s.getenv(TokenEnvVar); token != "" {
		return token, nil
	}

	item, err := s.ring.Get(TokenKey(role))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w for role %q", ErrNoToken, role)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", TokenKey(role), err)
	}

	return string(item.Data), nil
}

// SetToken stores the API token for role.
func (s *Store) SetToken(role string, token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   TokenKey(role),
		Data:  []byte(token),
		Label: "Subsidy console API token (" + role + ")",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", TokenKey(role), err)
	}

	return nil
}

// DeleteToken removes the API token for role.
func (s *Store) DeleteToken(role string) error {
	err := s.ring.Remove(TokenKey(role))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", TokenKey(role), err)
	}

	return nil
}
