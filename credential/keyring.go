package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

// DefaultKeyringService is the keyring namespace used when none is given.
const DefaultKeyringService = "askq"

// Keyring reads the credential from the OS keyring
// (macOS Keychain, Windows Credential Manager, Secret Service, pass).
type Keyring struct {
	ring keyring.Keyring
	key  string
}

// NewKeyring creates a source reading key from ring.
func NewKeyring(ring keyring.Keyring, key string) (*Keyring, error) {
	if ring == nil {
		return nil, ErrAPIRequired
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNameRequired
	}
	return &Keyring{ring: ring, key: key}, nil
}

// OpenKeyring opens the OS keyring for service and reads key from it.
func OpenKeyring(service, key string) (*Keyring, error) {
	if service == "" {
		service = DefaultKeyringService
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName:             service,
		PassPrefix:              service,
		WinCredPrefix:           service,
		KeychainName:            "login",
		LibSecretCollectionName: "login",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewKeyring(ring, key)
}

func (k *Keyring) Credential(context.Context) (string, error) {
	item, err := k.ring.Get(k.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: keyring key %q", ErrNotFound, k.key)
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %q: %w", k.key, err)
	}
	return string(item.Data), nil
}
