package auth

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/zalando/go-keyring"
)

// Fixed secret store keys. Nothing else is ever persisted.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// SecretStore is opaque key-value persistence with encrypted-at-rest guarantees.
type SecretStore interface {
	// Get returns the value for key; ok is false when nothing is stored.
	Get(key string) (value string, ok bool, err error)
	Store(key, value string) error
	Delete(key string) error
}

// NewSecretStore builds the backend selected in config.
func NewSecretStore(cfg shared.SecretsConfig) (SecretStore, error) {
	switch cfg.Backend {
	case "", "keyring":
		return NewKeyringStore(cfg.Service), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown secrets backend %q", shared.ErrConfiguration, cfg.Backend)
	}
}

// KeyringStore keeps secrets in the OS keychain (Keychain, Secret Service, Windows Credential Manager).
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a store namespaced under service.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = "spotbar"
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Get(key string) (string, bool, error) {
	v, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("keyring get %s: %w", key, err)
	}
	return v, v != "", nil
}

func (s *KeyringStore) Store(key, value string) error {
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	return nil
}

func (s *KeyringStore) Delete(key string) error {
	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}
	return nil
}

// MemoryStore is a process-local [SecretStore].
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Store(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Values returns a copy of everything stored.
func (s *MemoryStore) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}
