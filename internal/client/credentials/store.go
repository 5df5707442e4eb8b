// Package credentials keeps the session token pair of the client.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
)

// Well-known credential keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// keyPrefix namespaces sealed credentials inside the metadata table.
const keyPrefix = "cred:"

// Store is a string key/value store for secrets. Get returns "" when the key
// is absent. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Clear removes every credential, leaving unrelated data alone.
	Clear(ctx context.Context) error
}

// EncryptedStore seals values with AES-GCM before writing them to the
// metadata repository.
type EncryptedStore struct {
	mu   sync.RWMutex
	repo metadata.Repository
	key  []byte
}

// NewEncryptedStore returns a store sealing values with key (32 bytes).
func NewEncryptedStore(repo metadata.Repository, key []byte) (*EncryptedStore, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(key))
	}
	return &EncryptedStore{repo: repo, key: append([]byte(nil), key...)}, nil
}

// OpenEncryptedStore loads (or creates) the device key file and returns a
// store bound to it.
func OpenEncryptedStore(repo metadata.Repository, keyFile string) (*EncryptedStore, error) {
	key, err := cryptox.LoadOrCreateKey(keyFile)
	if err != nil {
		return nil, err
	}
	return NewEncryptedStore(repo, key)
}

func (s *EncryptedStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sealed, err := s.repo.Get(ctx, keyPrefix+key)
	if err != nil {
		return "", fmt.Errorf("failed to read credential %s: %w", key, err)
	}
	if sealed == nil {
		return "", nil
	}

	plain, err := cryptox.Open(sealed, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to unseal credential %s: %w", key, err)
	}
	return string(plain), nil
}

func (s *EncryptedStore) Set(ctx context.Context, key, value string) error {
	sealed, err := cryptox.Seal([]byte(value), s.key)
	if err != nil {
		return fmt.Errorf("failed to seal credential %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Set(ctx, keyPrefix+key, sealed); err != nil {
		return fmt.Errorf("failed to write credential %s: %w", key, err)
	}
	return nil
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, keyPrefix+key); err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", key, err)
	}
	return nil
}

func (s *EncryptedStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeletePrefix(ctx, keyPrefix); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Keys lists the stored credential names.
func (s *EncryptedStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.repo.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, strings.TrimPrefix(k, keyPrefix))
	}
	return keys, nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
	// Err, when set, is returned by every operation.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.data[key], nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data = map[string]string{}
	return nil
}

// SetPair stores both tokens. The access token is written last so that a
// partially written pair never looks authenticated.
func SetPair(ctx context.Context, s Store, access, refresh string) error {
	if access == "" || refresh == "" {
		return errors.New("empty token")
	}
	if err := s.Set(ctx, KeyRefreshToken, refresh); err != nil {
		return err
	}
	return s.Set(ctx, KeyAccessToken, access)
}
