package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CredentialState is the persisted client-credentials state of one entity.
// An empty AccessToken means no token was acquired yet; ExpiresAt is Unix
// seconds and is set together with AccessToken.
type CredentialState struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"-"`
	AccessToken    string `json:"access_token,omitempty"`
	ExpiresAt      int64  `json:"expires_at,omitempty"`
}

// Expired reports whether the cached token must be renewed at now.
func (s CredentialState) Expired(now time.Time) bool {
	return s.AccessToken == "" || s.ExpiresAt == 0 || now.Unix() >= s.ExpiresAt
}

// CredentialStore persists CredentialState between restarts.
type CredentialStore interface {
	Load(ctx context.Context) (CredentialState, error)
	Save(ctx context.Context, state CredentialState) error
}

// MemoryCredentialStore keeps the state in process memory only.
type MemoryCredentialStore struct {
	mu    sync.Mutex
	state CredentialState
}

// NewMemoryCredentialStore creates a store seeded with the consumer key and secret.
func NewMemoryCredentialStore(seed CredentialState) *MemoryCredentialStore {
	return &MemoryCredentialStore{state: seed}
}

func (m *MemoryCredentialStore) Load(context.Context) (CredentialState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryCredentialStore) Save(_ context.Context, state CredentialState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

// FileCredentialStore keeps the token and its expiry in a JSON file so a
// restart does not cost a renewal. The secret is never written; it always
// comes from the seed. A cached token issued for a different consumer key is
// discarded on load.
type FileCredentialStore struct {
	Path string
	seed CredentialState
}

// NewFileCredentialStore creates a file-backed store at path.
func NewFileCredentialStore(path string, seed CredentialState) *FileCredentialStore {
	return &FileCredentialStore{Path: path, seed: seed}
}

func (f *FileCredentialStore) Load(context.Context) (CredentialState, error) {
	state := f.seed

	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return CredentialState{}, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var cached CredentialState
	if err := json.Unmarshal(b, &cached); err != nil {
		return CredentialState{}, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if cached.ConsumerKey == f.seed.ConsumerKey && cached.AccessToken != "" && cached.ExpiresAt != 0 {
		state.AccessToken = cached.AccessToken
		state.ExpiresAt = cached.ExpiresAt
	}
	return state, nil
}

func (f *FileCredentialStore) Save(_ context.Context, state CredentialState) error {
	if err := ensureParentDir(f.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
