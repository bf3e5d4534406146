// Package tokencache caches OAuth access tokens between runs.
package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SkewMargin is the grace period a token stays usable past its recorded expiry.
const SkewMargin = 60 * time.Second

// Token is the cached record: {access_token, expires_at}, expires_at in Unix seconds.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Action is the outcome of Decide.
type Action int

const (
	// Refresh means a new token must be fetched before the call.
	Refresh Action = iota
	// Reuse means the cached token is still valid.
	Reuse
)

func (a Action) String() string {
	if a == Reuse {
		return "reuse"
	}
	return "refresh"
}

// Decide returns whether the cached token can be reused at now.
// A cached token is reused while expires_at > now - SkewMargin. A missing or empty
// entry is always refreshed.
func Decide(cached *Token, now time.Time) Action {
	if cached == nil || cached.AccessToken == "" {
		return Refresh
	}
	if cached.ExpiresAt > now.Add(-SkewMargin).Unix() {
		return Reuse
	}
	return Refresh
}

// Store persists a single token. Load returns (nil, nil) when nothing is stored.
type Store interface {
	Load() (*Token, error)
	Save(Token) error
}

// FetchFunc obtains a fresh token from the issuer.
type FetchFunc func(ctx context.Context) (Token, error)

// Cache hands out access tokens, refreshing them through a FetchFunc when needed.
type Cache struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a new Cache. A nil clock means time.Now.
func New(store Store, now func() time.Time, logger zerolog.Logger) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		store:  store,
		now:    now,
		logger: logger.With().Str("component", "tokencache").Logger(),
	}
}

// Token returns a usable access token, calling fetch and overwriting the store
// when the cached one is absent or expired.
func (c *Cache) Token(ctx context.Context, fetch FetchFunc) (string, error) {
	cached, err := c.store.Load()
	if err != nil {
		// An unreadable cache is treated like an empty one; the refresh overwrites it.
		c.logger.Warn().Err(err).Msg("failed to load cached token")
		cached = nil
	}

	if Decide(cached, c.now()) == Reuse {
		c.logger.Debug().Int64("expiresAt", cached.ExpiresAt).Msg("reusing cached token")
		return cached.AccessToken, nil
	}

	fresh, err := fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("refreshing token: %w", err)
	}
	if fresh.AccessToken == "" {
		return "", errors.New("refreshing token: empty access token")
	}

	if err := c.store.Save(fresh); err != nil {
		return "", fmt.Errorf("saving token: %w", err)
	}

	c.logger.Debug().Int64("expiresAt", fresh.ExpiresAt).Msg("refreshed token")
	return fresh.AccessToken, nil
}

// MemoryStore keeps the token in memory.
type MemoryStore struct {
	mu    sync.Mutex
	token *Token
	saves int
}

// NewMemoryStore creates a MemoryStore, optionally seeded with a token.
func NewMemoryStore(seed *Token) *MemoryStore {
	return &MemoryStore{token: seed}
}

// Load implements Store.
func (m *MemoryStore) Load() (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, nil
	}
	t := *m.token
	return &t, nil
}

// Save implements Store.
func (m *MemoryStore) Save(t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = &t
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FileStore keeps the token as a small JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load implements Store.
func (f *FileStore) Load() (*Token, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing token cache: %w", err)
	}
	return &t, nil
}

// Save implements Store.
func (f *FileStore) Save(t Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating token cache directory: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}
