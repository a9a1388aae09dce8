package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kiranshivaraju/newscast/internal/cache"
	"gopkg.in/yaml.v3"
)

// TokenStore persists the bearer token across restarts. It is the only part
// of a session that outlives the process.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// credentialsFile is the on-disk layout of a FileStore.
type credentialsFile struct {
	AccessToken string    `yaml:"access_token"`
	SavedAt     time.Time `yaml:"saved_at"`
}

// FileStore keeps the token in a YAML file readable only by its owner.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the credentials file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading credentials: %w", err)
	}

	var creds credentialsFile
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("parsing credentials %s: %w", s.path, err)
	}
	return creds.AccessToken, nil
}

func (s *FileStore) Save(_ context.Context, token string) error {
	if s.path == "" {
		return errors.New("no credentials file configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	data, err := yaml.Marshal(credentialsFile{AccessToken: token, SavedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(s.path, 0o600)
}

func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

// CacheStore keeps the token in a Cache, usually Redis, so several machines
// can share one login.
type CacheStore struct {
	cache cache.Cache
	key   string
}

// NewCacheStore stores the token for account under cache.TokenKey(account).
func NewCacheStore(c cache.Cache, account string) *CacheStore {
	if account == "" {
		account = "default"
	}
	return &CacheStore{cache: c, key: cache.TokenKey(account)}
}

func (s *CacheStore) Load(ctx context.Context) (string, error) {
	val, found, err := s.cache.Get(ctx, s.key)
	if err != nil {
		return "", fmt.Errorf("loading token: %w", err)
	}
	if !found {
		return "", nil
	}
	return string(val), nil
}

func (s *CacheStore) Save(ctx context.Context, token string) error {
	if err := s.cache.Set(ctx, s.key, []byte(token), 0); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

func (s *CacheStore) Clear(ctx context.Context) error {
	if err := s.cache.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

// MemoryStore keeps the token for the life of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func (s *MemoryStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

var (
	_ TokenStore = (*FileStore)(nil)
	_ TokenStore = (*CacheStore)(nil)
	_ TokenStore = (*MemoryStore)(nil)
)
