package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/opennews/newsbox/internal/utils"
)

const (
	// TokenKey names the API bearer token entry.
	TokenKey = "api_token"

	keyringService = "newsbox"
)

var ErrNotFound = errors.New("secret not found")

// Store persists small named secrets.
type Store interface {
	Save(key, value string) error
	Load(key string) (string, error)
	Delete(key string) error
}

// Open returns the OS keyring store when the platform supports one, falling
// back to a file store next to the config otherwise (headless servers,
// containers).
func Open(fallbackPath string) Store {
	if err := keyring.Set(keyringService, "probe", "ok"); err == nil {
		_ = keyring.Delete(keyringService, "probe")
		return &KeyringStore{}
	}
	return NewFileStore(fallbackPath)
}

// KeyringStore keeps secrets in the OS credential manager.
type KeyringStore struct{}

func (k *KeyringStore) Save(key, value string) error {
	if err := keyring.Set(keyringService, key, value); err != nil {
		return fmt.Errorf("keyring set %q: %w", key, err)
	}
	return nil
}

func (k *KeyringStore) Load(key string) (string, error) {
	value, err := keyring.Get(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %q: %w", key, err)
	}
	return value, nil
}

func (k *KeyringStore) Delete(key string) error {
	err := keyring.Delete(keyringService, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %q: %w", key, err)
	}
	return nil
}

// FileStore keeps secrets in a 0600 JSON file. Used where no keyring exists.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Save(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	entries[key] = value
	return f.write(entries)
}

func (f *FileStore) Load(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return "", err
	}
	value, ok := entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	delete(entries, key)
	return f.write(entries)
}

func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}
	return entries, nil
}

func (f *FileStore) write(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode secrets file: %w", err)
	}
	if err := utils.EnsureParent(f.path); err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write secrets file: %w", err)
	}
	return nil
}
