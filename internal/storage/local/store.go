package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/codelab/internal/storage"
)

const collectionKV = "kv"

// Store provides thread-safe JSON file storage
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates a new local JSON store
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// record is the on-disk form of one key
type record struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Save persists data to a JSON file. The file is written to a temporary
// name and renamed so a crash never leaves a truncated record.
func (s *Store) Save(collection, id string, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.basePath, collection)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create collection directory: %w", err)
	}

	path := s.path(collection, id)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename file: %w", err)
	}

	return nil
}

// Load reads data from a JSON file
func (s *Store) Load(collection, id string, data interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Open(s.path(collection, id))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(data); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}

// Remove deletes a JSON file
func (s *Store) Remove(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(collection, id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}

	return nil
}

// path maps an id to a file name that is safe on every platform.
func (s *Store) path(collection, id string) string {
	return filepath.Join(s.basePath, collection, url.PathEscape(id)+".json")
}

// Get implements storage.KV
func (s *Store) Get(_ context.Context, key string) (string, error) {
	var rec record
	if err := s.Load(collectionKV, key, &rec); err != nil {
		return "", err
	}
	return rec.Value, nil
}

// Set implements storage.KV
func (s *Store) Set(_ context.Context, key, value string) error {
	return s.Save(collectionKV, key, record{Key: key, Value: value, UpdatedAt: time.Now().UTC()})
}

// Delete implements storage.KV
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.Remove(collectionKV, key); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

var _ storage.KV = (*Store)(nil)
