// Package session keeps the signed-in user's token and display identity in
// durable local storage.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"eventhub/internal/config"
	"eventhub/internal/model"
)

// Keys written to the backing storage.
const (
	KeyToken    = "token"
	KeyUsername = "username"
	KeyEmail    = "email"
)

// Storage is a durable string key/value store.
type Storage interface {
	Load() (map[string]string, error)
	Save(map[string]string) error
}

// Store owns the session. Every accessor reads through to Storage so that
// another process (e.g. a CLI login while the dashboard runs) is observed.
type Store struct {
	mu      sync.Mutex
	backend Storage
}

func New(backend Storage) *Store {
	return &Store{backend: backend}
}

// Set persists all three values, overwriting any prior session.
func (s *Store) Set(sess model.Session) error {
	return s.update(func(m map[string]string) {
		m[KeyToken] = sess.Token
		m[KeyUsername] = sess.Username
		m[KeyEmail] = sess.Email
	})
}

// Clear removes token, username and email.
func (s *Store) Clear() error {
	return s.update(func(m map[string]string) {
		delete(m, KeyToken)
		delete(m, KeyUsername)
		delete(m, KeyEmail)
	})
}

func (s *Store) Token() (string, error)    { return s.Value(KeyToken) }
func (s *Store) Username() (string, error) { return s.Value(KeyUsername) }
func (s *Store) Email() (string, error)    { return s.Value(KeyEmail) }

// Value returns the stored value for key, or "" if never set.
func (s *Store) Value(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.backend.Load()
	if err != nil {
		return "", fmt.Errorf("session: load: %w", err)
	}
	return m[key], nil
}

func (s *Store) SetValue(key, value string) error {
	return s.update(func(m map[string]string) { m[key] = value })
}

func (s *Store) DeleteValue(key string) error {
	return s.update(func(m map[string]string) { delete(m, key) })
}

// Current returns the whole session; ok reports whether a token is present.
// No expiry check is made: the server is the only judge of validity.
func (s *Store) Current() (model.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.backend.Load()
	if err != nil {
		return model.Session{}, false, fmt.Errorf("session: load: %w", err)
	}
	sess := model.Session{
		Token:    m[KeyToken],
		Username: m[KeyUsername],
		Email:    m[KeyEmail],
	}
	return sess, sess.Token != "", nil
}

func (s *Store) update(fn func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("session: load: %w", err)
	}
	if m == nil {
		m = make(map[string]string)
	}
	fn(m)
	if err := s.backend.Save(m); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// FileStorage keeps the session as a JSON object in a 0600 file.
type FileStorage struct {
	Path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{Path: path}
}

func (f *FileStorage) Load() (map[string]string, error) {
	if f.Path == "" {
		return nil, errors.New("session path is empty")
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	m := map[string]string{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (f *FileStorage) Save(m map[string]string) error {
	if f.Path == "" {
		return errors.New("session path is empty")
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(f.Path, data)
}

// MemoryStorage is a process-local Storage.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string]string)}
}

func (s *MemoryStorage) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStorage) Save(m map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]string, len(m))
	for k, v := range m {
		s.m[k] = v
	}
	return nil
}
