package auth

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore keeps the single opaque auth token in a 0600 file.
type TokenStore struct {
	path string

	mu    sync.Mutex
	token string
	read  bool
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Get returns the stored token, or "" when none is stored.
func (s *TokenStore) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.read || s.path == "" {
		return s.token
	}
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	s.token = strings.TrimSpace(string(data))
	s.read = true
	return s.token
}

// Set replaces the stored token, writing it atomically.
func (s *TokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		if err := writeFileAtomic(s.path, []byte(token)); err != nil {
			return err
		}
	}
	s.token = token
	s.read = true
	return nil
}

// Clear removes the stored token.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.read = true
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Valid returns the stored token if it is present and not expired at now.
func (s *TokenStore) Valid(now time.Time) string {
	tok := s.Get()
	if tok == "" || Expired(tok, now) {
		return ""
	}
	return tok
}

// Expired reports whether a JWT-shaped token carries an exp claim at or
// before now. The signature is not verified. Opaque tokens never expire.
func Expired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".dyncal-token-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
