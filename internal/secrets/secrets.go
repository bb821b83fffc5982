package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("secret not found")

// Provider hands out named credential strings. Components depend on
// this interface, not on where the values live.
type Provider interface {
	Get(name string) (string, error)
}

// FileStore keeps secrets in a plain "name = <base64>" line file.
// Values are sealed with AES-GCM under a key derived from a
// passphrase, so the file is confidential at rest; names are not.
type FileStore struct {
	path string
	gcm  cipher.AEAD

	mu     sync.Mutex
	values map[string][]byte
}

// Open loads the store at path, creating an empty one if the file
// does not exist yet.
func Open(path, passphrase string) (*FileStore, error) {
	key := sha256.Sum256([]byte(passphrase))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}

	s := &FileStore{
		path:   path,
		gcm:    gcm,
		values: make(map[string][]byte),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, encoded, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("malformed secrets line: %q", line)
		}
		sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return nil, fmt.Errorf("failed to decode secret %q: %w", strings.TrimSpace(name), err)
		}
		s.values[strings.TrimSpace(name)] = sealed
	}

	return s, nil
}

// Get decrypts one secret. A wrong passphrase surfaces as a decrypt
// error, never as garbage plaintext.
func (s *FileStore) Get(name string) (string, error) {
	s.mu.Lock()
	sealed, ok := s.values[name]
	s.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	nonceSize := s.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("secret %s is truncated", name)
	}

	plain, err := s.gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret %s: %w", name, err)
	}

	return string(plain), nil
}

// Set seals a value under a fresh nonce. Call Save to persist.
func (s *FileStore) Set(name, value string) error {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := append(nonce, s.gcm.Seal(nil, nonce, []byte(value), nil)...)

	s.mu.Lock()
	s.values[name] = sealed
	s.mu.Unlock()

	return nil
}

// Save writes the store back to its file, readable by the owner only.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for name, sealed := range s.values {
		fmt.Fprintf(&b, "%s = %s\n", name, base64.StdEncoding.EncodeToString(sealed))
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}

	return nil
}
