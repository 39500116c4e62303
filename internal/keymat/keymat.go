package keymat

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/modshield/modshield/internal/errs"
)

const (
	KeySize   = chacha20poly1305.KeySize   // 32 bytes
	NonceSize = chacha20poly1305.NonceSize // 12 bytes

	serviceName = "modshield"
	keyringUser = "build-key"
	fileName    = "keymat"

	DirPermSecure  = 0700
	FilePermSecure = 0600
)

// Material is the process-scoped key/nonce pair shared by every file in
// a build. It is generated once per installation, never derived from
// user input, and passed explicitly into every constructor that needs
// it. Rotating it invalidates all prior builds.
type Material struct {
	Key   []byte
	Nonce []byte
}

// Generate creates fresh random key material.
func Generate() (*Material, error) {
	key, err := generateRandom(KeySize)
	if err != nil {
		return nil, err
	}
	nonce, err := generateRandom(NonceSize)
	if err != nil {
		return nil, err
	}
	return &Material{Key: key, Nonce: nonce}, nil
}

// Validate checks the key and nonce lengths.
func (m *Material) Validate() error {
	if m == nil || len(m.Key) != KeySize {
		return errors.New(errs.CodeKeyMaterial, "key must be 32 bytes")
	}
	if len(m.Nonce) != NonceSize {
		return errors.New(errs.CodeKeyMaterial, "nonce must be 12 bytes")
	}
	return nil
}

// Destroy clears the material from memory.
func (m *Material) Destroy() {
	ClearBytes(m.Key)
	ClearBytes(m.Nonce)
}

// Fingerprint returns a short identifier safe to display and record in
// build manifests. It is a truncated SHA-256 of the key, so no raw key
// bytes ever leave the store.
func (m *Material) Fingerprint() string {
	if len(m.Key) == 0 {
		return ""
	}
	sum := sha256.Sum256(m.Key)
	return hex.EncodeToString(sum[:4])
}

func (m *Material) encode() string {
	return hex.EncodeToString(m.Key) + ":" + hex.EncodeToString(m.Nonce)
}

func decode(s string) (*Material, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return nil, errors.New(errs.CodeKeyMaterial, "malformed stored key material")
	}
	key, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeKeyMaterial, "malformed stored key")
	}
	nonce, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeKeyMaterial, "malformed stored nonce")
	}
	m := &Material{Key: key, Nonce: nonce}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Store loads and persists installation key material. The OS keyring is
// preferred; a 0600 file under the user config dir is the fallback for
// headless environments without a keychain daemon.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at the user config directory.
func NewStore() (*Store, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeKeyMaterial, "cannot resolve user config dir")
	}
	return NewStoreAt(filepath.Join(base, serviceName)), nil
}

// NewStoreAt returns a Store with an explicit fallback directory.
func NewStoreAt(dir string) *Store {
	return &Store{dir: dir}
}

// FilePath returns the file-fallback location.
func (s *Store) FilePath() string {
	return filepath.Join(s.dir, fileName)
}

// Load returns the installation key material, generating and persisting
// it on first use.
func (s *Store) Load() (*Material, error) {
	if v, err := keyring.Get(serviceName, keyringUser); err == nil {
		return decode(v)
	}

	data, err := os.ReadFile(s.FilePath())
	if err == nil {
		return decode(string(data))
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errs.CodeKeyMaterial, "cannot read key material file")
	}

	m, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := s.save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Rotate replaces the stored key material with a fresh pair. Every
// artifact produced with the previous pair becomes undecryptable.
func (s *Store) Rotate() (*Material, error) {
	m, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := s.save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Put persists externally supplied material (import path).
func (s *Store) Put(m *Material) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return s.save(m)
}

func (s *Store) save(m *Material) error {
	encoded := m.encode()

	// Keyring first; fall through to the file when no keychain is
	// reachable (containers, CI).
	if err := keyring.Set(serviceName, keyringUser, encoded); err == nil {
		// Drop any stale file copy so the keyring stays authoritative.
		_ = os.Remove(s.FilePath())
		return nil
	}

	if err := os.MkdirAll(s.dir, DirPermSecure); err != nil {
		return errors.Wrap(err, errs.CodeKeyMaterial, "cannot create key material dir")
	}
	if err := os.WriteFile(s.FilePath(), []byte(encoded+"\n"), FilePermSecure); err != nil {
		return errors.Wrap(err, errs.CodeKeyMaterial, "cannot write key material file")
	}
	return nil
}

// ClearBytes securely clears a byte slice.
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func generateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Wrap(err, errs.CodeKeyMaterial, "failed to generate random bytes")
	}
	return b, nil
}
