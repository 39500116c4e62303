package keymat

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestGenerateSizes(t *testing.T) {
	m, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(m.Key) != KeySize {
		t.Errorf("key size %d, want %d", len(m.Key), KeySize)
	}
	if len(m.Nonce) != NonceSize {
		t.Errorf("nonce size %d, want %d", len(m.Nonce), NonceSize)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("generated material invalid: %v", err)
	}
}

func TestLoadGeneratesOnceViaKeyring(t *testing.T) {
	keyring.MockInit()
	store := NewStoreAt(t.TempDir())

	first, err := store.Load()
	if err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	second, err := store.Load()
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	if !bytes.Equal(first.Key, second.Key) || !bytes.Equal(first.Nonce, second.Nonce) {
		t.Error("Load did not return stable material")
	}
}

func TestLoadFallsBackToFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keychain daemon"))
	dir := t.TempDir()
	store := NewStoreAt(dir)

	first, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// The fallback file exists with tight permissions.
	info, err := os.Stat(store.FilePath())
	if err != nil {
		t.Fatalf("fallback file missing: %v", err)
	}
	if info.Mode().Perm() != FilePermSecure {
		t.Errorf("fallback file mode %o, want %o", info.Mode().Perm(), FilePermSecure)
	}

	second, err := store.Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !bytes.Equal(first.Key, second.Key) {
		t.Error("file fallback did not round-trip the key")
	}
}

func TestRotateReplacesMaterial(t *testing.T) {
	keyring.MockInit()
	store := NewStoreAt(t.TempDir())

	before, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	after, err := store.Rotate()
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	if bytes.Equal(before.Key, after.Key) {
		t.Error("rotation kept the old key")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load after rotate failed: %v", err)
	}
	if !bytes.Equal(loaded.Key, after.Key) {
		t.Error("rotated material not persisted")
	}
}

func TestFingerprintRevealsNoKeyBytes(t *testing.T) {
	key := bytes.Repeat([]byte{0xab}, KeySize)
	m := &Material{Key: key, Nonce: bytes.Repeat([]byte{0x01}, NonceSize)}

	sum := sha256.Sum256(key)
	want := hex.EncodeToString(sum[:4])
	if got := m.Fingerprint(); got != want {
		t.Errorf("fingerprint %q, want truncated key hash %q", got, want)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "abc", "zz:zz", "00ff:", "00ff"} {
		if _, err := decode(s); err == nil {
			t.Errorf("decode(%q) succeeded, want error", s)
		}
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	m, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keymat.export")
	passphrase := []byte("correct horse")

	if err := Export(m, path, passphrase); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	restored, err := Import(path, passphrase)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !bytes.Equal(restored.Key, m.Key) || !bytes.Equal(restored.Nonce, m.Nonce) {
		t.Error("export/import did not round-trip the material")
	}
}

func TestImportWrongPassphraseFails(t *testing.T) {
	m, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keymat.export")

	if err := Export(m, path, []byte("right")); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if _, err := Import(path, []byte("wrong")); err == nil {
		t.Fatal("Import with wrong passphrase succeeded")
	}
}

func TestImportRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	if err := os.WriteFile(path, []byte("not an export"), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Import(path, []byte("any")); err == nil {
		t.Fatal("Import of foreign file succeeded")
	}
}
