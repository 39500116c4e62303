package keymat

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"os"

	"github.com/agilira/go-errors"
	"golang.org/x/crypto/pbkdf2"

	"github.com/modshield/modshield/internal/errs"
)

// Export file layout: magic line, 32-byte salt, then the AES-256-GCM
// sealed material (random nonce prepended). The passphrase-derived key
// protects the installation key/nonce while it moves between machines
// (e.g. a CI runner that must reproduce builds).
const (
	exportMagic   = "modshield-keymat-1\n"
	exportSalt    = 32
	exportKeySize = 32
	exportNonce   = 12
	exportIters   = 210000 // OWASP minimum for PBKDF2-SHA256
)

// Export writes the material to path, sealed under a passphrase-derived
// key.
func Export(m *Material, path string, passphrase []byte) error {
	if err := m.Validate(); err != nil {
		return err
	}

	salt := make([]byte, exportSalt)
	if _, err := rand.Read(salt); err != nil {
		return errors.Wrap(err, errs.CodeKeyMaterial, "failed to generate salt")
	}

	key := pbkdf2.Key(passphrase, salt, exportIters, exportKeySize, sha256.New)
	defer ClearBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, exportNonce)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, errs.CodeKeyMaterial, "failed to generate nonce")
	}
	sealed := gcm.Seal(nonce, nonce, []byte(m.encode()), nil)

	var buf bytes.Buffer
	buf.WriteString(exportMagic)
	buf.Write(salt)
	buf.Write(sealed)

	if err := os.WriteFile(path, buf.Bytes(), FilePermSecure); err != nil {
		return errors.Wrap(err, errs.CodeKeyMaterial, "cannot write export file")
	}
	return nil
}

// Import reads material previously written by Export. A wrong
// passphrase fails authentication; it never yields garbage material.
func Import(path string, passphrase []byte) (*Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeKeyMaterial, "cannot read export file")
	}

	if !bytes.HasPrefix(data, []byte(exportMagic)) {
		return nil, errors.New(errs.CodeKeyMaterial, "not a modshield key export file")
	}
	data = data[len(exportMagic):]

	if len(data) < exportSalt+exportNonce+1 {
		return nil, errors.New(errs.CodeKeyMaterial, "export file truncated")
	}
	salt := data[:exportSalt]
	sealed := data[exportSalt:]

	key := pbkdf2.Key(passphrase, salt, exportIters, exportKeySize, sha256.New)
	defer ClearBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := sealed[:exportNonce]
	plaintext, err := gcm.Open(nil, nonce, sealed[exportNonce:], nil)
	if err != nil {
		return nil, errors.New(errs.CodeKeyMaterial, "wrong passphrase or corrupted export file")
	}

	return decode(string(plaintext))
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeKeyMaterial, "failed to create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeKeyMaterial, "failed to create GCM")
	}
	return gcm, nil
}
