package strategy

import (
	"bytes"
	"path"
	"text/template"

	"github.com/agilira/go-errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/modshield/modshield/internal/errs"
	"github.com/modshield/modshield/internal/keymat"
)

// RuntimePackage is the import name of the generated gatekeeper
// package. Stubs import it; the merged packaging step rewrites the
// import when the gatekeeper is nested inside the application package.
const RuntimePackage = "modshield_runtime"

// PayloadSuffix is appended to a module's relative path to derive its
// ciphertext artifact path.
const PayloadSuffix = ".enc"

// maxPlaintext is the ChaCha20-Poly1305 single-message bound.
const maxPlaintext = (1 << 38) - 64

// Strategy is the encryption and runtime-routine-generation policy.
// Concrete variants are selected at configuration time.
type Strategy interface {
	// Encrypt returns the ciphertext for one module plus the stub
	// source that replaces it. The stub contains no key material.
	Encrypt(relPath string, plaintext []byte) (ciphertext []byte, stub string, err error)

	// RuntimeCode returns the gatekeeper's core routine source. This
	// is the only place the key appears in cleartext; it must exist
	// only inside the compiled artifact.
	RuntimeCode() (string, error)
}

// AEAD encrypts modules with ChaCha20-Poly1305 under a single
// build-wide key/nonce pair. Encryption is deterministic for a fixed
// (key, nonce, plaintext), which keeps repeated builds byte-identical;
// the pair must never be reused across installations.
type AEAD struct {
	material *keymat.Material
}

// NewAEAD validates the key material and returns the strategy.
func NewAEAD(material *keymat.Material) (*AEAD, error) {
	if err := material.Validate(); err != nil {
		return nil, errors.Wrap(err, errs.CodeEncryption, "invalid key material")
	}
	return &AEAD{material: material}, nil
}

// Encrypt seals one module and renders its loader stub.
func (a *AEAD) Encrypt(relPath string, plaintext []byte) ([]byte, string, error) {
	if len(plaintext) > maxPlaintext {
		return nil, "", errors.New(errs.CodeEncryption, "plaintext exceeds cipher bounds").
			WithContext("path", relPath)
	}

	aead, err := chacha20poly1305.New(a.material.Key)
	if err != nil {
		return nil, "", errors.Wrap(err, errs.CodeEncryption, "failed to create cipher")
	}

	ciphertext := aead.Seal(nil, a.material.Nonce, plaintext, nil)

	stub, err := renderStub(relPath)
	if err != nil {
		return nil, "", err
	}
	return ciphertext, stub, nil
}

// Decrypt is the build-side inverse of Encrypt, used by drift
// verification and tests. The distributed application never calls
// this; it decrypts inside the compiled gatekeeper.
func (a *AEAD) Decrypt(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(a.material.Key)
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeEncryption, "failed to create cipher")
	}
	plaintext, err := aead.Open(nil, a.material.Nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New(errs.CodeEncryption, "payload authentication failed")
	}
	return plaintext, nil
}

var stubTemplate = template.Must(template.New("stub").Parse(
	`# Generated by modshield. The original source of this module is
# distributed as an encrypted payload next to this file.
from {{.Runtime}} import run_encrypted

run_encrypted(globals(), "{{.RelPath}}")
`))

func renderStub(relPath string) (string, error) {
	var buf bytes.Buffer
	err := stubTemplate.Execute(&buf, struct {
		Runtime string
		RelPath string
	}{RuntimePackage, path.Clean(relPath)})
	if err != nil {
		return "", errors.Wrap(err, errs.CodeEncryption, "failed to render stub")
	}
	return buf.String(), nil
}
