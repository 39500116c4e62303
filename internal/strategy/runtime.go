package strategy

import (
	"bytes"
	"encoding/hex"
	"text/template"

	"github.com/agilira/go-errors"

	"github.com/modshield/modshield/internal/errs"
)

// The core routine is emitted as the head of the gatekeeper's .pyx
// compilation unit. Extension fragments are appended after it and may
// reference the symbols it declares (DecryptionError, _GUARDS), never
// the reverse. The key/nonce literals below exist in cleartext only
// here and survive only inside the compiled artifact.
var runtimeTemplate = template.Must(template.New("runtime").Parse(
	`"""modshield gatekeeper runtime. Generated; compiled to a native module."""
import os
import time

from cryptography.hazmat.primitives.ciphers.aead import ChaCha20Poly1305


class DecryptionError(Exception):
    """Raised when a payload fails verification or a guard rejects execution."""


_KEY = bytes.fromhex("{{.KeyHex}}")
_NONCE = bytes.fromhex("{{.NonceHex}}")

# Guards run before every decrypt-and-execute call, in registration
# order. Extension fragments append to this list.
_GUARDS = []

# The gatekeeper package sits directly under the installation root;
# payload paths in stubs are relative to that root.
_INSTALL_ROOT = os.path.dirname(os.path.dirname(os.path.abspath(__file__)))


def _read_payload(rel_path):
    payload_path = os.path.join(_INSTALL_ROOT, *rel_path.split("/")) + "{{.Suffix}}"
    try:
        with open(payload_path, "rb") as f:
            return f.read()
    except OSError:
        raise DecryptionError("missing payload for %s" % rel_path)


def run_encrypted(namespace, rel_path):
    for guard in _GUARDS:
        guard(rel_path)
    payload = _read_payload(rel_path)
    try:
        source = ChaCha20Poly1305(_KEY).decrypt(_NONCE, payload, None)
    except Exception:
        raise DecryptionError("payload verification failed for %s" % rel_path)
    code = compile(source, rel_path, "exec")
    exec(code, namespace)
`))

// RuntimeCode renders the core decrypt-and-execute routine with the
// build's key material embedded.
func (a *AEAD) RuntimeCode() (string, error) {
	var buf bytes.Buffer
	err := runtimeTemplate.Execute(&buf, struct {
		KeyHex   string
		NonceHex string
		Suffix   string
	}{
		KeyHex:   hex.EncodeToString(a.material.Key),
		NonceHex: hex.EncodeToString(a.material.Nonce),
		Suffix:   PayloadSuffix,
	})
	if err != nil {
		return "", errors.Wrap(err, errs.CodeEncryption, "failed to render runtime code")
	}
	return buf.String(), nil
}
