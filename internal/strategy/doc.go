// Package strategy implements the obfuscation policy for modshield.
//
// Encryption uses ChaCha20-Poly1305 with:
//   - 32-byte installation key shared by every file in a build
//   - 12-byte installation nonce, fixed per key so builds are deterministic
//   - Authenticated encryption makes any payload tampering a hard failure
//
// Each encrypted module is replaced by a loader stub that imports the
// gatekeeper and requests decrypt-and-execute for its own relative
// path. Stubs carry no key material.
//
// The gatekeeper's core routine is rendered by RuntimeCode; it is the
// only place the key appears in cleartext and it survives only inside
// the natively compiled artifact.
package strategy
