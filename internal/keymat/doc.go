// Package keymat manages the per-installation key/nonce pair.
//
// Storage:
//   - OS keyring (service "modshield") when a keychain is reachable
//   - 0600 file under the user config dir otherwise
//
// Export files are sealed with AES-256-GCM under a key derived from a
// passphrase via PBKDF2-HMAC-SHA256 (210,000 iterations, 32-byte
// random salt), so material can move to CI runners without ever being
// written in the clear.
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Material.Destroy() when done with the pair
package keymat
