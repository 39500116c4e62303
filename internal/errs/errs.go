// Package errs defines the error codes shared across the modshield
// pipeline and helpers for mapping errors back to them.
//
// Codes follow the go-errors "[CODE]: message" format. Input and key
// material failures are reported before any output is written; an
// encryption or external-tool failure aborts the whole run, since a
// partially written output tree is never valid.
package errs

// Error codes used with github.com/agilira/go-errors.
const (
	// CodeInput covers a missing or invalid source root and malformed
	// or past-dated expiration instants. Always raised before any write.
	CodeInput = "MODSHIELD_INPUT"

	// CodeEncryption covers malformed key material and plaintext
	// exceeding the AEAD bounds.
	CodeEncryption = "MODSHIELD_ENCRYPTION"

	// CodeExternalTool covers non-zero exits from the delegated
	// compile/package toolchain. The tool's output is attached verbatim.
	CodeExternalTool = "MODSHIELD_EXTERNAL_TOOL"

	// CodeKeyMaterial covers keyring/file store failures and bad
	// export/import passphrases.
	CodeKeyMaterial = "MODSHIELD_KEY_MATERIAL"
)

// Code extracts the error code from a go-errors formatted error
// ("[CODE]: message"). Returns "" for nil or uncoded errors.
func Code(err error) string {
	if err == nil {
		return ""
	}

	s := err.Error()
	if len(s) > 3 && s[0] == '[' {
		for i := 1; i < len(s); i++ {
			if s[i] == ']' {
				return s[1:i]
			}
		}
	}
	return ""
}
