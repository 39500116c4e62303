package cmd

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/modshield/modshield/internal/errs"
	"github.com/modshield/modshield/internal/keymat"
)

// HandleError reports a pipeline error consistently and exits.
func HandleError(err error) {
	switch errs.Code(err) {
	case errs.CodeInput:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Nothing was written; fix the input and retry\n")
	case errs.CodeEncryption:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "The build was aborted; the output tree is not usable\n")
	case errs.CodeExternalTool:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	case errs.CodeKeyMaterial:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Run 'modshield key init' to set up key material\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

// ReadPassphrase reads a passphrase from the terminal without echoing.
// The caller is responsible for calling keymat.ClearBytes on the result.
func ReadPassphrase(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	passphrase, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return passphrase, nil
}

// ReadPassphraseConfirm reads a passphrase twice and ensures the two
// match.
func ReadPassphraseConfirm() ([]byte, error) {
	first, err := ReadPassphrase("Enter passphrase: ")
	if err != nil {
		return nil, err
	}
	defer keymat.ClearBytes(first)

	second, err := ReadPassphrase("Confirm passphrase: ")
	if err != nil {
		return nil, err
	}
	defer keymat.ClearBytes(second)

	if string(first) != string(second) {
		return nil, fmt.Errorf("passphrases do not match")
	}

	result := make([]byte, len(first))
	copy(result, first)
	return result, nil
}

// ReadPassphraseOrExit is like ReadPassphrase but exits on error.
func ReadPassphraseOrExit(prompt string) []byte {
	passphrase, err := ReadPassphrase(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return passphrase
}
