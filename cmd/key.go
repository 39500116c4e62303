package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/modshield/modshield/internal/keymat"
)

// KeyInit ensures installation key material exists.
func KeyInit() {
	store := mustStore()
	if _, err := store.Load(); err != nil {
		HandleError(err)
	}
	fmt.Println("key material ready")
	fmt.Printf("fallback file: %s\n", store.FilePath())
}

// KeyShow prints the key fingerprint and storage location. The key
// itself is never displayed.
func KeyShow() {
	store := mustStore()
	material, err := store.Load()
	if err != nil {
		HandleError(err)
	}
	defer material.Destroy()

	fmt.Printf("fingerprint: %s\n", material.Fingerprint())
	fmt.Printf("fallback file: %s\n", store.FilePath())
}

// KeyRotate replaces the installation key material. Every artifact
// built with the previous material becomes undecryptable.
func KeyRotate(force bool) {
	if !force && !confirm("Rotating invalidates all previous builds. Continue? [y/N] ") {
		fmt.Println("aborted")
		return
	}

	store := mustStore()
	material, err := store.Rotate()
	if err != nil {
		HandleError(err)
	}
	defer material.Destroy()

	fmt.Printf("rotated; new fingerprint: %s\n", material.Fingerprint())
}

// KeyExport writes passphrase-protected key material to path.
func KeyExport(path string) {
	store := mustStore()
	material, err := store.Load()
	if err != nil {
		HandleError(err)
	}
	defer material.Destroy()

	passphrase, err := ReadPassphraseConfirm()
	if err != nil {
		HandleError(err)
	}
	defer keymat.ClearBytes(passphrase)

	if err := keymat.Export(material, path, passphrase); err != nil {
		HandleError(err)
	}
	fmt.Printf("exported to %s\n", path)
}

// KeyImport installs key material from an export file, replacing the
// current installation material.
func KeyImport(path string, force bool) {
	if !force && !confirm("Importing replaces the current key material. Continue? [y/N] ") {
		fmt.Println("aborted")
		return
	}

	passphrase := ReadPassphraseOrExit("Enter passphrase: ")
	defer keymat.ClearBytes(passphrase)

	material, err := keymat.Import(path, passphrase)
	if err != nil {
		HandleError(err)
	}
	defer material.Destroy()

	store := mustStore()
	if err := store.Put(material); err != nil {
		HandleError(err)
	}
	fmt.Printf("imported; fingerprint: %s\n", material.Fingerprint())
}

func mustStore() *keymat.Store {
	store, err := keymat.NewStore()
	if err != nil {
		HandleError(err)
	}
	return store
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
