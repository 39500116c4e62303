package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/modshield/modshield/internal/manifest"
)

// Builds lists the builds recorded in the project manifest.
func Builds() {
	if _, err := os.Stat(manifest.DBFile); err != nil {
		fmt.Println("no builds recorded")
		return
	}

	m, err := manifest.Open(manifest.DBFile)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	builds, err := m.List()
	if err != nil {
		HandleError(err)
	}
	if len(builds) == 0 {
		fmt.Println("no builds recorded")
		return
	}

	for _, b := range builds {
		line := fmt.Sprintf("%s  %s  %d modules, %d resources  key %s",
			b.CreatedAt.Local().Format(time.DateTime), b.Module, b.Encrypted, b.Copied, b.KeyFingerprint)
		if b.Expiration != "" {
			line += "  expires " + b.Expiration
		}
		fmt.Println(line)
		fmt.Printf("    output: %s\n", b.OutputDir)
	}
}
