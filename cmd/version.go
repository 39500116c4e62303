package cmd

import (
	"fmt"

	"github.com/modshield/modshield/internal/version"
)

// Version prints the tool version.
func Version() {
	fmt.Printf("modshield v%s\n", version.Version)
}
