package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/modshield/modshield/internal/strategy"
)

// Verify decrypts the payloads of a previously built output tree with
// the local key material and compares them against the current source
// module, reporting drift since the build.
func Verify(ctx context.Context, distDir, modulePath string, showDiff bool) {
	store := mustStore()
	material, err := store.Load()
	if err != nil {
		HandleError(err)
	}
	defer material.Destroy()

	strat, err := strategy.NewAEAD(material)
	if err != nil {
		HandleError(err)
	}

	moduleName := filepath.Base(strings.TrimRight(modulePath, string(filepath.Separator)))
	distModule := filepath.Join(distDir, moduleName)
	if _, err := os.Stat(distModule); err != nil {
		fmt.Fprintf(os.Stderr, "Error: no built module at %s\n", distModule)
		os.Exit(1)
	}

	var checked, drifted, unreadable int
	dmp := diffmatchpatch.New()

	err = filepath.WalkDir(distModule, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, strategy.PayloadSuffix) {
			return nil
		}

		rel, err := filepath.Rel(distModule, strings.TrimSuffix(p, strategy.PayloadSuffix))
		if err != nil {
			return err
		}

		payload, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		built, err := strat.Decrypt(payload)
		if err != nil {
			unreadable++
			fmt.Printf("  ! %s (cannot decrypt: wrong or rotated key?)\n", rel)
			return nil
		}

		checked++
		current, err := os.ReadFile(filepath.Join(modulePath, rel))
		if err != nil {
			drifted++
			fmt.Printf("  - %s (removed from source)\n", rel)
			return nil
		}

		if string(built) == string(current) {
			return nil
		}
		drifted++
		fmt.Printf("  ~ %s (modified since build)\n", rel)
		if showDiff {
			diffs := dmp.DiffMain(string(built), string(current), false)
			fmt.Print(dmp.DiffPrettyText(diffs))
		}
		return nil
	})
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("checked %d payloads: %d drifted, %d unreadable\n", checked, drifted, unreadable)
	if drifted > 0 || unreadable > 0 {
		os.Exit(1)
	}
}
