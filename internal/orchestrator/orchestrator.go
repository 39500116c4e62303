// Package orchestrator walks a source tree, applies the obfuscation
// strategy per file, invokes the gatekeeper builder once, and produces
// the final mirrored output tree.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"

	"github.com/modshield/modshield/internal/errs"
	"github.com/modshield/modshield/internal/gatekeeper"
	"github.com/modshield/modshield/internal/security"
	"github.com/modshield/modshield/internal/strategy"
)

const (
	DirPerm  = 0755
	FilePerm = 0644
)

// Options tune a run. The zero value is usable.
type Options struct {
	// Excludes lists directory names skipped during the walk, in
	// addition to hidden directories.
	Excludes []string

	// MergeRuntime nests the gatekeeper package inside the
	// application package and rewrites stub imports accordingly,
	// for single-artifact distribution.
	MergeRuntime bool

	// Verbose enables per-file progress output.
	Verbose bool
}

// Report summarizes a completed run.
type Report struct {
	Module    string            // application package name
	ModuleDir string            // mirrored module directory in the output tree
	Encrypted int               // stub+ciphertext pairs written
	Copied    int               // resources copied verbatim
	Hashes    map[string]string // relative path -> sha256 of the plaintext
	Runtime   *gatekeeper.Result
}

// Orchestrator owns one build into one output directory. Concurrent
// builds targeting the same directory are unsupported.
type Orchestrator struct {
	sourceRoot string
	outputDir  string
	strategy   strategy.Strategy
	builder    *gatekeeper.Builder
	opts       Options
	excludes   map[string]struct{}
}

// New wires an orchestrator for one run.
func New(sourceRoot string, s strategy.Strategy, b *gatekeeper.Builder, outputDir string, opts Options) *Orchestrator {
	excludes := make(map[string]struct{}, len(opts.Excludes))
	for _, name := range opts.Excludes {
		excludes[name] = struct{}{}
	}
	return &Orchestrator{
		sourceRoot: sourceRoot,
		outputDir:  outputDir,
		strategy:   s,
		builder:    b,
		opts:       opts,
		excludes:   excludes,
	}
}

// Run executes the pipeline: enumerate, encrypt, build the gatekeeper,
// finalize the tree. Any per-file failure aborts the run and removes
// the partially written module tree; partial trees are never valid
// output.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	absRoot, err := filepath.Abs(o.sourceRoot)
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeInput, "invalid source path")
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeInput, "source path does not exist").
			WithContext("path", o.sourceRoot)
	}
	if !info.IsDir() {
		return nil, errors.New(errs.CodeInput, "source path must be a directory").
			WithContext("path", o.sourceRoot)
	}

	validator, err := security.New(absRoot)
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeInput, "cannot open source root")
	}
	defer validator.Close()

	absOut, err := filepath.Abs(o.outputDir)
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeInput, "invalid output path")
	}

	report := &Report{
		Module:    filepath.Base(absRoot),
		ModuleDir: filepath.Join(absOut, filepath.Base(absRoot)),
		Hashes:    make(map[string]string),
	}

	if err := o.transformTree(ctx, absRoot, absOut, validator, report); err != nil {
		// Incremental writes happened; drop them so no partial tree
		// survives as apparent output.
		os.RemoveAll(report.ModuleDir)
		return nil, err
	}

	result, err := o.builder.Build(ctx, absOut)
	if err != nil {
		return nil, err
	}
	report.Runtime = result

	if o.opts.MergeRuntime {
		if err := o.mergeRuntime(report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (o *Orchestrator) transformTree(ctx context.Context, absRoot, absOut string, validator *security.PathValidator, report *Report) error {
	return filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return errors.Wrap(walkErr, errs.CodeInput, "walk failed")
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if p == absRoot {
				return nil
			}
			if p == absOut {
				return filepath.SkipDir
			}
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, skip := o.excludes[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return errors.Wrap(err, errs.CodeInput, "walk produced foreign path")
		}
		relSlash, err := validator.ValidateAndNormalize(rel)
		if err != nil {
			return errors.Wrap(err, errs.CodeInput, "invalid source path").
				WithContext("path", rel)
		}

		// Reads go through os.Root: a symlink escaping the source
		// tree fails here instead of leaking foreign content.
		content, err := validator.ReadFileInRoot(relSlash)
		if err != nil {
			return errors.Wrap(err, errs.CodeInput, "cannot read source file").
				WithContext("path", relSlash)
		}

		destPath := filepath.Join(report.ModuleDir, rel)
		if err := os.MkdirAll(filepath.Dir(destPath), DirPerm); err != nil {
			return errors.Wrap(err, errs.CodeInput, "cannot create output dir")
		}

		sum := sha256.Sum256(content)
		report.Hashes[relSlash] = hex.EncodeToString(sum[:])

		if filepath.Ext(name) != ".py" {
			if err := os.WriteFile(destPath, content, FilePerm); err != nil {
				return errors.Wrap(err, errs.CodeInput, "cannot copy resource")
			}
			report.Copied++
			o.logf("copying: %s", relSlash)
			return nil
		}

		// Payload paths are resolved by the gatekeeper relative to
		// its installation root, so they carry the module prefix.
		payloadRel := path.Join(report.Module, relSlash)
		ciphertext, stub, err := o.strategy.Encrypt(payloadRel, content)
		if err != nil {
			return err
		}

		if err := os.WriteFile(destPath+strategy.PayloadSuffix, ciphertext, FilePerm); err != nil {
			return errors.Wrap(err, errs.CodeInput, "cannot write payload")
		}
		if err := os.WriteFile(destPath, []byte(stub), FilePerm); err != nil {
			return errors.Wrap(err, errs.CodeInput, "cannot write stub")
		}
		report.Encrypted++
		o.logf("encrypting: %s", relSlash)
		return nil
	})
}

// mergeRuntime relocates the gatekeeper inside the application package
// and rewrites every stub to match: the import targets the relocated
// package, and the embedded payload path drops the module prefix,
// since the runtime's installation root is now the module directory
// itself rather than its parent.
func (o *Orchestrator) mergeRuntime(report *Report) error {
	dest := filepath.Join(report.ModuleDir, gatekeeper.PackageName)
	os.RemoveAll(dest)
	if err := os.Rename(report.Runtime.PackageDir, dest); err != nil {
		return errors.Wrap(err, errs.CodeInput, "cannot relocate runtime package")
	}
	report.Runtime.PackageDir = dest
	report.Runtime.ArtifactPath = filepath.Join(dest, filepath.Base(report.Runtime.ArtifactPath))

	oldImport := "from " + gatekeeper.PackageName
	newImport := "from " + report.Module + "." + gatekeeper.PackageName
	oldCall := `run_encrypted(globals(), "` + report.Module + `/`
	newCall := `run_encrypted(globals(), "`

	return filepath.WalkDir(report.ModuleDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return errors.Wrap(walkErr, errs.CodeInput, "rewrite walk failed")
		}
		if d.IsDir() || filepath.Ext(p) != ".py" {
			return nil
		}
		// Skip the runtime package's own files.
		if strings.HasPrefix(p, dest+string(filepath.Separator)) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrap(err, errs.CodeInput, "cannot read stub for rewrite")
		}
		if !strings.Contains(string(data), oldImport) {
			return nil
		}
		rewritten := strings.ReplaceAll(string(data), oldImport, newImport)
		rewritten = strings.ReplaceAll(rewritten, oldCall, newCall)
		if err := os.WriteFile(p, []byte(rewritten), FilePerm); err != nil {
			return errors.Wrap(err, errs.CodeInput, "cannot rewrite stub")
		}
		return nil
	})
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.opts.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}
