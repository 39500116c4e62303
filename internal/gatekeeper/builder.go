// Package gatekeeper assembles the runtime compilation unit (core
// routine plus extension fragments) and delegates native compilation
// and packaging to a Bundler.
package gatekeeper

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/agilira/go-errors"

	"github.com/modshield/modshield/internal/bundler"
	"github.com/modshield/modshield/internal/errs"
	"github.com/modshield/modshield/internal/extension"
	"github.com/modshield/modshield/internal/strategy"
	"github.com/modshield/modshield/internal/version"
)

const (
	// PackageName is the directory (and import) name of the built
	// gatekeeper package inside the output tree.
	PackageName = "modshield_runtime"

	unitName  = "modshield_runtime.pyx"
	stageName = "runtime_build"
)

// Builder synthesizes one compilation unit and hands it to a Bundler.
type Builder struct {
	strategy   strategy.Strategy
	bundler    bundler.Bundler
	extensions []extension.Extension

	// Version and Platform parameterize the generated package
	// metadata. Defaults are the tool version and the host platform.
	Version  string
	Platform string
}

// Result describes the built gatekeeper package.
type Result struct {
	PackageDir   string // final modshield_runtime package directory
	ArtifactPath string // compiled native module inside PackageDir
	WheelPath    string // distributable wheel
}

// New wires a builder. Extension fragments keep their registration
// order through every later step.
func New(s strategy.Strategy, b bundler.Bundler, extensions []extension.Extension) *Builder {
	return &Builder{
		strategy:   s,
		bundler:    b,
		extensions: extensions,
		Version:    version.Version,
		Platform:   runtime.GOOS,
	}
}

// PrepareRuntimeCode writes the synthesized source: the strategy's core
// routine followed by every extension fragment in registration order.
// Pure function of (strategy, extensions) apart from the file write.
func (b *Builder) PrepareRuntimeCode(path string) error {
	code, err := b.strategy.RuntimeCode()
	if err != nil {
		return err
	}
	for _, ext := range b.extensions {
		fragment, err := ext.Code()
		if err != nil {
			return err
		}
		code += fragment
	}
	if err := os.WriteFile(path, []byte(code), 0600); err != nil {
		return errors.Wrap(err, errs.CodeExternalTool, "failed to write runtime source")
	}
	return nil
}

// Build produces the gatekeeper package under outputDir.
//
// On a compile failure the staging directory is left in place for
// diagnosis. Packaging only proceeds after a successful compile; a
// packaging failure still removes staging, since the intermediates are
// of no diagnostic value once the compiler has succeeded.
func (b *Builder) Build(ctx context.Context, outputDir string) (*Result, error) {
	stage := filepath.Join(outputDir, stageName)
	if err := os.MkdirAll(stage, 0755); err != nil {
		return nil, errors.Wrap(err, errs.CodeExternalTool, "failed to create staging dir")
	}

	if err := b.PrepareRuntimeCode(filepath.Join(stage, unitName)); err != nil {
		return nil, err
	}
	params := templateParams{Version: b.Version, Platform: b.Platform}
	if err := renderToFile(setupTemplate, filepath.Join(stage, "setup.py"), params); err != nil {
		return nil, err
	}

	artifact, err := b.bundler.CreateExtension(ctx, stage)
	if err != nil {
		// Keep staging for inspection.
		return nil, err
	}

	b.removeIntermediates(stage)

	pkgDir := filepath.Join(stage, PackageName)
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		return nil, errors.Wrap(err, errs.CodeExternalTool, "failed to create package dir")
	}
	artifactName := filepath.Base(artifact)
	if err := os.Rename(artifact, filepath.Join(pkgDir, artifactName)); err != nil {
		return nil, errors.Wrap(err, errs.CodeExternalTool, "failed to place compiled module")
	}

	params.ArtifactName = artifactName
	if err := renderToFile(initTemplate, filepath.Join(pkgDir, "__init__.py"), params); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(pkgDir, PackageName+".pyi"), []byte(pyiStub), 0644); err != nil {
		return nil, errors.Wrap(err, errs.CodeExternalTool, "failed to write type stub")
	}
	if err := renderToFile(pyprojectTemplate, filepath.Join(stage, "pyproject.toml"), params); err != nil {
		return nil, err
	}

	wheel, err := b.bundler.CreateWheel(ctx, stage)
	if err != nil {
		os.RemoveAll(stage)
		return nil, err
	}

	finalPkg := filepath.Join(outputDir, PackageName)
	os.RemoveAll(finalPkg)
	if err := os.Rename(pkgDir, finalPkg); err != nil {
		return nil, errors.Wrap(err, errs.CodeExternalTool, "failed to relocate package")
	}
	finalWheel := filepath.Join(outputDir, filepath.Base(wheel))
	if err := os.Rename(wheel, finalWheel); err != nil {
		return nil, errors.Wrap(err, errs.CodeExternalTool, "failed to relocate wheel")
	}
	os.RemoveAll(stage)

	return &Result{
		PackageDir:   finalPkg,
		ArtifactPath: filepath.Join(finalPkg, artifactName),
		WheelPath:    finalWheel,
	}, nil
}

// removeIntermediates drops the compile-step inputs and byproducts.
// Called only after a successful compile.
func (b *Builder) removeIntermediates(stage string) {
	for _, name := range []string{"setup.py", unitName, "modshield_runtime.c"} {
		os.Remove(filepath.Join(stage, name))
	}
	os.RemoveAll(filepath.Join(stage, "build"))
}
