package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/agilira/go-errors"

	"github.com/modshield/modshield/internal/bundler"
	"github.com/modshield/modshield/internal/errs"
)

// BuildOptions extend ObfuscateOptions with executable packaging.
type BuildOptions struct {
	ObfuscateOptions
	ExeName string
}

// The PyInstaller spec bundles the mirrored module tree (stubs plus
// encrypted payloads) and the compiled gatekeeper into one executable.
var specTemplate = template.Must(template.New("spec").Parse(
	`# -*- mode: python ; coding: utf-8 -*-

a = Analysis(
    [{{printf "%q" .Entry}}],
    pathex=[{{printf "%q" .DistPath}}],
    datas=[({{printf "%q" .ModuleDir}}, {{printf "%q" .Module}})],
    hiddenimports=["cryptography"],
)
pyz = PYZ(a.pure)
exe = EXE(
    pyz,
    a.scripts,
    a.binaries,
    a.datas,
    name={{printf "%q" .ExeName}},
    console=True,
)
`))

// BuildExe runs the protection pipeline with merged packaging, then
// delegates executable assembly to PyInstaller.
func BuildExe(ctx context.Context, opts BuildOptions) {
	opts.MergeRuntime = true

	report, err := runPipeline(ctx, opts.ObfuscateOptions)
	if err != nil {
		HandleError(err)
	}

	distPath, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		HandleError(errors.Wrap(err, errs.CodeInput, "invalid output path"))
	}

	entry := filepath.Join(report.ModuleDir, "__main__.py")
	if _, err := os.Stat(entry); err != nil {
		HandleError(errors.New(errs.CodeInput, "module has no __main__.py entry point").
			WithContext("path", entry))
	}

	var buf bytes.Buffer
	err = specTemplate.Execute(&buf, struct {
		Entry     string
		DistPath  string
		ModuleDir string
		Module    string
		ExeName   string
	}{
		Entry:     entry,
		DistPath:  distPath,
		ModuleDir: report.ModuleDir,
		Module:    report.Module,
		ExeName:   opts.ExeName,
	})
	if err != nil {
		HandleError(errors.Wrap(err, errs.CodeExternalTool, "failed to render PyInstaller spec"))
	}

	specPath := filepath.Join(distPath, report.Module+".spec")
	if err := os.WriteFile(specPath, buf.Bytes(), 0644); err != nil {
		HandleError(errors.Wrap(err, errs.CodeExternalTool, "failed to write PyInstaller spec"))
	}

	fmt.Println("running pyinstaller...")
	if _, err := bundler.Run(ctx, distPath, "pyinstaller", specPath, "--distpath", distPath); err != nil {
		HandleError(err)
	}

	fmt.Printf("executable: %s\n", filepath.Join(distPath, opts.ExeName))
}
