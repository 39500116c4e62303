package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agilira/go-errors"

	"github.com/modshield/modshield/internal/bundler"
	"github.com/modshield/modshield/internal/config"
	"github.com/modshield/modshield/internal/errs"
	"github.com/modshield/modshield/internal/extension"
	"github.com/modshield/modshield/internal/gatekeeper"
	"github.com/modshield/modshield/internal/keymat"
	"github.com/modshield/modshield/internal/manifest"
	"github.com/modshield/modshield/internal/orchestrator"
	"github.com/modshield/modshield/internal/strategy"
)

// ObfuscateOptions are the settings for one protection run. Unset
// fields fall back to .modshield.yaml and then to the defaults.
type ObfuscateOptions struct {
	ModulePath   string
	Expiration   string
	OutputDir    string
	Bundler      string
	MergeRuntime bool
	Verbose      bool
}

// Obfuscate protects a module tree and builds the gatekeeper package.
func Obfuscate(ctx context.Context, opts ObfuscateOptions) {
	report, err := runPipeline(ctx, opts)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("protected %d modules (%d resources copied)\n", report.Encrypted, report.Copied)
	fmt.Printf("gatekeeper: %s\n", report.Runtime.PackageDir)
	fmt.Printf("wheel:      %s\n", report.Runtime.WheelPath)
}

// runPipeline wires the strategy, extensions, bundler, builder and
// orchestrator for one run and records the result in the manifest.
func runPipeline(ctx context.Context, opts ObfuscateOptions) (*orchestrator.Report, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if opts.OutputDir == "" {
		opts.OutputDir = cfg.Output
	}
	if opts.Bundler == "" {
		opts.Bundler = cfg.Bundler
	}
	if opts.Expiration == "" {
		opts.Expiration = cfg.Expiration
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	// Expiration is validated before anything is written.
	var extensions []extension.Extension
	var expiry time.Time
	if opts.Expiration != "" {
		expiry, err = config.ParseExpiration(opts.Expiration, time.Now())
		if err != nil {
			return nil, err
		}
		extensions = append(extensions, extension.NewExpiry(expiry))
	}

	store, err := keymat.NewStore()
	if err != nil {
		return nil, err
	}
	material, err := store.Load()
	if err != nil {
		return nil, err
	}

	strat, err := strategy.NewAEAD(material)
	if err != nil {
		return nil, err
	}

	backend, ok := bundler.Select(opts.Bundler)
	if !ok {
		return nil, errors.New(errs.CodeInput, "unknown bundler backend").
			WithContext("bundler", opts.Bundler)
	}

	builder := gatekeeper.New(strat, bundler.WithTimeout(backend, timeout), extensions)
	orch := orchestrator.New(opts.ModulePath, strat, builder, opts.OutputDir, orchestrator.Options{
		Excludes:     cfg.Exclude,
		MergeRuntime: opts.MergeRuntime,
		Verbose:      opts.Verbose,
	})

	report, err := orch.Run(ctx)
	if err != nil {
		return nil, err
	}

	recordBuild(report, material, opts, expiry)
	return report, nil
}

// recordBuild appends the run to the local manifest. Manifest failures
// never fail a build that already succeeded.
func recordBuild(report *orchestrator.Report, material *keymat.Material, opts ObfuscateOptions, expiry time.Time) {
	m, err := manifest.Open(manifest.DBFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open build manifest: %v\n", err)
		return
	}
	defer m.Close()

	absOut, _ := filepath.Abs(opts.OutputDir)
	record := manifest.Build{
		CreatedAt:      time.Now(),
		Module:         report.Module,
		OutputDir:      absOut,
		Encrypted:      report.Encrypted,
		Copied:         report.Copied,
		KeyFingerprint: material.Fingerprint(),
		Wheel:          report.Runtime.WheelPath,
		Hashes:         report.Hashes,
	}
	if !expiry.IsZero() {
		record.Expiration = expiry.Format(time.RFC3339)
	}
	if err := m.Record(record); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot record build: %v\n", err)
	}
}
