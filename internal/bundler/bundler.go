// Package bundler wraps the external toolchains that compile the
// gatekeeper source into a native extension and package it for
// distribution. Backends are interchangeable; the pipeline requires
// only success/failure signaling and a single authoritative artifact
// path per step.
package bundler

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/agilira/go-errors"

	"github.com/modshield/modshield/internal/errs"
)

// Bundler compiles a source unit into a loadable native artifact and
// packages it for distribution.
type Bundler interface {
	// CreateExtension compiles the gatekeeper source in srcDir and
	// returns the path of the produced native module.
	CreateExtension(ctx context.Context, srcDir string) (string, error)

	// CreateWheel packages the prepared directory and returns the
	// path of the produced wheel.
	CreateWheel(ctx context.Context, pkgDir string) (string, error)
}

// ArtifactExt resolves the compiled-module file extension for a target
// platform. Resolved once at build start; never decided ad hoc inside
// the pipeline.
func ArtifactExt(goos string) string {
	if goos == "windows" {
		return ".pyd"
	}
	return ".so"
}

// HostArtifactExt is ArtifactExt for the machine running the build.
func HostArtifactExt() string {
	return ArtifactExt(runtime.GOOS)
}

// Run executes an external tool in dir, blocking until it exits or the
// context is done. On a non-zero exit the tool's combined output is
// attached to the error verbatim.
func Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		// The tool's diagnostics travel inside the error message so
		// they reach the user verbatim.
		msg := name + " " + strings.Join(args, " ") + " failed"
		if len(out) > 0 {
			msg += ":\n" + strings.TrimRight(string(out), "\n")
		}
		return out, errors.Wrap(err, errs.CodeExternalTool, msg)
	}
	return out, nil
}

// fallbackError reports a failed interpreter fallback without dropping
// the primary tool's diagnostics; both failures reach the user.
func fallbackError(primary, fallback error) error {
	return errors.Wrap(fallback, errs.CodeExternalTool,
		"interpreter fallback failed after primary tool error: "+primary.Error())
}

// FindOne resolves a glob in dir to exactly one path. Zero or multiple
// candidates is an error: the artifact must be identified
// unambiguously, never by picking the most recent match.
func FindOne(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", errors.Wrap(err, errs.CodeExternalTool, "bad artifact pattern")
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", errors.New(errs.CodeExternalTool, "no artifact produced").
			WithContext("pattern", pattern).
			WithContext("dir", dir)
	default:
		sort.Strings(matches)
		return "", errors.New(errs.CodeExternalTool, "ambiguous artifact output").
			WithContext("pattern", pattern).
			WithContext("candidates", strings.Join(matches, ", "))
	}
}
