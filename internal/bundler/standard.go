package bundler

import (
	"context"
	"path/filepath"
)

// Standard uses the plain setuptools/pip toolchain. It works anywhere
// a Python interpreter with setuptools is on PATH.
type Standard struct{}

// NewStandard returns the setuptools-backed bundler.
func NewStandard() *Standard {
	return &Standard{}
}

func (b *Standard) CreateExtension(ctx context.Context, srcDir string) (string, error) {
	if _, err := Run(ctx, srcDir, "python3", "setup.py", "build_ext", "--inplace"); err != nil {
		return "", err
	}
	return FindOne(srcDir, "*"+HostArtifactExt())
}

func (b *Standard) CreateWheel(ctx context.Context, pkgDir string) (string, error) {
	if _, err := Run(ctx, pkgDir, "python3", "-m", "build", "--wheel"); err != nil {
		// python -m build needs the build package; pip wheel is the
		// lowest common denominator.
		if _, ferr := Run(ctx, pkgDir, "pip", "wheel", "--no-deps", "--wheel-dir", "dist", "."); ferr != nil {
			return "", fallbackError(err, ferr)
		}
	}
	return FindOne(filepath.Join(pkgDir, "dist"), "*.whl")
}

// Select returns the bundler registered under name. Selection happens
// at configuration time; the pipeline never inspects backend types.
func Select(name string) (Bundler, bool) {
	switch name {
	case "uv", "":
		return NewUV(), true
	case "poetry":
		return NewPoetry(), true
	case "standard":
		return NewStandard(), true
	default:
		return nil, false
	}
}
