package bundler

import (
	"context"
	"path/filepath"
)

// UV drives compilation and packaging through the uv toolchain,
// falling back to the system interpreter when uv cannot run the
// compile step.
type UV struct{}

// NewUV returns the uv-backed bundler.
func NewUV() *UV {
	return &UV{}
}

func (b *UV) CreateExtension(ctx context.Context, srcDir string) (string, error) {
	if _, err := Run(ctx, srcDir, "uv", "run", "python", "setup.py", "build_ext", "--inplace"); err != nil {
		// uv may be absent or have no project env; the plain
		// interpreter still works for a setuptools build.
		if _, ferr := Run(ctx, srcDir, "python3", "setup.py", "build_ext", "--inplace"); ferr != nil {
			return "", fallbackError(err, ferr)
		}
	}
	return FindOne(srcDir, "*"+HostArtifactExt())
}

func (b *UV) CreateWheel(ctx context.Context, pkgDir string) (string, error) {
	if _, err := Run(ctx, pkgDir, "uv", "build", "--wheel"); err != nil {
		return "", err
	}
	return FindOne(filepath.Join(pkgDir, "dist"), "*.whl")
}
