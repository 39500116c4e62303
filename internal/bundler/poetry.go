package bundler

import (
	"context"
	"path/filepath"
)

// Poetry drives compilation and packaging through poetry.
type Poetry struct{}

// NewPoetry returns the poetry-backed bundler.
func NewPoetry() *Poetry {
	return &Poetry{}
}

func (b *Poetry) CreateExtension(ctx context.Context, srcDir string) (string, error) {
	if _, err := Run(ctx, srcDir, "poetry", "run", "python", "setup.py", "build_ext", "--inplace"); err != nil {
		if _, ferr := Run(ctx, srcDir, "python3", "setup.py", "build_ext", "--inplace"); ferr != nil {
			return "", fallbackError(err, ferr)
		}
	}
	return FindOne(srcDir, "*"+HostArtifactExt())
}

func (b *Poetry) CreateWheel(ctx context.Context, pkgDir string) (string, error) {
	if _, err := Run(ctx, pkgDir, "poetry", "build", "-f", "wheel"); err != nil {
		return "", err
	}
	return FindOne(filepath.Join(pkgDir, "dist"), "*.whl")
}
