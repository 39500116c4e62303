package bundler

import (
	"context"
	"time"
)

// WithTimeout bounds every call into the wrapped bundler. The external
// compilers have no timeout of their own; without a bound a hung
// toolchain hangs the whole pipeline.
func WithTimeout(b Bundler, d time.Duration) Bundler {
	if d <= 0 {
		return b
	}
	return &timeoutBundler{inner: b, timeout: d}
}

type timeoutBundler struct {
	inner   Bundler
	timeout time.Duration
}

func (t *timeoutBundler) CreateExtension(ctx context.Context, srcDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.CreateExtension(ctx, srcDir)
}

func (t *timeoutBundler) CreateWheel(ctx context.Context, pkgDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.CreateWheel(ctx, pkgDir)
}
