package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes source tree")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

// PathValidator confines file reads to a single source tree using
// Go 1.24's os.Root API. The obfuscation walk reads every plaintext
// module through it, so a symlink pointing outside the tree can never
// pull foreign content into a build.
type PathValidator struct {
	root     *os.Root
	rootPath string
}

// New creates a PathValidator for the tree rooted at path.
func New(path string) (*PathValidator, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source root: %w", err)
	}

	return &PathValidator{
		root:     root,
		rootPath: absPath,
	}, nil
}

// Close releases the underlying root handle.
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// ValidateAndNormalize validates a relative path and returns it in
// storage form (forward slashes). It rejects empty paths, absolute
// paths, and anything that escapes the tree.
func (pv *PathValidator) ValidateAndNormalize(p string) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsLocal(p) {
		if filepath.IsAbs(p) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, p)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, p)
	}

	clean := filepath.Clean(p)
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, clean)
	}

	rel, err := filepath.Rel(pv.rootPath, filepath.Join(pv.rootPath, clean))
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, p)
	}

	return filepath.ToSlash(rel), nil
}

// ReadFileInRoot reads a file inside the tree. The read itself goes
// through os.Root, so even a symlink that targets a path outside the
// tree cannot be followed.
func (pv *PathValidator) ReadFileInRoot(p string) ([]byte, error) {
	platformPath := filepath.FromSlash(p)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.ReadFile(platformPath)
}

// StatInRoot stats a file inside the tree.
func (pv *PathValidator) StatInRoot(p string) (os.FileInfo, error) {
	platformPath := filepath.FromSlash(p)
	if _, err := pv.ValidateAndNormalize(platformPath); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.Stat(platformPath)
}
