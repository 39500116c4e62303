package gatekeeper

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agilira/go-errors"

	"github.com/modshield/modshield/internal/errs"
	"github.com/modshield/modshield/internal/extension"
	"github.com/modshield/modshield/internal/keymat"
	"github.com/modshield/modshield/internal/strategy"
)

const fakeArtifact = "modshield_runtime.cpython-312-x86_64-linux-gnu.so"

// fakeBundler mimics a toolchain: it produces an artifact plus compile
// byproducts, or fails at a chosen stage.
type fakeBundler struct {
	failCompile bool
	failWheel   bool
}

func (f *fakeBundler) CreateExtension(_ context.Context, srcDir string) (string, error) {
	if f.failCompile {
		return "", errors.New(errs.CodeExternalTool, "cython compile failed")
	}
	os.MkdirAll(filepath.Join(srcDir, "build"), 0755)
	os.WriteFile(filepath.Join(srcDir, "modshield_runtime.c"), []byte("/* generated */"), 0644)
	artifact := filepath.Join(srcDir, fakeArtifact)
	if err := os.WriteFile(artifact, []byte("\x7fELF"), 0755); err != nil {
		return "", err
	}
	return artifact, nil
}

func (f *fakeBundler) CreateWheel(_ context.Context, pkgDir string) (string, error) {
	if f.failWheel {
		return "", errors.New(errs.CodeExternalTool, "wheel build failed")
	}
	dist := filepath.Join(pkgDir, "dist")
	os.MkdirAll(dist, 0755)
	wheel := filepath.Join(dist, "modshield_runtime-0.4.0-py3-none-any.whl")
	if err := os.WriteFile(wheel, []byte("PK"), 0644); err != nil {
		return "", err
	}
	return wheel, nil
}

// stamp is a minimal extension used to check fragment ordering.
type stamp struct{ text string }

func (s stamp) Code() (string, error) { return "\n# " + s.text + "\n", nil }

func testStrategy(t *testing.T) *strategy.AEAD {
	t.Helper()
	material := &keymat.Material{
		Key:   bytes.Repeat([]byte{0x01}, keymat.KeySize),
		Nonce: bytes.Repeat([]byte{0x02}, keymat.NonceSize),
	}
	strat, err := strategy.NewAEAD(material)
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}
	return strat
}

func TestPrepareRuntimeCodeOrdering(t *testing.T) {
	exts := []extension.Extension{stamp{"first"}, stamp{"second"}}
	b := New(testStrategy(t), &fakeBundler{}, exts)

	path := filepath.Join(t.TempDir(), "unit.pyx")
	if err := b.PrepareRuntimeCode(path); err != nil {
		t.Fatalf("PrepareRuntimeCode failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cannot read unit: %v", err)
	}
	code := string(data)

	core := strings.Index(code, "def run_encrypted")
	first := strings.Index(code, "# first")
	second := strings.Index(code, "# second")
	if core < 0 || first < 0 || second < 0 {
		t.Fatalf("unit missing expected sections:\n%s", code)
	}
	if !(core < first && first < second) {
		t.Errorf("fragments out of order: core=%d first=%d second=%d", core, first, second)
	}
}

func TestBuildSuccessLayout(t *testing.T) {
	out := t.TempDir()
	b := New(testStrategy(t), &fakeBundler{}, nil)

	result, err := b.Build(context.Background(), out)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if result.PackageDir != filepath.Join(out, PackageName) {
		t.Errorf("package dir at %s, want %s", result.PackageDir, filepath.Join(out, PackageName))
	}
	for _, name := range []string{fakeArtifact, "__init__.py", PackageName + ".pyi"} {
		if _, err := os.Stat(filepath.Join(result.PackageDir, name)); err != nil {
			t.Errorf("package missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(result.WheelPath); err != nil {
		t.Errorf("wheel missing: %v", err)
	}

	initData, err := os.ReadFile(filepath.Join(result.PackageDir, "__init__.py"))
	if err != nil {
		t.Fatalf("cannot read __init__.py: %v", err)
	}
	if !strings.Contains(string(initData), "run_encrypted") {
		t.Error("__init__.py does not re-export run_encrypted")
	}

	// Staging is gone on success.
	if _, err := os.Stat(filepath.Join(out, stageName)); !os.IsNotExist(err) {
		t.Error("staging directory survived a successful build")
	}
}

func TestBuildCompileFailureRetainsStage(t *testing.T) {
	out := t.TempDir()
	b := New(testStrategy(t), &fakeBundler{failCompile: true}, nil)

	_, err := b.Build(context.Background(), out)
	if err == nil {
		t.Fatal("expected compile failure")
	}
	if errs.Code(err) != errs.CodeExternalTool {
		t.Errorf("expected %s, got %s", errs.CodeExternalTool, errs.Code(err))
	}

	// Intermediates stay for diagnosis.
	stage := filepath.Join(out, stageName)
	for _, name := range []string{unitName, "setup.py"} {
		if _, err := os.Stat(filepath.Join(stage, name)); err != nil {
			t.Errorf("diagnostic file %s missing after compile failure: %v", name, err)
		}
	}
}

func TestBuildWheelFailureCleansStage(t *testing.T) {
	out := t.TempDir()
	b := New(testStrategy(t), &fakeBundler{failWheel: true}, nil)

	_, err := b.Build(context.Background(), out)
	if err == nil {
		t.Fatal("expected packaging failure")
	}

	if _, err := os.Stat(filepath.Join(out, stageName)); !os.IsNotExist(err) {
		t.Error("staging directory survived a packaging failure")
	}
}

func TestBuildRemovesCompileByproducts(t *testing.T) {
	out := t.TempDir()
	b := New(testStrategy(t), &fakeBundler{}, nil)

	if _, err := b.Build(context.Background(), out); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, name := range []string{"setup.py", unitName, "modshield_runtime.c", "build"} {
		if _, err := os.Stat(filepath.Join(out, name)); !os.IsNotExist(err) {
			t.Errorf("byproduct %s leaked into the output dir", name)
		}
	}
}
