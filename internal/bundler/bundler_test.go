package bundler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modshield/modshield/internal/errs"
)

func TestArtifactExt(t *testing.T) {
	if got := ArtifactExt("windows"); got != ".pyd" {
		t.Errorf("windows ext %q, want .pyd", got)
	}
	for _, goos := range []string{"linux", "darwin", "freebsd"} {
		if got := ArtifactExt(goos); got != ".so" {
			t.Errorf("%s ext %q, want .so", goos, got)
		}
	}
}

func TestFindOne(t *testing.T) {
	dir := t.TempDir()
	touch := func(name string) {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	if _, err := FindOne(dir, "*.so"); err == nil {
		t.Error("zero matches did not error")
	}

	touch("runtime.so")
	got, err := FindOne(dir, "*.so")
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got != filepath.Join(dir, "runtime.so") {
		t.Errorf("got %s", got)
	}

	touch("other.so")
	if _, err := FindOne(dir, "*.so"); err == nil {
		t.Error("ambiguous matches did not error")
	}
}

func TestRunCapturesOutput(t *testing.T) {
	dir := t.TempDir()

	out, err := Run(context.Background(), dir, "sh", "-c", "echo built")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(string(out), "built") {
		t.Errorf("output %q does not contain tool output", out)
	}
}

func TestRunFailureIncludesDiagnostics(t *testing.T) {
	dir := t.TempDir()

	_, err := Run(context.Background(), dir, "sh", "-c", "echo compile error >&2; exit 3")
	if err == nil {
		t.Fatal("expected failure")
	}
	if errs.Code(err) != errs.CodeExternalTool {
		t.Errorf("expected %s, got %s", errs.CodeExternalTool, errs.Code(err))
	}
	if !strings.Contains(err.Error(), "compile error") {
		t.Errorf("error does not carry tool diagnostics: %v", err)
	}
}

func TestFallbackErrorKeepsBothDiagnostics(t *testing.T) {
	_, primary := Run(context.Background(), t.TempDir(), "sh", "-c", "echo uv exploded >&2; exit 1")
	_, fallback := Run(context.Background(), t.TempDir(), "sh", "-c", "echo python exploded >&2; exit 1")

	err := fallbackError(primary, fallback)
	if errs.Code(err) != errs.CodeExternalTool {
		t.Errorf("expected %s, got %s", errs.CodeExternalTool, errs.Code(err))
	}
	for _, want := range []string{"uv exploded", "python exploded"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("combined error missing %q: %v", want, err)
		}
	}
}

func TestSelect(t *testing.T) {
	cases := map[string]bool{
		"uv":       true,
		"poetry":   true,
		"standard": true,
		"":         true,
		"maven":    false,
	}
	for name, ok := range cases {
		if _, got := Select(name); got != ok {
			t.Errorf("Select(%q) ok=%v, want %v", name, got, ok)
		}
	}
}
