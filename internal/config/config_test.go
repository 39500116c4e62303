package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output != "msdist" {
		t.Errorf("default output %q, want msdist", cfg.Output)
	}
	if cfg.Bundler != "uv" {
		t.Errorf("default bundler %q, want uv", cfg.Bundler)
	}
	if len(cfg.Exclude) == 0 {
		t.Error("default exclusion set is empty")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := `output: protected
bundler: poetry
exclude:
  - tests
  - fixtures
expiration: "2027-01-01"
tool_timeout: 5m
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output != "protected" {
		t.Errorf("output %q, want protected", cfg.Output)
	}
	if cfg.Bundler != "poetry" {
		t.Errorf("bundler %q, want poetry", cfg.Bundler)
	}
	if len(cfg.Exclude) != 2 || cfg.Exclude[1] != "fixtures" {
		t.Errorf("exclude %v, want [tests fixtures]", cfg.Exclude)
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		t.Fatalf("Timeout failed: %v", err)
	}
	if timeout != 5*time.Minute {
		t.Errorf("timeout %v, want 5m", timeout)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("output: [oops"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestTimeoutInvalid(t *testing.T) {
	cfg := Default()
	cfg.ToolTimeout = "soon"
	if _, err := cfg.Timeout(); err == nil {
		t.Fatal("expected error for unparseable timeout")
	}
	cfg.ToolTimeout = "-3s"
	if _, err := cfg.Timeout(); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}

func TestParseExpiration(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	got, err := ParseExpiration("2027-01-02", now)
	if err != nil {
		t.Fatalf("date-only parse failed: %v", err)
	}
	if got.Year() != 2027 || got.Month() != time.January || got.Day() != 2 {
		t.Errorf("parsed %v, want 2027-01-02", got)
	}

	if _, err := ParseExpiration("2027-03-04T05:06:07Z", now); err != nil {
		t.Errorf("RFC 3339 parse failed: %v", err)
	}

	if _, err := ParseExpiration("2020-01-01", now); err == nil {
		t.Error("past instant accepted")
	}
	if _, err := ParseExpiration("next tuesday", now); err == nil {
		t.Error("unparseable instant accepted")
	}
}
