package secret

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider_ResolvesSetVariable(t *testing.T) {
	t.Setenv("SHEETBRIDGE_TEST_SECRET", "super-secret")

	p := NewEnvProvider()
	if p.Name() != "env" {
		t.Fatalf("Name() = %q, want env", p.Name())
	}

	got, err := p.Resolve(context.Background(), "SHEETBRIDGE_TEST_SECRET")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "super-secret" {
		t.Fatalf("Resolve() = %q, want super-secret", got)
	}
}

func TestEnvProvider_UnsetVariableErrors(t *testing.T) {
	p := NewEnvProvider()
	if _, err := p.Resolve(context.Background(), "SHEETBRIDGE_DOES_NOT_EXIST"); err == nil {
		t.Fatalf("expected error for unset variable")
	}
}

func TestFileProvider_ResolvesFileContents(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "token"), []byte("file-secret\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	p := NewFileProvider(dir)
	if p.Name() != "file" {
		t.Fatalf("Name() = %q, want file", p.Name())
	}

	got, err := p.Resolve(context.Background(), "token")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "file-secret" {
		t.Fatalf("Resolve() = %q, want file-secret (trimmed)", got)
	}
}

func TestFileProvider_RejectsPathTraversal(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	if _, err := p.Resolve(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("expected error for path traversal ref")
	}
}

func TestFileProvider_MissingFileErrors(t *testing.T) {
	p := NewFileProvider(t.TempDir())
	if _, err := p.Resolve(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultRegistry_HasEnvAndFileProviders(t *testing.T) {
	names := DefaultRegistry.List()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["env"] || !found["file"] {
		t.Fatalf("DefaultRegistry.List() = %v, want env and file registered", names)
	}
}

func TestDefaultRegistry_CreateFileUsesBaseDirFromConfig(t *testing.T) {
	dir := t.TempDir()
	p, err := DefaultRegistry.Create("file", map[string]any{"base_dir": dir})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	fp, ok := p.(*FileProvider)
	if !ok {
		t.Fatalf("Create() returned %T, want *FileProvider", p)
	}
	if fp.BaseDir != dir {
		t.Fatalf("BaseDir = %q, want %q", fp.BaseDir, dir)
	}
}
