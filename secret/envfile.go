package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvProvider resolves secretref:env:VAR_NAME by reading the named
// environment variable. Unlike ExpandEnvStrict's $VAR expansion, a ref
// must go through the explicit secretref: prefix, so an API token that
// happens to contain a dollar sign is never mistaken for a reference.
type EnvProvider struct{}

// NewEnvProvider creates an EnvProvider.
func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

// Name identifies this provider as "env".
func (p *EnvProvider) Name() string { return "env" }

// Resolve looks up ref as an environment variable name.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("secret: environment variable %q is not set", ref)
	}
	return v, nil
}

// Close is a no-op; EnvProvider holds no resources.
func (p *EnvProvider) Close() error { return nil }

// FileProvider resolves secretref:file:<name> by reading <name> from
// BaseDir, the shape a Kubernetes secret volume or Docker secret mount
// takes. The gateway's spreadsheet API token source reads a
// service-account JSON key this way so the key never has to sit in an
// environment variable.
type FileProvider struct {
	BaseDir string
}

// NewFileProvider creates a FileProvider rooted at baseDir.
func NewFileProvider(baseDir string) *FileProvider {
	return &FileProvider{BaseDir: baseDir}
}

// Name identifies this provider as "file".
func (p *FileProvider) Name() string { return "file" }

// Resolve reads ref as a file path relative to BaseDir. ref must not
// escape BaseDir via "..".
func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	if strings.Contains(ref, "..") {
		return "", fmt.Errorf("secret: file ref %q must not contain '..'", ref)
	}
	path := filepath.Join(p.BaseDir, ref)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("secret: reading %q: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Close is a no-op; FileProvider holds no resources.
func (p *FileProvider) Close() error { return nil }

var (
	_ Provider = (*EnvProvider)(nil)
	_ Provider = (*FileProvider)(nil)
)

func init() {
	_ = DefaultRegistry.Register("env", func(cfg map[string]any) (Provider, error) {
		return NewEnvProvider(), nil
	})
	_ = DefaultRegistry.Register("file", func(cfg map[string]any) (Provider, error) {
		baseDir, _ := cfg["base_dir"].(string)
		if baseDir == "" {
			baseDir = "/var/run/secrets/sheetbridge"
		}
		return NewFileProvider(baseDir), nil
	})
}
